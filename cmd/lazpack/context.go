package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/smira/flag"

	"github.com/egonelbre/exp-lidar-compression/laz"
)

// app is the state shared by all commands.
var app struct {
	flags  *flag.FlagSet
	config laz.Config
}

// initContext loads the configuration, applies flag overrides and sets up
// logging.
func initContext(flags *flag.FlagSet) error {
	app.flags = flags
	app.config = laz.DefaultConfig()

	if path := flags.Lookup("config").Value.String(); path != "" {
		if err := laz.LoadConfig(path, &app.config); err != nil {
			return err
		}
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chunk-size":
			app.config.ChunkSize = f.Value.Get().(int)
		case "workers":
			app.config.Workers = f.Value.Get().(int)
		case "log-level":
			app.config.LogLevel = f.Value.String()
		case "log-format":
			app.config.LogFormat = f.Value.String()
		}
	})
	if err := app.config.Validate(); err != nil {
		return err
	}

	setupLogger(app.config.LogFormat, app.config.LogLevel, os.Stderr)

	log.Debug().
		Int("chunkSize", app.config.ChunkSize).
		Int("workers", app.config.Workers).
		Msg("configuration loaded")
	return nil
}
