package main

import (
	"os"

	"github.com/smira/commander"
	"github.com/smira/flag"
)

// RootCommand creates the root of the command tree.
func RootCommand() *commander.Command {
	cmd := &commander.Command{
		UsageLine: os.Args[0],
		Short:     "LiDAR point compression tool",
		Long: `
lazpack compresses LAS point files (point formats 0 to 3) into chunked
containers. Each chunk is compressed independently, so chunks are coded in
parallel and can be decoded individually.`,
		Flag: *flag.NewFlagSet("lazpack", flag.ExitOnError),
		Subcommands: []*commander.Command{
			makeCmdCompress(),
			makeCmdDecompress(),
			makeCmdBatch(),
			makeCmdInfo(),
			makeCmdVersion(),
		},
	}

	cmd.Flag.String("config", "", "location of configuration file (JSON or YAML)")
	cmd.Flag.Int("chunk-size", 0, "number of points per chunk (default from config)")
	cmd.Flag.Int("workers", 0, "number of chunks coded concurrently (default from config)")
	cmd.Flag.String("log-level", "", "log level: debug, info, warning, error")
	cmd.Flag.String("log-format", "", "log format: default or json")

	return cmd
}
