package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/saracen/walker"
	"github.com/smira/commander"
	"github.com/smira/flag"
)

// collectLASFiles walks locations collecting files with a .las extension.
// Locations that are files are taken as is.
func collectLASFiles(locations []string) (files, failed []string) {
	var mu sync.Mutex

	for _, location := range locations {
		info, err := os.Stat(location)
		if err != nil {
			log.Warn().Err(err).Str("location", location).Msg("unable to process")
			failed = append(failed, location)
			continue
		}
		if !info.IsDir() {
			files = append(files, location)
			continue
		}

		err = walker.Walk(location, func(path string, info os.FileInfo) error {
			if info.IsDir() || !strings.EqualFold(filepath.Ext(info.Name()), ".las") {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			files = append(files, path)
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("location", location).Msg("unable to process")
			failed = append(failed, location)
		}
	}

	sort.Strings(files)
	return files, failed
}

// containerPath replaces the extension of a LAS path with .lzpc.
func containerPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".lzpc"
}

func lazpackBatch(cmd *commander.Command, args []string) error {
	if len(args) == 0 {
		cmd.Usage()
		return commander.ErrCommandError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files, failed := collectLASFiles(args)
	storeHeader := !cmd.Flag.Lookup("no-las-header").Value.Get().(bool)
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := compressFile(ctx, src, containerPath(src), storeHeader); err != nil {
			log.Error().Err(err).Str("file", src).Msg("compression failed")
			failed = append(failed, src)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("some files failed to compress: %s", strings.Join(failed, ", "))
	}
	return nil
}

func makeCmdBatch() *commander.Command {
	cmd := &commander.Command{
		Run:       lazpackBatch,
		UsageLine: "batch <file.las>|<directory> ...",
		Short:     "compress many LAS files",
		Long: `
Batch compresses every listed LAS file and every .las file found under the
listed directories. Each container is written next to its source with the
.lzpc extension.

Example:

  $ lazpack batch tiles/
`,
		Flag: *flag.NewFlagSet("lazpack-batch", flag.ExitOnError),
	}
	cmd.Flag.Bool("no-las-header", false, "do not store the LAS header and variable length records")

	return cmd
}
