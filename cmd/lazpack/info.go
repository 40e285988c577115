package main

import (
	"bytes"
	"fmt"

	"github.com/smira/commander"
	"github.com/smira/flag"

	"github.com/egonelbre/exp-lidar-compression/las"
)

func lazpackInfo(cmd *commander.Command, args []string) error {
	if len(args) != 1 {
		cmd.Usage()
		return commander.ErrCommandError
	}

	r, f, err := openContainer(args[0])
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	h := r.Header()
	fmt.Printf("Version: %d\n", h.Version)
	fmt.Printf("Point format: %d (%v)\n", h.Format, h.Format.Items())
	fmt.Printf("Chunk size: %d\n", h.ChunkSize)
	fmt.Printf("Points: %d\n", r.NumPoints())
	fmt.Printf("Chunks: %d\n", r.NumChunks())

	if len(h.LASHeader) > 0 {
		lh, err := las.ReadHeader(bytes.NewReader(h.LASHeader))
		if err != nil {
			return fmt.Errorf("stored LAS header: %w", err)
		}
		fmt.Printf("LAS version: %d.%d\n", lh.VersionMajor, lh.VersionMinor)
		fmt.Printf("LAS variable length records: %d\n", lh.NumVLRs)
		fmt.Printf("Scale: %v\n", lh.Scale)
		fmt.Printf("Offset: %v\n", lh.Offset)
		fmt.Printf("Min: %v %v %v\n", lh.MinX, lh.MinY, lh.MinZ)
		fmt.Printf("Max: %v %v %v\n", lh.MaxX, lh.MaxY, lh.MaxZ)
	}

	if cmd.Flag.Lookup("chunks").Value.Get().(bool) {
		fmt.Printf("\n%8s %12s %8s %14s %8s\n", "chunk", "offset", "points", "bytes", "b/point")
		for i := 0; i < r.NumChunks(); i++ {
			c := r.Chunk(i)
			fmt.Printf("%8d %12d %8d %14d %8.2f\n", i, c.Offset, c.Points, c.Length, float64(c.Length)/float64(c.Points))
		}
	}
	return nil
}

func makeCmdInfo() *commander.Command {
	cmd := &commander.Command{
		Run:       lazpackInfo,
		UsageLine: "info <input.lzpc>",
		Short:     "show container details",
		Long: `
Info shows the container header, the stored LAS header and optionally
the chunk table.

Example:

  $ lazpack info -chunks tile.lzpc
`,
		Flag: *flag.NewFlagSet("lazpack-info", flag.ExitOnError),
	}
	cmd.Flag.Bool("chunks", false, "list every chunk")

	return cmd
}
