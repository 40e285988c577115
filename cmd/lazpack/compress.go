package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/smira/commander"
	"github.com/smira/flag"

	"github.com/egonelbre/exp-lidar-compression/las"
	"github.com/egonelbre/exp-lidar-compression/laszip"
	"github.com/egonelbre/exp-lidar-compression/laz"
)

func lazpackCompress(cmd *commander.Command, args []string) error {
	if len(args) != 2 {
		cmd.Usage()
		return commander.ErrCommandError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	storeHeader := !cmd.Flag.Lookup("no-las-header").Value.Get().(bool)
	return compressFile(ctx, args[0], args[1], storeHeader)
}

// compressFile compresses the LAS file src into the container dst.
func compressFile(ctx context.Context, src, dst string, storeHeader bool) error {
	if err := expectFile(src, lasType); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	r, err := las.NewReader(in)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", src, err)
	}
	total := r.Header().PointCount

	log.Info().
		Str("file", src).
		Stringer("format", r.Format()).
		Uint64("points", total).
		Msg("reading LAS file")

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", dst, err)
	}

	bar := newProgress(int(total))
	cfg := app.config
	cfg.Progress = bar

	h := laz.Header{Format: r.Format(), PointCount: total}
	if storeHeader {
		h.LASHeader = r.Prefix()
	}
	err = streamPoints(ctx, out, r, h, cfg)
	bar.Shutdown()
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("unable to compress %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("unable to write %s: %w", dst, err)
	}

	srcInfo, err := in.Stat()
	if err != nil {
		return err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d points, %d -> %d bytes (%.2f%%)\n", dst, total,
		srcInfo.Size(), dstInfo.Size(), 100*float64(dstInfo.Size())/float64(max(srcInfo.Size(), 1)))
	return nil
}

// streamPoints reads every point of r into a container written to w.
func streamPoints(ctx context.Context, w io.Writer, r *las.Reader, h laz.Header, cfg laz.Config) error {
	cw, err := laz.NewWriterContext(ctx, w, h, cfg)
	if err != nil {
		return err
	}
	var p laszip.Point
	for {
		err := r.Read(&p)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := cw.Write(&p); err != nil {
			return err
		}
	}
	return cw.Close()
}

func makeCmdCompress() *commander.Command {
	cmd := &commander.Command{
		Run:       lazpackCompress,
		UsageLine: "compress <input.las> <output.lzpc>",
		Short:     "compress LAS file",
		Long: `
Compress reads an uncompressed LAS file and writes its points as a chunked
container. The LAS header and variable length records are stored in the
container, so decompress restores the original file.

Example:

  $ lazpack -chunk-size=100000 compress tile.las tile.lzpc
`,
		Flag: *flag.NewFlagSet("lazpack-compress", flag.ExitOnError),
	}
	cmd.Flag.Bool("no-las-header", false, "do not store the LAS header and variable length records")

	return cmd
}
