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

// openContainer opens a container file for random access.
func openContainer(path string) (*laz.Reader, *os.File, error) {
	if err := expectFile(path, containerType); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	r, err := laz.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	return r, f, nil
}

// lasPrefix returns the stored LAS header, or a new one describing points.
func lasPrefix(h *laz.Header, points []laszip.Point) ([]byte, error) {
	if len(h.LASHeader) > 0 {
		return h.LASHeader, nil
	}
	header := las.NewHeader(h.Format, [3]float64{0.01, 0.01, 0.01}, [3]float64{})
	header.Summarize(points)
	return header.MarshalBinary()
}

func lazpackDecompress(cmd *commander.Command, args []string) error {
	if len(args) != 2 {
		cmd.Usage()
		return commander.ErrCommandError
	}
	src, dst := args[0], args[1]

	r, in, err := openContainer(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bar := newProgress(int(r.NumPoints()))
	r.Progress = bar
	points, err := r.ReadAll(ctx, app.config.Workers)
	bar.Shutdown()
	if err != nil {
		return fmt.Errorf("unable to decompress %s: %w", src, err)
	}

	prefix, err := lasPrefix(r.Header(), points)
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", dst, err)
	}
	if err := writeLAS(out, prefix, r.Header().Format, points); err != nil {
		_ = out.Close()
		return fmt.Errorf("unable to write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("unable to write %s: %w", dst, err)
	}

	log.Info().
		Str("file", dst).
		Int("points", len(points)).
		Msg("wrote LAS file")
	return nil
}

func writeLAS(w io.Writer, prefix []byte, format laz.PointFormat, points []laszip.Point) error {
	lw, err := las.NewWriter(w, prefix, format)
	if err != nil {
		return err
	}
	for i := range points {
		if err := lw.Write(&points[i]); err != nil {
			return err
		}
	}
	return lw.Flush()
}

func makeCmdDecompress() *commander.Command {
	cmd := &commander.Command{
		Run:       lazpackDecompress,
		UsageLine: "decompress <input.lzpc> <output.las>",
		Short:     "decompress container into LAS file",
		Long: `
Decompress decodes all chunks of a container and writes them as an
uncompressed LAS file. When the container carries no LAS header, a LAS 1.2
header with a scale of 0.01 is generated.

Example:

  $ lazpack -workers=4 decompress tile.lzpc tile.las
`,
		Flag: *flag.NewFlagSet("lazpack-decompress", flag.ExitOnError),
	}

	return cmd
}
