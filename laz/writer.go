package laz

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/egonelbre/exp-lidar-compression/laszip"
)

// Progress is notified about every coded chunk. Chunks coded concurrently
// report from several goroutines.
type Progress interface {
	// AddBar advances the progress by count points.
	AddBar(count int)
}

// Writer writes a container from a stream of points.
//
// Points are gathered into chunks and up to cfg.Workers full chunks are
// coded concurrently, so memory stays bounded by Workers chunks of points.
// The header is written with the first coded chunk. Header.PointCount may be
// zero when the number of points is not known up front; otherwise Close
// checks it.
type Writer struct {
	ctx    context.Context
	out    io.Writer
	cfg    Config
	header Header
	items  []laszip.ItemKind

	offset int64
	chunks []Chunk
	points uint64

	span    []laszip.Point   // chunk being filled
	pending [][]laszip.Point // full chunks waiting to be coded

	started bool
	closed  bool
	err     error
}

// NewWriter creates a container writer. h describes the points; its
// Version and ChunkSize are filled in from cfg.
func NewWriter(w io.Writer, h Header, cfg Config) (*Writer, error) {
	return NewWriterContext(context.Background(), w, h, cfg)
}

// NewWriterContext is like NewWriter, coding stops with ctx.Err() once ctx
// is done.
func NewWriterContext(ctx context.Context, w io.Writer, h Header, cfg Config) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !h.Format.Valid() {
		return nil, fmt.Errorf("laz: unsupported point format %d", h.Format)
	}
	h.Version = Version
	h.ChunkSize = cfg.ChunkSize

	return &Writer{
		ctx:    ctx,
		out:    w,
		cfg:    cfg,
		header: h,
		items:  h.Format.Items(),
	}, nil
}

// Write adds a point.
func (w *Writer) Write(p *laszip.Point) error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return fmt.Errorf("laz: write after close")
	}

	if w.span == nil {
		w.span = make([]laszip.Point, 0, w.cfg.ChunkSize)
	}
	w.span = append(w.span, *p)
	if len(w.span) < w.cfg.ChunkSize {
		return nil
	}
	w.pending = append(w.pending, w.span)
	w.span = nil
	if len(w.pending) < w.cfg.Workers {
		return nil
	}
	return w.flush()
}

// Close writes the remaining chunks and the chunk table. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}
	if len(w.span) > 0 {
		w.pending = append(w.pending, w.span)
		w.span = nil
	}
	if err := w.flush(); err != nil {
		return err
	}
	if !w.started {
		w.start()
	}

	if w.header.PointCount != 0 && w.header.PointCount != w.points {
		return w.fail(fmt.Errorf("laz: header announced %d points, wrote %d", w.header.PointCount, w.points))
	}
	w.finish()

	log.Debug().
		Int("chunks", len(w.chunks)).
		Uint64("points", w.points).
		Int64("bytes", w.offset).
		Msg("container written")
	return w.err
}

// flush codes the pending chunks concurrently and writes them in order.
func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return w.err
	}
	if err := w.ctx.Err(); err != nil {
		return w.fail(err)
	}

	first := len(w.chunks)
	compressed := make([][]byte, len(w.pending))
	g, gctx := errgroup.WithContext(w.ctx)
	g.SetLimit(w.cfg.Workers)
	for i, span := range w.pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := compressChunk(w.items, span)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", first+i, err)
			}
			compressed[i] = data
			if w.cfg.Progress != nil {
				w.cfg.Progress.AddBar(len(span))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return w.fail(err)
	}
	if err := w.ctx.Err(); err != nil {
		return w.fail(err)
	}

	if !w.started {
		w.start()
	}
	for i, data := range compressed {
		w.addChunk(len(w.pending[i]), data)
	}
	clear(w.pending)
	w.pending = w.pending[:0]
	return w.err
}

func (w *Writer) start() {
	w.started = true
	b := []byte(Magic)
	b = appendMessage(b, appendHeader(nil, &w.header))
	w.write(b)
}

func (w *Writer) addChunk(points int, data []byte) {
	c := Chunk{
		Offset: w.offset,
		Points: points,
		Length: int64(len(data)),
	}
	w.write(data)
	if w.err != nil {
		return
	}
	w.chunks = append(w.chunks, c)
	w.points += uint64(points)

	log.Debug().
		Int("chunk", len(w.chunks)-1).
		Int("points", points).
		Int("bytes", len(data)).
		Msg("chunk written")
}

func (w *Writer) finish() {
	tableOffset := w.offset
	b := appendMessage(nil, appendChunkTable(nil, w.chunks))
	b = appendFooter(b, tableOffset)
	w.write(b)
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.out.Write(b)
	w.offset += int64(n)
	if err != nil {
		w.err = fmt.Errorf("laz: write: %w", err)
	}
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.err
}

// Compress writes points as a container, coding chunks concurrently with up
// to cfg.Workers goroutines. The output is identical to writing the points
// one by one with a Writer.
func Compress(ctx context.Context, w io.Writer, h Header, points []laszip.Point, cfg Config) error {
	h.PointCount = uint64(len(points))
	cw, err := NewWriterContext(ctx, w, h, cfg)
	if err != nil {
		return err
	}
	for i := range points {
		if err := cw.Write(&points[i]); err != nil {
			return err
		}
	}
	return cw.Close()
}

func compressChunk(items []laszip.ItemKind, points []laszip.Point) ([]byte, error) {
	var buf bytes.Buffer
	pw, err := laszip.NewPointWriter(&buf, items)
	if err != nil {
		return nil, err
	}
	for i := range points {
		if err := pw.Write(&points[i]); err != nil {
			return nil, err
		}
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
