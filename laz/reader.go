package laz

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
	"github.com/egonelbre/exp-lidar-compression/laszip"
)

// chunkPrealloc is the number of points allocated up front for a chunk.
const chunkPrealloc = 1 << 14

// Reader gives random access to the chunks of a container.
type Reader struct {
	r      io.ReaderAt
	header *Header
	chunks []Chunk
	points uint64

	// Progress, when set, is advanced as chunks are decoded by ReadAll.
	Progress Progress
}

// NewReader reads the header and the chunk table of a container of the
// given size.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < int64(len(Magic))+1+footerSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrFormat, size)
	}
	prefix := make([]byte, min(size, int64(len(Magic)+binary.MaxVarintLen64)))
	if _, err := r.ReadAt(prefix, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("laz: read header: %w", err)
	}
	if len(prefix) < len(Magic) || string(prefix[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: missing magic", ErrFormat)
	}

	headerLen, n := binary.Uvarint(prefix[len(Magic):])
	if n <= 0 {
		return nil, fmt.Errorf("%w: header length", ErrFormat)
	}
	headerStart := int64(len(Magic) + n)
	if headerLen > uint64(size) || headerStart+int64(headerLen)+footerSize > size {
		return nil, fmt.Errorf("%w: header length %d exceeds file size %d", ErrFormat, headerLen, size)
	}
	headerData := make([]byte, headerLen)
	if _, err := r.ReadAt(headerData, headerStart); err != nil {
		return nil, fmt.Errorf("laz: read header: %w", err)
	}
	header, err := parseHeader(headerData)
	if err != nil {
		return nil, err
	}
	dataStart := headerStart + int64(headerLen)

	var footer [footerSize]byte
	if _, err := r.ReadAt(footer[:], size-footerSize); err != nil {
		return nil, fmt.Errorf("laz: read footer: %w", err)
	}
	tableOffset := int64(binary.LittleEndian.Uint64(footer[:]))
	if tableOffset < dataStart || tableOffset >= size-footerSize {
		return nil, fmt.Errorf("%w: chunk table offset %d", ErrFormat, tableOffset)
	}

	table := make([]byte, size-footerSize-tableOffset)
	if _, err := r.ReadAt(table, tableOffset); err != nil {
		return nil, fmt.Errorf("laz: read chunk table: %w", err)
	}
	tableLen, n := binary.Uvarint(table)
	if n <= 0 || tableLen != uint64(len(table)-n) {
		return nil, fmt.Errorf("%w: chunk table length", ErrFormat)
	}
	chunks, err := parseChunkTable(table[n:])
	if err != nil {
		return nil, err
	}

	// a chunk holds at least the raw first point and the coder's final bytes
	minLength := int64(laszip.RecordSize(header.Format.Items()) + arithcode.MinStreamSize)

	offset := dataStart
	var points uint64
	for i := range chunks {
		c := &chunks[i]
		if c.Points <= 0 || c.Points > header.ChunkSize {
			return nil, fmt.Errorf("%w: chunk %d has %d points, chunk size %d", ErrFormat, i, c.Points, header.ChunkSize)
		}
		if c.Length < minLength || c.Length > tableOffset-offset {
			return nil, fmt.Errorf("%w: chunk %d length %d out of bounds", ErrFormat, i, c.Length)
		}
		c.Offset = offset
		offset += c.Length
		points += uint64(c.Points)
	}
	if offset != tableOffset {
		return nil, fmt.Errorf("%w: chunks end at %d, chunk table at %d", ErrFormat, offset, tableOffset)
	}
	if header.PointCount != 0 && header.PointCount != points {
		return nil, fmt.Errorf("%w: header announces %d points, chunks hold %d", ErrFormat, header.PointCount, points)
	}

	log.Debug().
		Int("chunks", len(chunks)).
		Uint64("points", points).
		Stringer("format", header.Format).
		Msg("container opened")

	return &Reader{
		r:      r,
		header: header,
		chunks: chunks,
		points: points,
	}, nil
}

// Header returns the container header.
func (r *Reader) Header() *Header { return r.header }

// NumChunks returns the number of chunks.
func (r *Reader) NumChunks() int { return len(r.chunks) }

// NumPoints returns the number of points in all chunks.
func (r *Reader) NumPoints() uint64 { return r.points }

// Chunk returns the table entry of chunk i.
func (r *Reader) Chunk(i int) Chunk { return r.chunks[i] }

// ReadChunk decodes the points of chunk i.
func (r *Reader) ReadChunk(i int) ([]laszip.Point, error) {
	if i < 0 || i >= len(r.chunks) {
		return nil, fmt.Errorf("laz: chunk %d out of range [0, %d)", i, len(r.chunks))
	}
	c := r.chunks[i]

	data := make([]byte, c.Length)
	if _, err := r.r.ReadAt(data, c.Offset); err != nil {
		return nil, fmt.Errorf("laz: read chunk %d: %w", i, err)
	}

	pr, err := laszip.NewPointReader(bytes.NewReader(data), r.header.Format.Items())
	if err != nil {
		return nil, err
	}
	// grow with the decoded points, the count comes from the file
	points := make([]laszip.Point, 0, min(c.Points, chunkPrealloc))
	for k := 0; k < c.Points; k++ {
		var p laszip.Point
		if err := pr.Read(&p); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// ReadAll decodes every chunk using up to workers goroutines and returns
// the points in file order.
func (r *Reader) ReadAll(ctx context.Context, workers int) ([]laszip.Point, error) {
	if workers <= 0 {
		workers = 1
	}

	decoded := make([][]laszip.Point, len(r.chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range r.chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			points, err := r.ReadChunk(i)
			if err != nil {
				return err
			}
			decoded[i] = points
			if r.Progress != nil {
				r.Progress.AddBar(len(points))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, points := range decoded {
		total += len(points)
	}
	all := make([]laszip.Point, 0, total)
	for _, points := range decoded {
		all = append(all, points...)
	}
	return all, nil
}
