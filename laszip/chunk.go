package laszip

import (
	"fmt"
	"io"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
)

// PointWriter compresses a chunk of points with a fixed list of items.
//
// The first point is stored uncompressed in LAS record layout and seeds every
// item codec. The remaining points go through the arithmetic coder.
type PointWriter struct {
	items   []ItemKind
	out     io.Writer
	enc     *arithcode.Encoder
	writers []ItemWriter
	record  []byte
	count   int
}

// NewPointWriter creates a chunk writer for items writing to w.
func NewPointWriter(w io.Writer, items []ItemKind) (*PointWriter, error) {
	enc := arithcode.NewEncoder(w)
	writers := make([]ItemWriter, 0, len(items))
	for _, kind := range items {
		iw, err := NewItemWriter(kind, enc)
		if err != nil {
			return nil, err
		}
		writers = append(writers, iw)
	}
	return &PointWriter{
		items:   items,
		out:     w,
		enc:     enc,
		writers: writers,
		record:  make([]byte, RecordSize(items)),
	}, nil
}

// Count returns the number of points written so far.
func (pw *PointWriter) Count() int { return pw.count }

// Write adds p to the chunk.
func (pw *PointWriter) Write(p *Point) error {
	var ctx Context
	var err error
	if pw.count == 0 {
		PutRecord(pw.items, pw.record, p)
		if _, err := pw.out.Write(pw.record); err != nil {
			return fmt.Errorf("laszip: write first point: %w", err)
		}
		for _, iw := range pw.writers {
			if ctx, err = iw.Init(p, ctx); err != nil {
				return err
			}
		}
		pw.count++
		return nil
	}

	for _, iw := range pw.writers {
		if ctx, err = iw.Write(p, ctx); err != nil {
			return fmt.Errorf("point %d: %w", pw.count, err)
		}
	}
	pw.count++
	return nil
}

// Close flushes the arithmetic coder. An empty chunk produces no output.
func (pw *PointWriter) Close() error {
	if pw.count == 0 {
		return nil
	}
	return pw.enc.Close()
}

// PointReader decompresses a chunk written by PointWriter.
type PointReader struct {
	items   []ItemKind
	in      io.Reader
	dec     *arithcode.Decoder
	readers []ItemReader
	record  []byte
	count   int
}

// NewPointReader creates a chunk reader for items reading from r.
func NewPointReader(r io.Reader, items []ItemKind) (*PointReader, error) {
	for _, kind := range items {
		if kind.Size() == 0 {
			return nil, fmt.Errorf("laszip: unsupported item %v", kind)
		}
	}
	return &PointReader{
		items:  items,
		in:     r,
		record: make([]byte, RecordSize(items)),
	}, nil
}

// Count returns the number of points read so far.
func (pr *PointReader) Count() int { return pr.count }

// Read decodes the next point into p.
//
// The caller must know the number of points in the chunk. Reading past the
// end yields arbitrary values or io.ErrUnexpectedEOF.
func (pr *PointReader) Read(p *Point) error {
	var ctx Context
	var err error
	if pr.count == 0 {
		if _, err := io.ReadFull(pr.in, pr.record); err != nil {
			return fmt.Errorf("laszip: read first point: %w", err)
		}
		GetRecord(pr.items, pr.record, p)
		pr.count++
		return nil
	}

	if pr.dec == nil {
		if err := pr.start(); err != nil {
			return err
		}
	}
	for _, ir := range pr.readers {
		if ctx, err = ir.Read(p, ctx); err != nil {
			return fmt.Errorf("point %d: %w", pr.count, err)
		}
	}
	pr.count++
	return nil
}

// start creates the decoder and item readers once the first point is known.
func (pr *PointReader) start() error {
	dec, err := arithcode.NewDecoder(pr.in)
	if err != nil {
		return err
	}

	var first Point
	GetRecord(pr.items, pr.record, &first)

	var ctx Context
	readers := make([]ItemReader, 0, len(pr.items))
	for _, kind := range pr.items {
		ir, err := NewItemReader(kind, dec)
		if err != nil {
			return err
		}
		if ctx, err = ir.Init(&first, ctx); err != nil {
			return err
		}
		readers = append(readers, ir)
	}
	pr.dec = dec
	pr.readers = readers
	return nil
}
