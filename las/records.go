package las

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/egonelbre/exp-lidar-compression/laszip"
	"github.com/egonelbre/exp-lidar-compression/laz"
)

// DecodeRecord reads a point record of the given format from b.
func DecodeRecord(format laz.PointFormat, b []byte, p *laszip.Point) {
	laszip.GetRecord(format.Items(), b, p)
}

// EncodeRecord writes p as a point record of the given format into b.
func EncodeRecord(format laz.PointFormat, b []byte, p *laszip.Point) {
	laszip.PutRecord(format.Items(), b, p)
}

// Reader reads point records from a LAS file.
type Reader struct {
	in     *bufio.Reader
	header *Header
	format laz.PointFormat
	prefix []byte
	record []byte
	read   uint64
}

// NewReader reads the header and the variable length records of a LAS
// file, leaving r at the first point record.
func NewReader(r io.Reader) (*Reader, error) {
	in := bufio.NewReader(r)

	var prefix bytes.Buffer
	h, err := ReadHeader(io.TeeReader(in, &prefix))
	if err != nil {
		return nil, err
	}
	format, err := h.Format()
	if err != nil {
		return nil, err
	}
	if h.PointDataOffset < uint32(h.HeaderSize) {
		return nil, fmt.Errorf("las: point data offset %d inside header of %d bytes", h.PointDataOffset, h.HeaderSize)
	}
	if _, err := io.CopyN(&prefix, in, int64(h.PointDataOffset)-int64(prefix.Len())); err != nil {
		return nil, fmt.Errorf("las: read variable length records: %w", err)
	}

	return &Reader{
		in:     in,
		header: h,
		format: format,
		prefix: prefix.Bytes(),
		record: make([]byte, format.RecordLength()),
	}, nil
}

// Header returns the parsed header.
func (r *Reader) Header() *Header { return r.header }

// Format returns the point format of the records.
func (r *Reader) Format() laz.PointFormat { return r.format }

// Prefix returns the raw bytes before the first point record: the header
// and the variable length records.
func (r *Reader) Prefix() []byte { return r.prefix }

// Read reads the next point. It returns io.EOF after the number of points
// announced in the header.
func (r *Reader) Read(p *laszip.Point) error {
	if r.read >= r.header.PointCount {
		return io.EOF
	}
	if _, err := io.ReadFull(r.in, r.record); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("las: point %d: %w", r.read, err)
	}
	DecodeRecord(r.format, r.record, p)
	r.read++
	return nil
}

// ReadAll reads all remaining points.
func (r *Reader) ReadAll() ([]laszip.Point, error) {
	points := make([]laszip.Point, 0, min(r.header.PointCount-r.read, 1<<20))
	for {
		var p laszip.Point
		err := r.Read(&p)
		if err == io.EOF {
			return points, nil
		}
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
}

// Writer writes point records to a LAS file.
type Writer struct {
	out    *bufio.Writer
	format laz.PointFormat
	record []byte
}

// NewWriter writes prefix, the header and variable length records, and
// returns a writer for the point records that follow.
func NewWriter(w io.Writer, prefix []byte, format laz.PointFormat) (*Writer, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("las: unsupported point format %d", format)
	}
	out := bufio.NewWriter(w)
	if _, err := out.Write(prefix); err != nil {
		return nil, fmt.Errorf("las: write header: %w", err)
	}
	return &Writer{
		out:    out,
		format: format,
		record: make([]byte, format.RecordLength()),
	}, nil
}

// Write writes a point record.
func (w *Writer) Write(p *laszip.Point) error {
	EncodeRecord(w.format, w.record, p)
	if _, err := w.out.Write(w.record); err != nil {
		return fmt.Errorf("las: write point: %w", err)
	}
	return nil
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error { return w.out.Flush() }
