// Package las reads and writes uncompressed LAS point files with point data
// record formats 0 to 3.
package las

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/egonelbre/exp-lidar-compression/laszip"
	"github.com/egonelbre/exp-lidar-compression/laz"
)

// ErrSignature is returned when a file does not start with "LASF".
var ErrSignature = errors.New("las: missing LASF signature")

// Signature starts every LAS file.
const Signature = "LASF"

const (
	// PublicHeaderSize is the size of the LAS 1.0 to 1.2 public header block.
	PublicHeaderSize = 227
	// headerSize14 is the size of the LAS 1.4 public header block.
	headerSize14 = 375
	// pointCount14Offset locates the 64-bit point count of LAS 1.4 headers.
	pointCount14Offset = 247
)

// PublicHeader is the fixed part of the public header block shared by all
// LAS versions, in file layout.
type PublicHeader struct {
	Signature          [4]byte
	FileSourceID       uint16
	GlobalEncoding     uint16
	GUID               [16]byte
	VersionMajor       uint8
	VersionMinor       uint8
	SystemIdentifier   [32]byte
	GeneratingSoftware [32]byte
	CreationDay        uint16
	CreationYear       uint16
	HeaderSize         uint16
	PointDataOffset    uint32
	NumVLRs            uint32
	PointFormat        uint8
	RecordLength       uint16
	LegacyPointCount   uint32
	LegacyByReturn     [5]uint32
	Scale              [3]float64
	Offset             [3]float64
	MaxX, MinX         float64
	MaxY, MinY         float64
	MaxZ, MinZ         float64
}

// Header is a parsed public header block.
type Header struct {
	PublicHeader
	// PointCount is the number of point records. LAS 1.4 headers store it
	// in a 64-bit field that takes precedence over LegacyPointCount.
	PointCount uint64
}

// ReadHeader reads the public header block from r, consuming exactly
// HeaderSize bytes.
func ReadHeader(r io.Reader) (*Header, error) {
	h := &Header{}
	if err := binary.Read(r, binary.LittleEndian, &h.PublicHeader); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("las: read header: %w", err)
	}
	if string(h.Signature[:]) != Signature {
		return nil, ErrSignature
	}
	if h.HeaderSize < PublicHeaderSize {
		return nil, fmt.Errorf("las: header size %d below %d", h.HeaderSize, PublicHeaderSize)
	}
	h.PointCount = uint64(h.LegacyPointCount)

	extra := make([]byte, int(h.HeaderSize)-PublicHeaderSize)
	if _, err := io.ReadFull(r, extra); err != nil {
		return nil, fmt.Errorf("las: read header: %w", err)
	}
	if h.VersionMajor == 1 && h.VersionMinor >= 4 && h.HeaderSize >= headerSize14 {
		count := binary.LittleEndian.Uint64(extra[pointCount14Offset-PublicHeaderSize:])
		if count != 0 {
			h.PointCount = count
		}
	}
	return h, nil
}

// Format returns the point format of the records. Compressed records and
// records carrying extra bytes are not supported.
func (h *Header) Format() (laz.PointFormat, error) {
	if h.PointFormat&0xC0 != 0 {
		return 0, fmt.Errorf("las: point format %d is compressed", h.PointFormat&0x3F)
	}
	format, err := laz.ParsePointFormat(h.PointFormat)
	if err != nil {
		return 0, err
	}
	if want := format.RecordLength(); int(h.RecordLength) != want {
		return 0, fmt.Errorf("las: record length %d does not match %v length %d, extra bytes are not supported",
			h.RecordLength, format, want)
	}
	return format, nil
}

// NewHeader returns a LAS 1.2 header for points of the given format with no
// variable length records.
func NewHeader(format laz.PointFormat, scale, offset [3]float64) *Header {
	h := &Header{}
	copy(h.Signature[:], Signature)
	h.VersionMajor, h.VersionMinor = 1, 2
	copy(h.GeneratingSoftware[:], "lazpack")
	h.HeaderSize = PublicHeaderSize
	h.PointDataOffset = PublicHeaderSize
	h.PointFormat = uint8(format)
	h.RecordLength = uint16(format.RecordLength())
	h.Scale = scale
	h.Offset = offset
	if format == laz.Format1 || format == laz.Format3 {
		// GPS time is adjusted standard time
		h.GlobalEncoding = 1
	}
	return h
}

// Summarize sets the point counts and bounds from points.
func (h *Header) Summarize(points []laszip.Point) {
	h.PointCount = uint64(len(points))
	h.LegacyPointCount = 0
	if h.PointCount <= math.MaxUint32 {
		h.LegacyPointCount = uint32(h.PointCount)
	}
	h.LegacyByReturn = [5]uint32{}
	if len(points) == 0 {
		h.MinX, h.MaxX, h.MinY, h.MaxY, h.MinZ, h.MaxZ = 0, 0, 0, 0, 0, 0
		return
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	minZ, maxZ := points[0].Z, points[0].Z
	for i := range points {
		p := &points[i]
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
		minZ, maxZ = min(minZ, p.Z), max(maxZ, p.Z)
		if n := p.ReturnNumber(); n >= 1 && n <= 5 {
			h.LegacyByReturn[n-1]++
		}
	}
	h.MinX, h.MaxX = h.scaled(0, minX), h.scaled(0, maxX)
	h.MinY, h.MaxY = h.scaled(1, minY), h.scaled(1, maxY)
	h.MinZ, h.MaxZ = h.scaled(2, minZ), h.scaled(2, maxZ)
}

func (h *Header) scaled(axis int, v int32) float64 {
	return float64(v)*h.Scale[axis] + h.Offset[axis]
}

// MarshalBinary encodes the public header block. Headers larger than
// PublicHeaderSize are padded with zeros, except for the LAS 1.4 point count.
func (h *Header) MarshalBinary() ([]byte, error) {
	if h.HeaderSize < PublicHeaderSize {
		return nil, fmt.Errorf("las: header size %d below %d", h.HeaderSize, PublicHeaderSize)
	}
	var buf bytes.Buffer
	buf.Grow(int(h.HeaderSize))
	if err := binary.Write(&buf, binary.LittleEndian, &h.PublicHeader); err != nil {
		return nil, err
	}
	b := append(buf.Bytes(), make([]byte, int(h.HeaderSize)-PublicHeaderSize)...)
	if h.VersionMajor == 1 && h.VersionMinor >= 4 && h.HeaderSize >= headerSize14 {
		binary.LittleEndian.PutUint64(b[pointCount14Offset:], h.PointCount)
	}
	return b, nil
}
