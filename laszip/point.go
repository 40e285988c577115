// Package laszip implements the per-field point codecs of LAZ-style LiDAR
// compression.
//
// Each item codec (Point10, GPSTime11, RGB12) predicts the fields it owns
// from the previous point and codes the prediction error with an adaptive
// arithmetic coder. A PointWriter and PointReader drive a fixed list of item
// codecs over one independently decodable chunk of points.
package laszip

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Point is a single LiDAR point record.
//
// Coordinates are the scaled integers stored in LAS files. GPSTime holds the
// bit pattern of the IEEE 754 double stored in the file.
type Point struct {
	X, Y, Z   int32
	Intensity uint16
	// Return packs return number (bits 0-2), number of returns (bits 3-5),
	// scan direction flag (bit 6) and edge of flight line (bit 7).
	Return         uint8
	Classification uint8
	ScanAngleRank  int8
	UserData       uint8
	PointSourceID  uint16

	GPSTime int64

	// RGB holds red, green and blue.
	RGB [3]uint16
}

// ReturnNumber returns the return number of the pulse.
func (p *Point) ReturnNumber() uint8 { return p.Return & 0x07 }

// NumberOfReturns returns the total number of returns of the pulse.
func (p *Point) NumberOfReturns() uint8 { return (p.Return >> 3) & 0x07 }

// ScanDirectionFlag reports the direction of the scanner mirror.
func (p *Point) ScanDirectionFlag() bool { return p.Return&0x40 != 0 }

// EdgeOfFlightLine reports whether the point is at the end of a scan line.
func (p *Point) EdgeOfFlightLine() bool { return p.Return&0x80 != 0 }

// SetReturn packs the return fields into p.Return.
func (p *Point) SetReturn(number, count uint8, scanDirection, edge bool) {
	p.Return = number&0x07 | (count&0x07)<<3
	if scanDirection {
		p.Return |= 0x40
	}
	if edge {
		p.Return |= 0x80
	}
}

// GPSTimeFloat returns the GPS time as a float64.
func (p *Point) GPSTimeFloat() float64 { return math.Float64frombits(uint64(p.GPSTime)) }

// SetGPSTimeFloat stores t as GPS time.
func (p *Point) SetGPSTimeFloat(t float64) { p.GPSTime = int64(math.Float64bits(t)) }

// ColorByte returns the low (high == false) or high byte of the given
// colour channel.
func (p *Point) ColorByte(channel int, high bool) uint8 {
	if high {
		return uint8(p.RGB[channel] >> 8)
	}
	return uint8(p.RGB[channel])
}

// ItemKind identifies an item codec and its record layout.
type ItemKind uint8

const (
	// ItemPoint10 covers the 20 byte core record: coordinates, intensity,
	// return byte, classification, scan angle, user data, point source.
	ItemPoint10 ItemKind = iota + 1
	// ItemGPSTime11 covers the 8 byte GPS time.
	ItemGPSTime11
	// ItemRGB12 covers the 6 byte colour.
	ItemRGB12
)

// String implements fmt.Stringer.
func (k ItemKind) String() string {
	switch k {
	case ItemPoint10:
		return "POINT10"
	case ItemGPSTime11:
		return "GPSTIME11"
	case ItemRGB12:
		return "RGB12"
	default:
		return fmt.Sprintf("ItemKind(%d)", uint8(k))
	}
}

// Size returns the size of the item in a LAS point record.
func (k ItemKind) Size() int {
	switch k {
	case ItemPoint10:
		return 20
	case ItemGPSTime11:
		return 8
	case ItemRGB12:
		return 6
	default:
		return 0
	}
}

// RecordSize returns the combined size of the items in a LAS record.
func RecordSize(items []ItemKind) int {
	size := 0
	for _, kind := range items {
		size += kind.Size()
	}
	return size
}

// PutItem writes the fields of item kind from p into b in LAS layout.
// b must be at least kind.Size() bytes long.
func PutItem(kind ItemKind, b []byte, p *Point) {
	le := binary.LittleEndian
	switch kind {
	case ItemPoint10:
		le.PutUint32(b[0:], uint32(p.X))
		le.PutUint32(b[4:], uint32(p.Y))
		le.PutUint32(b[8:], uint32(p.Z))
		le.PutUint16(b[12:], p.Intensity)
		b[14] = p.Return
		b[15] = p.Classification
		b[16] = uint8(p.ScanAngleRank)
		b[17] = p.UserData
		le.PutUint16(b[18:], p.PointSourceID)
	case ItemGPSTime11:
		le.PutUint64(b[0:], uint64(p.GPSTime))
	case ItemRGB12:
		le.PutUint16(b[0:], p.RGB[0])
		le.PutUint16(b[2:], p.RGB[1])
		le.PutUint16(b[4:], p.RGB[2])
	}
}

// GetItem reads the fields of item kind from b in LAS layout into p.
// b must be at least kind.Size() bytes long.
func GetItem(kind ItemKind, b []byte, p *Point) {
	le := binary.LittleEndian
	switch kind {
	case ItemPoint10:
		p.X = int32(le.Uint32(b[0:]))
		p.Y = int32(le.Uint32(b[4:]))
		p.Z = int32(le.Uint32(b[8:]))
		p.Intensity = le.Uint16(b[12:])
		p.Return = b[14]
		p.Classification = b[15]
		p.ScanAngleRank = int8(b[16])
		p.UserData = b[17]
		p.PointSourceID = le.Uint16(b[18:])
	case ItemGPSTime11:
		p.GPSTime = int64(le.Uint64(b[0:]))
	case ItemRGB12:
		p.RGB[0] = le.Uint16(b[0:])
		p.RGB[1] = le.Uint16(b[2:])
		p.RGB[2] = le.Uint16(b[4:])
	}
}

// PutRecord writes the given items of p into b.
func PutRecord(items []ItemKind, b []byte, p *Point) {
	for _, kind := range items {
		PutItem(kind, b, p)
		b = b[kind.Size():]
	}
}

// GetRecord reads the given items from b into p.
func GetRecord(items []ItemKind, b []byte, p *Point) {
	for _, kind := range items {
		GetItem(kind, b, p)
		b = b[kind.Size():]
	}
}
