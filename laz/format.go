// Package laz stores LiDAR points in a chunked, randomly accessible container.
//
// Points are split into chunks of Config.ChunkSize points. Every chunk is
// compressed independently with the laszip item codecs, so chunks can be
// coded concurrently and decoded individually through the chunk table at the
// end of the file.
package laz

import (
	"errors"
	"fmt"

	"github.com/egonelbre/exp-lidar-compression/laszip"
)

// ErrFormat is returned when a container is malformed.
var ErrFormat = errors.New("laz: invalid format")

// PointFormat is a LAS point data record format.
type PointFormat uint8

// Supported point data record formats.
const (
	Format0 PointFormat = 0 // Point10
	Format1 PointFormat = 1 // Point10, GPSTime11
	Format2 PointFormat = 2 // Point10, RGB12
	Format3 PointFormat = 3 // Point10, GPSTime11, RGB12
)

var formatItems = [...][]laszip.ItemKind{
	Format0: {laszip.ItemPoint10},
	Format1: {laszip.ItemPoint10, laszip.ItemGPSTime11},
	Format2: {laszip.ItemPoint10, laszip.ItemRGB12},
	Format3: {laszip.ItemPoint10, laszip.ItemGPSTime11, laszip.ItemRGB12},
}

// Valid reports whether f is supported.
func (f PointFormat) Valid() bool { return int(f) < len(formatItems) }

// Items returns the item codecs used for f, in coding order.
func (f PointFormat) Items() []laszip.ItemKind {
	if !f.Valid() {
		return nil
	}
	return formatItems[f]
}

// RecordLength returns the size of a LAS point record of format f.
func (f PointFormat) RecordLength() int { return laszip.RecordSize(f.Items()) }

// String implements fmt.Stringer.
func (f PointFormat) String() string {
	if !f.Valid() {
		return fmt.Sprintf("PointFormat(%d)", uint8(f))
	}
	return fmt.Sprintf("format %d", uint8(f))
}

// ParsePointFormat checks that v names a supported point format.
func ParsePointFormat(v uint8) (PointFormat, error) {
	f := PointFormat(v)
	if !f.Valid() {
		return 0, fmt.Errorf("laz: unsupported point format %d", v)
	}
	return f, nil
}
