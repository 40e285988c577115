package main

import (
	"bytes"
	"fmt"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/egonelbre/exp-lidar-compression/las"
	"github.com/egonelbre/exp-lidar-compression/laz"
)

var (
	lasType       = filetype.NewType("las", "application/vnd.las")
	containerType = filetype.NewType("lzpc", "application/x-lzpc")
)

func init() {
	filetype.AddMatcher(lasType, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte(las.Signature))
	})
	filetype.AddMatcher(containerType, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte(laz.Magic))
	})
}

// expectFile checks that the file at path starts with the signature of kind.
func expectFile(path string, kind types.Type) error {
	got, err := filetype.MatchFile(path)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	if got == kind {
		return nil
	}
	if got == filetype.Unknown {
		return fmt.Errorf("%s: not a %s file", path, kind.Extension)
	}
	return fmt.Errorf("%s: expected %s file, found %s", path, kind.Extension, got.Extension)
}
