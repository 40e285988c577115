package laszip

import (
	"errors"
	"fmt"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
)

// ErrNoCoder is returned when an item codec is constructed without an
// encoder or decoder to bind to.
var ErrNoCoder = errors.New("laszip: codec needs an encoder or decoder")

// Context is threaded through every item call. The v1 codecs return it
// unchanged; it is reserved for codecs that partition their models per
// context, for example per return number.
type Context uint32

// ItemWriter compresses the fields of one item.
type ItemWriter interface {
	// Init resets all state from the first point of a chunk. The first
	// point itself is not coded.
	Init(p *Point, ctx Context) (Context, error)
	// Write codes the item fields of p.
	Write(p *Point, ctx Context) (Context, error)
}

// ItemReader decompresses the fields of one item.
type ItemReader interface {
	// Init resets all state from the first point of a chunk.
	Init(p *Point, ctx Context) (Context, error)
	// Read decodes the item fields into p. Fields owned by other items are
	// left untouched.
	Read(p *Point, ctx Context) (Context, error)
}

// NewItemWriter creates a writer for the item kind bound to enc.
func NewItemWriter(kind ItemKind, enc *arithcode.Encoder) (ItemWriter, error) {
	if enc == nil {
		return nil, fmt.Errorf("%v writer: %w", kind, ErrNoCoder)
	}
	switch kind {
	case ItemPoint10:
		return newPoint10Writer(enc), nil
	case ItemGPSTime11:
		return newGPSTime11Writer(enc), nil
	case ItemRGB12:
		return newRGB12Writer(enc), nil
	default:
		return nil, fmt.Errorf("laszip: unsupported item %v", kind)
	}
}

// NewItemReader creates a reader for the item kind bound to dec.
func NewItemReader(kind ItemKind, dec *arithcode.Decoder) (ItemReader, error) {
	if dec == nil {
		return nil, fmt.Errorf("%v reader: %w", kind, ErrNoCoder)
	}
	switch kind {
	case ItemPoint10:
		return newPoint10Reader(dec), nil
	case ItemGPSTime11:
		return newGPSTime11Reader(dec), nil
	case ItemRGB12:
		return newRGB12Reader(dec), nil
	default:
		return nil, fmt.Errorf("laszip: unsupported item %v", kind)
	}
}
