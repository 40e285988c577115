package laszip

import (
	"fmt"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
	"github.com/egonelbre/exp-lidar-compression/intcomp"
)

var rgbConfig = intcomp.Config{Bits: 8, Contexts: 6}

// rgb12 is the prediction state shared by RGB12Writer and RGB12Reader.
//
// The colour is coded as six bytes, low then high byte of red, green and
// blue. Bit i of the changed mask and context i of the compressor both
// refer to byte i.
type rgb12 struct {
	last    [3]uint16
	changed *arithcode.Model
}

func (s *rgb12) reset(p *Point) {
	s.last = p.RGB
	if s.changed == nil {
		s.changed = arithcode.NewModel(64)
	} else {
		s.changed.Init()
	}
}

func colorByte(rgb *[3]uint16, i int) int32 {
	return int32(rgb[i/2]>>(8*(i%2))) & 0xFF
}

func rgbChanges(last, next *[3]uint16) uint32 {
	var changed uint32
	for i := 0; i < 6; i++ {
		if colorByte(last, i) != colorByte(next, i) {
			changed |= 1 << i
		}
	}
	return changed
}

// RGB12Writer compresses the RGB12 item.
type RGB12Writer struct {
	rgb12
	enc   *arithcode.Encoder
	bytes *intcomp.Compressor
}

// NewRGB12Writer creates an RGB12 writer bound to enc.
func NewRGB12Writer(enc *arithcode.Encoder) (*RGB12Writer, error) {
	if enc == nil {
		return nil, fmt.Errorf("%v writer: %w", ItemRGB12, ErrNoCoder)
	}
	return newRGB12Writer(enc), nil
}

func newRGB12Writer(enc *arithcode.Encoder) *RGB12Writer {
	return &RGB12Writer{
		enc:   enc,
		bytes: intcomp.NewCompressor(enc, rgbConfig),
	}
}

// Init implements ItemWriter.
func (w *RGB12Writer) Init(p *Point, ctx Context) (Context, error) {
	w.reset(p)
	w.bytes.Init()
	return ctx, nil
}

// Write implements ItemWriter.
func (w *RGB12Writer) Write(p *Point, ctx Context) (Context, error) {
	changed := rgbChanges(&w.last, &p.RGB)
	if err := w.enc.EncodeSymbol(w.changed, changed); err != nil {
		return ctx, fmt.Errorf("rgb12 changed: %w", err)
	}
	for i := 0; i < 6; i++ {
		if changed&(1<<i) == 0 {
			continue
		}
		if err := w.bytes.Compress(colorByte(&w.last, i), colorByte(&p.RGB, i), uint32(i)); err != nil {
			return ctx, fmt.Errorf("rgb12 byte %d: %w", i, err)
		}
	}
	w.last = p.RGB
	return ctx, nil
}

// RGB12Reader decompresses the RGB12 item.
type RGB12Reader struct {
	rgb12
	dec   *arithcode.Decoder
	bytes *intcomp.Decompressor
}

// NewRGB12Reader creates an RGB12 reader bound to dec.
func NewRGB12Reader(dec *arithcode.Decoder) (*RGB12Reader, error) {
	if dec == nil {
		return nil, fmt.Errorf("%v reader: %w", ItemRGB12, ErrNoCoder)
	}
	return newRGB12Reader(dec), nil
}

func newRGB12Reader(dec *arithcode.Decoder) *RGB12Reader {
	return &RGB12Reader{
		dec:   dec,
		bytes: intcomp.NewDecompressor(dec, rgbConfig),
	}
}

// Init implements ItemReader.
func (r *RGB12Reader) Init(p *Point, ctx Context) (Context, error) {
	r.reset(p)
	r.bytes.Init()
	return ctx, nil
}

// Read implements ItemReader. It sets RGB.
func (r *RGB12Reader) Read(p *Point, ctx Context) (Context, error) {
	changed, err := r.dec.DecodeSymbol(r.changed)
	if err != nil {
		return ctx, fmt.Errorf("rgb12 changed: %w", err)
	}
	var next [3]uint16
	for i := 0; i < 6; i++ {
		v := colorByte(&r.last, i)
		if changed&(1<<i) != 0 {
			v, err = r.bytes.Decompress(v, uint32(i))
			if err != nil {
				return ctx, fmt.Errorf("rgb12 byte %d: %w", i, err)
			}
		}
		next[i/2] |= uint16(uint8(v)) << (8 * (i % 2))
	}
	r.last = next
	p.RGB = next
	return ctx, nil
}
