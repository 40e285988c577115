package intcomp

import (
	"math"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
)

// Decompressor reads integers written by Compressor.
type Decompressor struct {
	coder
	dec *arithcode.Decoder
}

// NewDecompressor creates a decompressor reading from dec.
// The configuration must match the one used for compression.
func NewDecompressor(dec *arithcode.Decoder, cfg Config) *Decompressor {
	return &Decompressor{
		coder: newCoder(cfg),
		dec:   dec,
	}
}

// Decompress reads a value predicted as pred using the models of context.
func (d *Decompressor) Decompress(pred int32, context uint32) (int32, error) {
	corr, err := d.readCorrector(d.kModel(context))
	if err != nil {
		return 0, err
	}
	return d.unfold(pred + corr), nil
}

func (d *Decompressor) readCorrector(kModel *arithcode.Model) (int32, error) {
	k, err := d.dec.DecodeSymbol(kModel)
	if err != nil {
		return 0, err
	}
	d.k = k

	switch {
	case k == 0:
		bit, err := d.dec.DecodeBit(d.bitModel)
		return int32(bit), err
	case k == 32:
		return math.MinInt32, nil
	case k <= d.bitsHigh:
		v, err := d.dec.DecodeSymbol(d.corrModel(k))
		if err != nil {
			return 0, err
		}
		return fromInterval(v, k), nil
	default:
		low := k - d.bitsHigh
		high, err := d.dec.DecodeSymbol(d.corrModel(k))
		if err != nil {
			return 0, err
		}
		lowBits, err := d.dec.ReadBits(low)
		if err != nil {
			return 0, err
		}
		return fromInterval(high<<low|lowBits, k), nil
	}
}
