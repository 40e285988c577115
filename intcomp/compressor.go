package intcomp

import (
	"github.com/egonelbre/exp-lidar-compression/arithcode"
)

// Compressor writes integers relative to a prediction.
type Compressor struct {
	coder
	enc *arithcode.Encoder
}

// NewCompressor creates a compressor writing to enc.
func NewCompressor(enc *arithcode.Encoder, cfg Config) *Compressor {
	return &Compressor{
		coder: newCoder(cfg),
		enc:   enc,
	}
}

// Compress writes actual relative to pred using the models of context.
// For Bits < 32 both values must lie in [0, 1<<Bits).
func (c *Compressor) Compress(pred, actual int32, context uint32) error {
	corr := c.fold(actual - pred)
	return c.writeCorrector(corr, c.kModel(context))
}

func (c *Compressor) writeCorrector(corr int32, kModel *arithcode.Model) error {
	c.k = bitLength(corr)
	if err := c.enc.EncodeSymbol(kModel, c.k); err != nil {
		return err
	}

	switch {
	case c.k == 0:
		// corr is 0 or 1
		return c.enc.EncodeBit(c.bitModel, uint32(corr))
	case c.k == 32:
		// only math.MinInt32 needs all 32 bits, nothing left to code
		return nil
	case c.k <= c.bitsHigh:
		return c.enc.EncodeSymbol(c.corrModel(c.k), toInterval(corr, c.k))
	default:
		v := toInterval(corr, c.k)
		low := c.k - c.bitsHigh
		if err := c.enc.EncodeSymbol(c.corrModel(c.k), v>>low); err != nil {
			return err
		}
		return c.enc.WriteBits(low, v&(1<<low-1))
	}
}
