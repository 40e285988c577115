// Package intcomp compresses integers relative to a prediction.
//
// The residual between the actual and the predicted value is coded in two
// parts: its bit length k as a symbol of an adaptive model, followed by the
// residual bits themselves. Small residuals therefore cost only a few bits.
// Every call takes a context which selects an independent set of k models,
// so one compressor can keep statistics for several unrelated situations.
package intcomp

import (
	"math"
	"math/bits"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
)

// DefaultBitsHigh is the number of high residual bits coded with a model
// when Config.BitsHigh is zero. Lower bits are written raw.
const DefaultBitsHigh = 8

// Config describes the value range and model layout of a compressor.
type Config struct {
	// Bits is the width of the compressed values, 1..32. Values narrower
	// than 32 bits are treated as unsigned and wrap around modulo 1<<Bits.
	// Zero means 32.
	Bits uint32
	// Contexts is the number of independent contexts. Zero means 1.
	Contexts uint32
	// BitsHigh is the number of high residual bits coded with a model,
	// at most 11. Zero means DefaultBitsHigh.
	BitsHigh uint32
}

// coder holds the state shared by Compressor and Decompressor.
type coder struct {
	contexts uint32
	bitsHigh uint32

	corrBits  uint32
	corrRange uint32
	corrMin   int32
	corrMax   int32

	// Models are allocated on first use and dropped by Init.
	kModels    []*arithcode.Model
	bitModel   *arithcode.BitModel
	corrModels []*arithcode.Model

	k uint32
}

func newCoder(cfg Config) coder {
	c := coder{
		contexts: cfg.Contexts,
		bitsHigh: cfg.BitsHigh,
	}
	if c.contexts == 0 {
		c.contexts = 1
	}
	if c.bitsHigh == 0 {
		c.bitsHigh = DefaultBitsHigh
	}

	if cfg.Bits != 0 && cfg.Bits < 32 {
		c.corrBits = cfg.Bits
		c.corrRange = 1 << cfg.Bits
		c.corrMin = -int32(c.corrRange / 2)
		c.corrMax = c.corrMin + int32(c.corrRange-1)
	} else {
		c.corrBits = 32
		c.corrRange = 0
		c.corrMin = math.MinInt32
		c.corrMax = math.MaxInt32
	}

	c.kModels = make([]*arithcode.Model, c.contexts)
	c.corrModels = make([]*arithcode.Model, c.corrBits+1)
	c.Init()
	return c
}

// Init resets all models to their initial state. It is called at the start
// of every stream or chunk.
func (c *coder) Init() {
	clear(c.kModels)
	clear(c.corrModels)
	c.bitModel = arithcode.NewBitModel()
	c.k = 0
}

// K returns the bit length of the most recently coded residual.
func (c *coder) K() uint32 { return c.k }

func (c *coder) kModel(context uint32) *arithcode.Model {
	m := c.kModels[context]
	if m == nil {
		m = arithcode.NewModel(c.corrBits + 1)
		c.kModels[context] = m
	}
	return m
}

func (c *coder) corrModel(k uint32) *arithcode.Model {
	m := c.corrModels[k]
	if m == nil {
		if k <= c.bitsHigh {
			m = arithcode.NewModel(1 << k)
		} else {
			m = arithcode.NewModel(1 << c.bitsHigh)
		}
		c.corrModels[k] = m
	}
	return m
}

// fold brings a wrapped residual into [corrMin, corrMax].
func (c *coder) fold(corr int32) int32 {
	if c.corrRange == 0 {
		return corr
	}
	if corr < c.corrMin {
		corr += int32(c.corrRange)
	} else if corr > c.corrMax {
		corr -= int32(c.corrRange)
	}
	return corr
}

// unfold brings a reconstructed value back into [0, corrRange).
func (c *coder) unfold(v int32) int32 {
	if c.corrRange == 0 {
		return v
	}
	if v < 0 {
		v += int32(c.corrRange)
	} else if uint32(v) >= c.corrRange {
		v -= int32(c.corrRange)
	}
	return v
}

// bitLength returns the number of bits k needed for the residual corr.
// Residuals 0 and 1 have k == 0, and residual r > 1 or r < 0 lies in
// [-(2^k-1), -2^(k-1)] or [2^(k-1)+1, 2^k].
func bitLength(corr int32) uint32 {
	var c1 uint32
	if corr <= 0 {
		c1 = uint32(-int64(corr))
	} else {
		c1 = uint32(corr - 1)
	}
	return uint32(bits.Len32(c1))
}

// toInterval maps a residual with bit length k (1 <= k < 32) to [0, 2^k).
func toInterval(corr int32, k uint32) uint32 {
	if corr < 0 {
		return uint32(int64(corr) + (1<<k - 1))
	}
	return uint32(corr - 1)
}

// fromInterval is the inverse of toInterval.
func fromInterval(v uint32, k uint32) int32 {
	if v >= 1<<(k-1) {
		return int32(int64(v) + 1)
	}
	return int32(int64(v) - (1<<k - 1))
}
