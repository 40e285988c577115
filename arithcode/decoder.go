package arithcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Decoder decompresses data using arithmetic coding.
//
// The decoder must be driven with exactly the same sequence of models and
// raw reads that the encoder used; there is no way to detect a mismatch.
type Decoder struct {
	input  io.ByteReader
	value  uint32 // offset of the code value inside the current interval
	length uint32 // size of the current interval
	err    error
}

// NewDecoder creates a new arithmetic decoder that reads from r.
// If r does not implement io.ByteReader it is wrapped in a bufio.Reader,
// which may read past the end of the encoded stream.
func NewDecoder(r io.Reader) (*Decoder, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	d := &Decoder{
		input:  br,
		length: maxLength,
	}

	// Read initial value (4 bytes, big-endian)
	for i := 0; i < 4; i++ {
		d.value = d.value<<8 | uint32(d.readByte())
	}
	if d.err != nil {
		return nil, d.err
	}
	return d, nil
}

// DecodeSymbol reads and returns the next symbol using the given model and
// updates the model.
func (d *Decoder) DecodeSymbol(m *Model) (uint32, error) {
	var sym, x uint32
	y := d.length

	if m.decoderTable != nil {
		d.length >>= lengthShift
		dv := d.value / d.length
		t := dv >> m.tableShift

		sym = m.decoderTable[t]
		n := m.decoderTable[t+1] + 1
		for n > sym+1 {
			k := (sym + n) >> 1
			if m.distribution[k] > dv {
				n = k
			} else {
				sym = k
			}
		}

		x = m.distribution[sym] * d.length
		if sym != m.lastSymbol {
			y = m.distribution[sym+1] * d.length
		}
	} else {
		// Binary search over the cumulative distribution
		d.length >>= lengthShift
		n := m.symbols
		k := n >> 1
		for {
			z := d.length * m.distribution[k]
			if z > d.value {
				n = k
				y = z
			} else {
				sym = k
				x = z
			}
			k = (sym + n) >> 1
			if k == sym {
				break
			}
		}
	}

	d.value -= x
	d.length = y - x
	if d.length < minLength {
		d.renormalize()
	}
	m.observe(sym)
	return sym, d.err
}

// DecodeBit reads a single bit using the given model and updates the model.
func (d *Decoder) DecodeBit(m *BitModel) (uint32, error) {
	x := m.bit0Prob * (d.length >> bitLengthShift)
	var bit uint32
	if d.value >= x {
		bit = 1
		d.value -= x
		d.length -= x
	} else {
		d.length = x
	}
	if d.length < minLength {
		d.renormalize()
	}
	m.observe(bit)
	return bit, d.err
}

// ReadBits reads bits raw bits written by Encoder.WriteBits.
func (d *Decoder) ReadBits(bits uint32) (uint32, error) {
	if bits > 19 {
		low, err := d.ReadShort()
		if err != nil {
			return 0, err
		}
		high, err := d.ReadBits(bits - 16)
		if err != nil {
			return 0, err
		}
		return high<<16 | uint32(low), nil
	}

	d.length >>= bits
	sym := d.value / d.length
	d.value -= d.length * sym
	if d.length < minLength {
		d.renormalize()
	}
	return sym, d.err
}

// ReadShort reads 16 raw bits.
func (d *Decoder) ReadShort() (uint16, error) {
	d.length >>= 16
	sym := d.value / d.length
	d.value -= d.length * sym
	if d.length < minLength {
		d.renormalize()
	}
	return uint16(sym), d.err
}

// ReadInt reads 32 raw bits.
func (d *Decoder) ReadInt() (uint32, error) {
	low, err := d.ReadShort()
	if err != nil {
		return 0, err
	}
	high, err := d.ReadShort()
	if err != nil {
		return 0, err
	}
	return uint32(high)<<16 | uint32(low), nil
}

// ReadInt64 reads 64 raw bits.
func (d *Decoder) ReadInt64() (uint64, error) {
	low, err := d.ReadInt()
	if err != nil {
		return 0, err
	}
	high, err := d.ReadInt()
	if err != nil {
		return 0, err
	}
	return uint64(high)<<32 | uint64(low), nil
}

func (d *Decoder) renormalize() {
	for {
		d.value = d.value<<8 | uint32(d.readByte())
		d.length <<= 8
		if d.length >= minLength {
			return
		}
	}
}

func (d *Decoder) readByte() byte {
	if d.err != nil {
		return 0
	}
	b, err := d.input.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = fmt.Errorf("arithcode: read: %w", err)
		return 0
	}
	return b
}
