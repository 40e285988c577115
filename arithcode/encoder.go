package arithcode

import (
	"fmt"
	"io"
)

const (
	// minLength is the interval length below which the coder renormalizes.
	minLength uint32 = 0x01000000
	// maxLength is the initial interval length.
	maxLength uint32 = 0xFFFFFFFF

	// bufferSize is half of the encoder output ring. Bytes are handed to the
	// writer one half at a time so that a carry can still reach the most
	// recent bufferSize bytes.
	bufferSize = 1024
)

// MinStreamSize is the smallest number of bytes Close produces, which is
// also what NewDecoder reads up front.
const MinStreamSize = 4

// Encoder compresses data using arithmetic coding.
//
// Write errors are sticky: once the underlying writer fails, every further
// call returns the same error.
type Encoder struct {
	output io.Writer
	buffer [2 * bufferSize]byte
	pos    int // next byte to write in buffer
	end    int // position at which the next half is flushed

	base   uint32 // lower bound of the current interval
	length uint32 // size of the current interval

	err error
}

// NewEncoder creates a new arithmetic encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		output: w,
		end:    2 * bufferSize,
		base:   0,
		length: maxLength,
	}
}

// EncodeSymbol writes a symbol using the given model and updates the model.
func (e *Encoder) EncodeSymbol(m *Model, sym uint32) error {
	initBase := e.base
	if sym == m.lastSymbol {
		x := m.distribution[sym] * (e.length >> lengthShift)
		e.base += x
		e.length -= x
	} else {
		e.length >>= lengthShift
		x := m.distribution[sym] * e.length
		e.base += x
		e.length = m.distribution[sym+1]*e.length - x
	}
	if initBase > e.base {
		e.propagateCarry()
	}
	if e.length < minLength {
		e.renormalize()
	}
	m.observe(sym)
	return e.err
}

// EncodeBit writes a single bit using the given model and updates the model.
func (e *Encoder) EncodeBit(m *BitModel, bit uint32) error {
	x := m.bit0Prob * (e.length >> bitLengthShift)
	if bit == 0 {
		e.length = x
	} else {
		initBase := e.base
		e.base += x
		e.length -= x
		if initBase > e.base {
			e.propagateCarry()
		}
	}
	if e.length < minLength {
		e.renormalize()
	}
	m.observe(bit)
	return e.err
}

// WriteBits writes the low bits of sym without modelling.
// bits must be in range [1, 32].
func (e *Encoder) WriteBits(bits uint32, sym uint32) error {
	if bits > 19 {
		if err := e.WriteShort(uint16(sym)); err != nil {
			return err
		}
		sym >>= 16
		bits -= 16
	}

	initBase := e.base
	e.length >>= bits
	e.base += sym * e.length
	if initBase > e.base {
		e.propagateCarry()
	}
	if e.length < minLength {
		e.renormalize()
	}
	return e.err
}

// WriteShort writes 16 raw bits.
func (e *Encoder) WriteShort(sym uint16) error {
	initBase := e.base
	e.length >>= 16
	e.base += uint32(sym) * e.length
	if initBase > e.base {
		e.propagateCarry()
	}
	if e.length < minLength {
		e.renormalize()
	}
	return e.err
}

// WriteInt writes 32 raw bits, low half first.
func (e *Encoder) WriteInt(v uint32) error {
	if err := e.WriteShort(uint16(v)); err != nil {
		return err
	}
	return e.WriteShort(uint16(v >> 16))
}

// WriteInt64 writes 64 raw bits, low half first.
func (e *Encoder) WriteInt64(v uint64) error {
	if err := e.WriteInt(uint32(v)); err != nil {
		return err
	}
	return e.WriteInt(uint32(v >> 32))
}

// Close finalizes the encoding and flushes any remaining bytes.
// It does not close the underlying writer.
func (e *Encoder) Close() error {
	initBase := e.base
	anotherByte := true
	if e.length > 2*minLength {
		e.base += minLength
		e.length = minLength >> 1
	} else {
		e.base += minLength >> 1
		e.length = minLength >> 9
		anotherByte = false
	}
	if initBase > e.base {
		e.propagateCarry()
	}
	e.renormalize()

	if e.end != len(e.buffer) {
		e.write(e.buffer[bufferSize:])
	}
	e.write(e.buffer[:e.pos])

	// The decoder reads ahead, pad so it never runs past the end.
	if anotherByte {
		e.write([]byte{0, 0, 0})
	} else {
		e.write([]byte{0, 0})
	}
	return e.err
}

func (e *Encoder) propagateCarry() {
	p := e.pos - 1
	if p < 0 {
		p = len(e.buffer) - 1
	}
	for e.buffer[p] == 0xFF {
		e.buffer[p] = 0
		p--
		if p < 0 {
			p = len(e.buffer) - 1
		}
	}
	e.buffer[p]++
}

func (e *Encoder) renormalize() {
	for {
		e.buffer[e.pos] = byte(e.base >> 24)
		e.pos++
		if e.pos == e.end {
			e.flushHalf()
		}
		e.base <<= 8
		e.length <<= 8
		if e.length >= minLength {
			return
		}
	}
}

// flushHalf hands the half of the ring that is about to be overwritten to
// the writer.
func (e *Encoder) flushHalf() {
	if e.pos == len(e.buffer) {
		e.pos = 0
	}
	e.write(e.buffer[e.pos : e.pos+bufferSize])
	e.end = e.pos + bufferSize
}

func (e *Encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.output.Write(p); err != nil {
		e.err = fmt.Errorf("arithcode: write: %w", err)
	}
}
