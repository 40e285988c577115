package arithcode

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
)

func TestModelInit(t *testing.T) {
	model := NewModel(256)

	if model.SymbolCount() != 256 {
		t.Errorf("Expected 256 symbols, got %d", model.SymbolCount())
	}

	for i := 0; i < 256; i++ {
		if got, want := model.distribution[i], uint32(i*128); got != want {
			t.Errorf("distribution[%d] = %d, expected %d", i, got, want)
		}
	}

	if model.decoderTable == nil {
		t.Error("Expected decoder table for 256 symbols")
	}
	if NewModel(16).decoderTable != nil {
		t.Error("Expected no decoder table for 16 symbols")
	}
}

func TestNewModelPanics(t *testing.T) {
	for _, symbols := range []uint32{0, 1, MaxSymbols + 1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("NewModel(%d) did not panic", symbols)
				}
			}()
			NewModel(symbols)
		}()
	}
}

func TestModelRescale(t *testing.T) {
	model := NewModel(256)

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := 0; i < 100000; i++ {
		if err := enc.EncodeSymbol(model, 7); err != nil {
			t.Fatalf("EncodeSymbol failed: %v", err)
		}
		if model.totalCount > maxCount {
			t.Fatalf("total count %d exceeds %d", model.totalCount, maxCount)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for i, c := range model.count {
		if c == 0 {
			t.Fatalf("count[%d] dropped to zero", i)
		}
	}

	if buf.Len() > 2000 {
		t.Errorf("Expected a heavily skewed stream to compress, got %d bytes", buf.Len())
	}
}

func TestRoundtripSymbols(t *testing.T) {
	rng := rand.New(rand.NewSource(12345))

	for _, symbols := range []uint32{2, 3, 5, 16, 17, 64, 256, 512, 2048} {
		for trial := 0; trial < 5; trial++ {
			// Skewed data, so the models actually adapt
			data := make([]uint32, 500+rng.Intn(5000))
			for i := range data {
				if rng.Intn(4) == 0 {
					data[i] = uint32(rng.Intn(int(symbols)))
				} else {
					data[i] = uint32(rng.Intn(int(symbols+3)/4+1)) % symbols
				}
			}

			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			encModel := NewModel(symbols)
			for _, sym := range data {
				if err := enc.EncodeSymbol(encModel, sym); err != nil {
					t.Fatalf("symbols=%d: EncodeSymbol failed: %v", symbols, err)
				}
			}
			if err := enc.Close(); err != nil {
				t.Fatalf("symbols=%d: Close failed: %v", symbols, err)
			}

			dec, err := NewDecoder(&buf)
			if err != nil {
				t.Fatalf("symbols=%d: NewDecoder failed: %v", symbols, err)
			}
			decModel := NewModel(symbols)
			for i, expected := range data {
				sym, err := dec.DecodeSymbol(decModel)
				if err != nil {
					t.Fatalf("symbols=%d, position %d: DecodeSymbol failed: %v", symbols, i, err)
				}
				if sym != expected {
					t.Fatalf("symbols=%d, position %d: expected %d, got %d", symbols, i, expected, sym)
				}
			}
		}
	}
}

func TestRoundtripBits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, p := range []int{2, 10, 100, 1000} {
		data := make([]uint32, 20000)
		for i := range data {
			if rng.Intn(p) == 0 {
				data[i] = 1
			}
		}

		var buf bytes.Buffer
		enc := NewEncoder(&buf)
		encModel := NewBitModel()
		for _, bit := range data {
			if err := enc.EncodeBit(encModel, bit); err != nil {
				t.Fatalf("EncodeBit failed: %v", err)
			}
		}
		if err := enc.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("NewDecoder failed: %v", err)
		}
		decModel := NewBitModel()
		for i, expected := range data {
			bit, err := dec.DecodeBit(decModel)
			if err != nil {
				t.Fatalf("position %d: DecodeBit failed: %v", i, err)
			}
			if bit != expected {
				t.Fatalf("p=1/%d, position %d: expected %d, got %d", p, i, expected, bit)
			}
		}
	}
}

func TestRoundtripRaw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	type raw struct {
		bits  uint32
		value uint64
	}
	var data []raw
	for i := 0; i < 5000; i++ {
		bits := uint32(1 + rng.Intn(32))
		value := uint64(rng.Uint32())
		if bits < 32 {
			value &= 1<<bits - 1
		}
		data = append(data, raw{bits, value})
	}
	data = append(data,
		raw{32, 0xFFFFFFFF},
		raw{64, 0xFFFFFFFFFFFFFFFF},
		raw{64, 0},
		raw{64, 0x8000000000000001},
		raw{16, 0xFFFF},
	)

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, r := range data {
		var err error
		switch r.bits {
		case 64:
			err = enc.WriteInt64(r.value)
		case 16:
			err = enc.WriteShort(uint16(r.value))
		default:
			err = enc.WriteBits(r.bits, uint32(r.value))
		}
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := enc.WriteInt(0xDEADBEEF); err != nil {
		t.Fatalf("WriteInt failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	dec, err := NewDecoder(&buf)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	for i, r := range data {
		var got uint64
		switch r.bits {
		case 64:
			got, err = dec.ReadInt64()
		case 16:
			var v uint16
			v, err = dec.ReadShort()
			got = uint64(v)
		default:
			var v uint32
			v, err = dec.ReadBits(r.bits)
			got = uint64(v)
		}
		if err != nil {
			t.Fatalf("position %d: read failed: %v", i, err)
		}
		if got != r.value {
			t.Fatalf("position %d: expected %d bits %x, got %x", i, r.bits, r.value, got)
		}
	}
	v, err := dec.ReadInt()
	if err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadInt = %x, %v", v, err)
	}
}

func TestRoundtripMixed(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	const n = 30000
	ops := make([]int, n)
	values := make([]uint64, n)
	for i := range ops {
		ops[i] = rng.Intn(4)
		switch ops[i] {
		case 0:
			values[i] = uint64(rng.Intn(3))
		case 1:
			values[i] = uint64(rng.Intn(2))
		case 2:
			values[i] = uint64(rng.Intn(1 << 11))
		case 3:
			values[i] = rng.Uint64()
		}
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	small, bit, large := NewModel(3), NewBitModel(), NewModel(2048)
	for i, op := range ops {
		var err error
		switch op {
		case 0:
			err = enc.EncodeSymbol(small, uint32(values[i]))
		case 1:
			err = enc.EncodeBit(bit, uint32(values[i]))
		case 2:
			err = enc.EncodeSymbol(large, uint32(values[i]))
		case 3:
			err = enc.WriteInt64(values[i])
		}
		if err != nil {
			t.Fatalf("position %d: encode failed: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	dec, err := NewDecoder(&buf)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	small, bit, large = NewModel(3), NewBitModel(), NewModel(2048)
	for i, op := range ops {
		var got uint64
		switch op {
		case 0:
			var v uint32
			v, err = dec.DecodeSymbol(small)
			got = uint64(v)
		case 1:
			var v uint32
			v, err = dec.DecodeBit(bit)
			got = uint64(v)
		case 2:
			var v uint32
			v, err = dec.DecodeSymbol(large)
			got = uint64(v)
		case 3:
			got, err = dec.ReadInt64()
		}
		if err != nil {
			t.Fatalf("position %d: decode failed: %v", i, err)
		}
		if got != values[i] {
			t.Fatalf("position %d (op %d): expected %d, got %d", i, op, values[i], got)
		}
	}
}

func TestEmptyData(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// the final state is written even for empty data
	if buf.Len() < MinStreamSize {
		t.Errorf("Expected at least %d bytes for empty data, got %d", MinStreamSize, buf.Len())
	}

	if _, err := NewDecoder(&buf); err != nil {
		t.Errorf("NewDecoder failed on empty stream: %v", err)
	}
}

func TestDecoderTruncated(t *testing.T) {
	_, err := NewDecoder(bytes.NewReader([]byte{1, 2}))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Expected io.ErrUnexpectedEOF, got %v", err)
	}

	// A stream that ends inside the coded data
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	model := NewModel(256)
	for i := 0; i < 1000; i++ {
		if err := enc.EncodeSymbol(model, uint32(i*31%256)); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	model = NewModel(256)
	for i := 0; i < 1000; i++ {
		if _, err = dec.DecodeSymbol(model); err != nil {
			break
		}
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Expected io.ErrUnexpectedEOF, got %v", err)
	}
}

var errBrokenWriter = errors.New("broken writer")

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errBrokenWriter }

func TestEncoderWriteError(t *testing.T) {
	enc := NewEncoder(brokenWriter{})
	var err error
	for i := 0; i < 10000 && err == nil; i++ {
		err = enc.WriteInt64(uint64(i) * 0x9E3779B97F4A7C15)
	}
	if !errors.Is(err, errBrokenWriter) {
		t.Fatalf("Expected write error, got %v", err)
	}
	if err := enc.Close(); !errors.Is(err, errBrokenWriter) {
		t.Fatalf("Expected sticky write error from Close, got %v", err)
	}
}

func BenchmarkEncode(b *testing.B) {
	data := make([]uint32, 1000)
	rng := rand.New(rand.NewSource(42))
	for i := range data {
		data[i] = uint32(rng.Intn(256))
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		enc := NewEncoder(&buf)
		model := NewModel(256)
		for _, symbol := range data {
			_ = enc.EncodeSymbol(model, symbol)
		}
		_ = enc.Close()
	}
}

func BenchmarkDecode(b *testing.B) {
	data := make([]uint32, 1000)
	rng := rand.New(rand.NewSource(42))
	for i := range data {
		data[i] = uint32(rng.Intn(256))
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	model := NewModel(256)
	for _, symbol := range data {
		_ = enc.EncodeSymbol(model, symbol)
	}
	_ = enc.Close()

	compressed := buf.Bytes()

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dec, _ := NewDecoder(bytes.NewReader(compressed))
		model := NewModel(256)
		for j := 0; j < len(data); j++ {
			_, _ = dec.DecodeSymbol(model)
		}
	}
}
