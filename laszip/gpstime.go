package laszip

import (
	"fmt"
	"math"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
	"github.com/egonelbre/exp-lidar-compression/intcomp"
)

// Symbols of the GPS time models.
//
// While the last difference is zero a three symbol model is used. Otherwise
// the symbol is the ratio between the new and the last difference, with the
// top three symbols reserved.
const (
	gpsZeroUnchanged = 0
	gpsZeroDiff      = 1
	gpsZeroHuge      = 2

	gpsMultiMax       = 512
	gpsMultiExtreme   = gpsMultiMax - 3
	gpsMultiHuge      = gpsMultiMax - 2
	gpsMultiUnchanged = gpsMultiMax - 1

	// gpsExtremeLimit is the number of consecutive extreme multipliers
	// tolerated before the last difference is replaced.
	gpsExtremeLimit = 3
)

var gpsTimeConfig = intcomp.Config{Bits: 32, Contexts: 6}

// gpsTime11 is the prediction state shared by GPSTime11Writer and
// GPSTime11Reader.
type gpsTime11 struct {
	last            int64
	lastDiff        int32
	extremeCounter  int
	zeroDiffModel   *arithcode.Model
	multiplierModel *arithcode.Model
}

func (s *gpsTime11) reset(p *Point) {
	s.last = p.GPSTime
	s.lastDiff = 0
	s.extremeCounter = 0
	if s.zeroDiffModel == nil {
		s.zeroDiffModel = arithcode.NewModel(3)
		s.multiplierModel = arithcode.NewModel(gpsMultiMax)
	} else {
		s.zeroDiffModel.Init()
		s.multiplierModel.Init()
	}
}

// multiplier returns diff/lastDiff rounded to the nearest integer and clamped
// to [0, gpsMultiExtreme].
func multiplier(diff, lastDiff int32) uint32 {
	f := float64(diff) / float64(lastDiff)
	if f >= gpsMultiExtreme {
		return gpsMultiExtreme
	}
	m := math.Floor(f + 0.5)
	if m <= 0 {
		return 0
	}
	return uint32(m)
}

// predict returns the prediction and the compressor context for a
// multiplier symbol in [0, gpsMultiExtreme].
func (s *gpsTime11) predict(multi uint32) (int32, uint32) {
	switch {
	case multi == 0:
		return 0, 5
	case multi == 1:
		return s.lastDiff, 1
	case multi < 10:
		return int32(multi) * s.lastDiff, 2
	case multi < 50:
		return int32(multi) * s.lastDiff, 3
	default:
		return int32(multi) * s.lastDiff, 4
	}
}

// advance applies a difference coded with the multiplier symbol.
func (s *gpsTime11) advance(multi uint32, diff int32) {
	s.last += int64(diff)
	switch {
	case multi == 1:
		s.lastDiff = diff
		s.extremeCounter = 0
	case multi > 1 && multi < gpsMultiExtreme:
		s.extremeCounter = 0
	default:
		s.extremeCounter++
		if s.extremeCounter > gpsExtremeLimit {
			s.lastDiff = diff
			s.extremeCounter = 0
		}
	}
}

// GPSTime11Writer compresses the GPSTime11 item.
type GPSTime11Writer struct {
	gpsTime11
	enc  *arithcode.Encoder
	diff *intcomp.Compressor
}

// NewGPSTime11Writer creates a GPSTime11 writer bound to enc.
func NewGPSTime11Writer(enc *arithcode.Encoder) (*GPSTime11Writer, error) {
	if enc == nil {
		return nil, fmt.Errorf("%v writer: %w", ItemGPSTime11, ErrNoCoder)
	}
	return newGPSTime11Writer(enc), nil
}

func newGPSTime11Writer(enc *arithcode.Encoder) *GPSTime11Writer {
	return &GPSTime11Writer{
		enc:  enc,
		diff: intcomp.NewCompressor(enc, gpsTimeConfig),
	}
}

// Init implements ItemWriter.
func (w *GPSTime11Writer) Init(p *Point, ctx Context) (Context, error) {
	w.reset(p)
	w.diff.Init()
	return ctx, nil
}

// Write implements ItemWriter.
func (w *GPSTime11Writer) Write(p *Point, ctx Context) (Context, error) {
	if err := w.write(p.GPSTime); err != nil {
		return ctx, fmt.Errorf("gpstime11: %w", err)
	}
	return ctx, nil
}

func (w *GPSTime11Writer) write(t int64) error {
	diff64 := t - w.last
	diff := int32(diff64)
	fits := int64(diff) == diff64

	if w.lastDiff == 0 {
		switch {
		case t == w.last:
			return w.enc.EncodeSymbol(w.zeroDiffModel, gpsZeroUnchanged)
		case fits:
			if err := w.enc.EncodeSymbol(w.zeroDiffModel, gpsZeroDiff); err != nil {
				return err
			}
			if err := w.diff.Compress(0, diff, 0); err != nil {
				return err
			}
			w.lastDiff = diff
		default:
			if err := w.enc.EncodeSymbol(w.zeroDiffModel, gpsZeroHuge); err != nil {
				return err
			}
			if err := w.enc.WriteInt64(uint64(t)); err != nil {
				return err
			}
		}
		w.last = t
		return nil
	}

	switch {
	case t == w.last:
		return w.enc.EncodeSymbol(w.multiplierModel, gpsMultiUnchanged)
	case fits:
		multi := multiplier(diff, w.lastDiff)
		if err := w.enc.EncodeSymbol(w.multiplierModel, multi); err != nil {
			return err
		}
		pred, context := w.predict(multi)
		if err := w.diff.Compress(pred, diff, context); err != nil {
			return err
		}
		w.advance(multi, diff)
	default:
		if err := w.enc.EncodeSymbol(w.multiplierModel, gpsMultiHuge); err != nil {
			return err
		}
		if err := w.enc.WriteInt64(uint64(t)); err != nil {
			return err
		}
		w.last = t
	}
	return nil
}

// GPSTime11Reader decompresses the GPSTime11 item.
type GPSTime11Reader struct {
	gpsTime11
	dec  *arithcode.Decoder
	diff *intcomp.Decompressor
}

// NewGPSTime11Reader creates a GPSTime11 reader bound to dec.
func NewGPSTime11Reader(dec *arithcode.Decoder) (*GPSTime11Reader, error) {
	if dec == nil {
		return nil, fmt.Errorf("%v reader: %w", ItemGPSTime11, ErrNoCoder)
	}
	return newGPSTime11Reader(dec), nil
}

func newGPSTime11Reader(dec *arithcode.Decoder) *GPSTime11Reader {
	return &GPSTime11Reader{
		dec:  dec,
		diff: intcomp.NewDecompressor(dec, gpsTimeConfig),
	}
}

// Init implements ItemReader.
func (r *GPSTime11Reader) Init(p *Point, ctx Context) (Context, error) {
	r.reset(p)
	r.diff.Init()
	return ctx, nil
}

// Read implements ItemReader. It sets GPSTime.
func (r *GPSTime11Reader) Read(p *Point, ctx Context) (Context, error) {
	if err := r.read(); err != nil {
		return ctx, fmt.Errorf("gpstime11: %w", err)
	}
	p.GPSTime = r.last
	return ctx, nil
}

func (r *GPSTime11Reader) read() error {
	if r.lastDiff == 0 {
		sym, err := r.dec.DecodeSymbol(r.zeroDiffModel)
		if err != nil {
			return err
		}
		switch sym {
		case gpsZeroDiff:
			diff, err := r.diff.Decompress(0, 0)
			if err != nil {
				return err
			}
			r.lastDiff = diff
			r.last += int64(diff)
		case gpsZeroHuge:
			t, err := r.dec.ReadInt64()
			if err != nil {
				return err
			}
			r.last = int64(t)
		}
		return nil
	}

	multi, err := r.dec.DecodeSymbol(r.multiplierModel)
	if err != nil {
		return err
	}
	switch {
	case multi <= gpsMultiExtreme:
		pred, context := r.predict(multi)
		diff, err := r.diff.Decompress(pred, context)
		if err != nil {
			return err
		}
		r.advance(multi, diff)
	case multi == gpsMultiHuge:
		t, err := r.dec.ReadInt64()
		if err != nil {
			return err
		}
		r.last = int64(t)
	}
	return nil
}
