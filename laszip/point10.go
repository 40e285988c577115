package laszip

import (
	"fmt"

	"github.com/egonelbre/exp-lidar-compression/arithcode"
	"github.com/egonelbre/exp-lidar-compression/intcomp"
)

// Bits of the Point10 changed-fields mask.
const (
	changedIntensity      = 1 << 5
	changedReturn         = 1 << 4
	changedClassification = 1 << 3
	changedScanAngle      = 1 << 2
	changedUserData       = 1 << 1
	changedPointSource    = 1 << 0
)

// maxCoordContext bounds the context derived from residual bit lengths.
const maxCoordContext = 19

var (
	dxConfig          = intcomp.Config{Bits: 32}
	dyConfig          = intcomp.Config{Bits: 32, Contexts: maxCoordContext + 1}
	zConfig           = intcomp.Config{Bits: 32, Contexts: maxCoordContext + 1}
	intensityConfig   = intcomp.Config{Bits: 16}
	scanAngleConfig   = intcomp.Config{Bits: 8, Contexts: 2}
	pointSourceConfig = intcomp.Config{Bits: 16}
)

// point10 is the prediction state shared by Point10Writer and Point10Reader.
type point10 struct {
	last      Point
	lastXDiff Median3
	lastYDiff Median3

	changed *arithcode.Model

	// Models keyed by the previous value of the field, allocated on first
	// use since most of the 256 values never occur.
	returnModels         [256]*arithcode.Model
	classificationModels [256]*arithcode.Model
	userDataModels       [256]*arithcode.Model
}

func (s *point10) reset(p *Point) {
	s.setLast(p)
	s.lastXDiff.Reset()
	s.lastYDiff.Reset()
	if s.changed == nil {
		s.changed = arithcode.NewModel(64)
	} else {
		s.changed.Init()
	}
	clear(s.returnModels[:])
	clear(s.classificationModels[:])
	clear(s.userDataModels[:])
}

func (s *point10) setLast(p *Point) {
	s.last.X = p.X
	s.last.Y = p.Y
	s.last.Z = p.Z
	s.last.Intensity = p.Intensity
	s.last.Return = p.Return
	s.last.Classification = p.Classification
	s.last.ScanAngleRank = p.ScanAngleRank
	s.last.UserData = p.UserData
	s.last.PointSourceID = p.PointSourceID
}

// changes returns the changed-fields mask of p relative to the last point.
func (s *point10) changes(p *Point) uint32 {
	var changed uint32
	if s.last.Intensity != p.Intensity {
		changed |= changedIntensity
	}
	if s.last.Return != p.Return {
		changed |= changedReturn
	}
	if s.last.Classification != p.Classification {
		changed |= changedClassification
	}
	if s.last.ScanAngleRank != p.ScanAngleRank {
		changed |= changedScanAngle
	}
	if s.last.UserData != p.UserData {
		changed |= changedUserData
	}
	if s.last.PointSourceID != p.PointSourceID {
		changed |= changedPointSource
	}
	return changed
}

func contextModel(models *[256]*arithcode.Model, prev uint8) *arithcode.Model {
	m := models[prev]
	if m == nil {
		m = arithcode.NewModel(256)
		models[prev] = m
	}
	return m
}

// scanAngleContext separates points with tiny coordinate residuals.
func scanAngleContext(k uint32) uint32 {
	if k < 3 {
		return 1
	}
	return 0
}

// Point10Writer compresses the Point10 item.
type Point10Writer struct {
	point10
	enc *arithcode.Encoder

	dx, dy, z   *intcomp.Compressor
	intensity   *intcomp.Compressor
	scanAngle   *intcomp.Compressor
	pointSource *intcomp.Compressor

	// lastChanged is the changed mask of the most recent Write.
	lastChanged uint32
}

// NewPoint10Writer creates a Point10 writer bound to enc.
func NewPoint10Writer(enc *arithcode.Encoder) (*Point10Writer, error) {
	if enc == nil {
		return nil, fmt.Errorf("%v writer: %w", ItemPoint10, ErrNoCoder)
	}
	return newPoint10Writer(enc), nil
}

func newPoint10Writer(enc *arithcode.Encoder) *Point10Writer {
	return &Point10Writer{
		enc:         enc,
		dx:          intcomp.NewCompressor(enc, dxConfig),
		dy:          intcomp.NewCompressor(enc, dyConfig),
		z:           intcomp.NewCompressor(enc, zConfig),
		intensity:   intcomp.NewCompressor(enc, intensityConfig),
		scanAngle:   intcomp.NewCompressor(enc, scanAngleConfig),
		pointSource: intcomp.NewCompressor(enc, pointSourceConfig),
	}
}

// Init implements ItemWriter.
func (w *Point10Writer) Init(p *Point, ctx Context) (Context, error) {
	w.reset(p)
	for _, ic := range []*intcomp.Compressor{w.dx, w.dy, w.z, w.intensity, w.scanAngle, w.pointSource} {
		ic.Init()
	}
	w.lastChanged = 0
	return ctx, nil
}

// Write implements ItemWriter.
func (w *Point10Writer) Write(p *Point, ctx Context) (Context, error) {
	last := &w.last

	medianX := w.lastXDiff.Value()
	medianY := w.lastYDiff.Value()

	dx := p.X - last.X
	if err := w.dx.Compress(medianX, dx, 0); err != nil {
		return ctx, fmt.Errorf("point10 x: %w", err)
	}
	k := w.dx.K()

	dy := p.Y - last.Y
	if err := w.dy.Compress(medianY, dy, min(k, maxCoordContext)); err != nil {
		return ctx, fmt.Errorf("point10 y: %w", err)
	}
	k = (k + w.dy.K()) / 2

	if err := w.z.Compress(last.Z, p.Z, min(k, maxCoordContext)); err != nil {
		return ctx, fmt.Errorf("point10 z: %w", err)
	}

	changed := w.changes(p)
	if err := w.enc.EncodeSymbol(w.changed, changed); err != nil {
		return ctx, fmt.Errorf("point10 changed: %w", err)
	}

	if changed&changedIntensity != 0 {
		if err := w.intensity.Compress(int32(last.Intensity), int32(p.Intensity), 0); err != nil {
			return ctx, fmt.Errorf("point10 intensity: %w", err)
		}
	}
	if changed&changedReturn != 0 {
		if err := w.enc.EncodeSymbol(contextModel(&w.returnModels, last.Return), uint32(p.Return)); err != nil {
			return ctx, fmt.Errorf("point10 return: %w", err)
		}
	}
	if changed&changedClassification != 0 {
		if err := w.enc.EncodeSymbol(contextModel(&w.classificationModels, last.Classification), uint32(p.Classification)); err != nil {
			return ctx, fmt.Errorf("point10 classification: %w", err)
		}
	}
	if changed&changedScanAngle != 0 {
		if err := w.scanAngle.Compress(int32(uint8(last.ScanAngleRank)), int32(uint8(p.ScanAngleRank)), scanAngleContext(k)); err != nil {
			return ctx, fmt.Errorf("point10 scan angle: %w", err)
		}
	}
	if changed&changedUserData != 0 {
		if err := w.enc.EncodeSymbol(contextModel(&w.userDataModels, last.UserData), uint32(p.UserData)); err != nil {
			return ctx, fmt.Errorf("point10 user data: %w", err)
		}
	}
	if changed&changedPointSource != 0 {
		if err := w.pointSource.Compress(int32(last.PointSourceID), int32(p.PointSourceID), 0); err != nil {
			return ctx, fmt.Errorf("point10 point source: %w", err)
		}
	}

	w.lastXDiff.Add(dx)
	w.lastYDiff.Add(dy)
	w.setLast(p)
	w.lastChanged = changed
	return ctx, nil
}

// Point10Reader decompresses the Point10 item.
type Point10Reader struct {
	point10
	dec *arithcode.Decoder

	dx, dy, z   *intcomp.Decompressor
	intensity   *intcomp.Decompressor
	scanAngle   *intcomp.Decompressor
	pointSource *intcomp.Decompressor
}

// NewPoint10Reader creates a Point10 reader bound to dec.
func NewPoint10Reader(dec *arithcode.Decoder) (*Point10Reader, error) {
	if dec == nil {
		return nil, fmt.Errorf("%v reader: %w", ItemPoint10, ErrNoCoder)
	}
	return newPoint10Reader(dec), nil
}

func newPoint10Reader(dec *arithcode.Decoder) *Point10Reader {
	return &Point10Reader{
		dec:         dec,
		dx:          intcomp.NewDecompressor(dec, dxConfig),
		dy:          intcomp.NewDecompressor(dec, dyConfig),
		z:           intcomp.NewDecompressor(dec, zConfig),
		intensity:   intcomp.NewDecompressor(dec, intensityConfig),
		scanAngle:   intcomp.NewDecompressor(dec, scanAngleConfig),
		pointSource: intcomp.NewDecompressor(dec, pointSourceConfig),
	}
}

// Init implements ItemReader.
func (r *Point10Reader) Init(p *Point, ctx Context) (Context, error) {
	r.reset(p)
	for _, ic := range []*intcomp.Decompressor{r.dx, r.dy, r.z, r.intensity, r.scanAngle, r.pointSource} {
		ic.Init()
	}
	return ctx, nil
}

// Read implements ItemReader. It sets X, Y, Z, Intensity, Return,
// Classification, ScanAngleRank, UserData and PointSourceID.
func (r *Point10Reader) Read(p *Point, ctx Context) (Context, error) {
	last := &r.last

	medianX := r.lastXDiff.Value()
	medianY := r.lastYDiff.Value()

	dx, err := r.dx.Decompress(medianX, 0)
	if err != nil {
		return ctx, fmt.Errorf("point10 x: %w", err)
	}
	k := r.dx.K()

	dy, err := r.dy.Decompress(medianY, min(k, maxCoordContext))
	if err != nil {
		return ctx, fmt.Errorf("point10 y: %w", err)
	}
	k = (k + r.dy.K()) / 2

	z, err := r.z.Decompress(last.Z, min(k, maxCoordContext))
	if err != nil {
		return ctx, fmt.Errorf("point10 z: %w", err)
	}

	next := *last
	next.X = last.X + dx
	next.Y = last.Y + dy
	next.Z = z

	changed, err := r.dec.DecodeSymbol(r.changed)
	if err != nil {
		return ctx, fmt.Errorf("point10 changed: %w", err)
	}

	if changed&changedIntensity != 0 {
		v, err := r.intensity.Decompress(int32(last.Intensity), 0)
		if err != nil {
			return ctx, fmt.Errorf("point10 intensity: %w", err)
		}
		next.Intensity = uint16(v)
	}
	if changed&changedReturn != 0 {
		v, err := r.dec.DecodeSymbol(contextModel(&r.returnModels, last.Return))
		if err != nil {
			return ctx, fmt.Errorf("point10 return: %w", err)
		}
		next.Return = uint8(v)
	}
	if changed&changedClassification != 0 {
		v, err := r.dec.DecodeSymbol(contextModel(&r.classificationModels, last.Classification))
		if err != nil {
			return ctx, fmt.Errorf("point10 classification: %w", err)
		}
		next.Classification = uint8(v)
	}
	if changed&changedScanAngle != 0 {
		v, err := r.scanAngle.Decompress(int32(uint8(last.ScanAngleRank)), scanAngleContext(k))
		if err != nil {
			return ctx, fmt.Errorf("point10 scan angle: %w", err)
		}
		next.ScanAngleRank = int8(uint8(v))
	}
	if changed&changedUserData != 0 {
		v, err := r.dec.DecodeSymbol(contextModel(&r.userDataModels, last.UserData))
		if err != nil {
			return ctx, fmt.Errorf("point10 user data: %w", err)
		}
		next.UserData = uint8(v)
	}
	if changed&changedPointSource != 0 {
		v, err := r.pointSource.Decompress(int32(last.PointSourceID), 0)
		if err != nil {
			return ctx, fmt.Errorf("point10 point source: %w", err)
		}
		next.PointSourceID = uint16(v)
	}

	r.lastXDiff.Add(dx)
	r.lastYDiff.Add(dy)
	r.setLast(&next)

	p.X, p.Y, p.Z = next.X, next.Y, next.Z
	p.Intensity = next.Intensity
	p.Return = next.Return
	p.Classification = next.Classification
	p.ScanAngleRank = next.ScanAngleRank
	p.UserData = next.UserData
	p.PointSourceID = next.PointSourceID
	return ctx, nil
}
