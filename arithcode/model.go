// Package arithcode implements adaptive arithmetic coding for data compression.
// Arithmetic coding is an entropy encoding technique that represents
// messages as a single narrowed interval, achieving compression rates close to
// the theoretical Shannon limit when the probability models are accurate.
//
// The coder works on 32-bit intervals and emits whole bytes. Models adapt to
// the coded data, so an encoder and a decoder stay in sync only when they see
// exactly the same sequence of model operations.
package arithcode

const (
	// lengthShift is the precision of the cumulative distribution in Model.
	lengthShift = 15
	// maxCount is the total count at which Model halves its counters.
	maxCount = 1 << lengthShift

	// bitLengthShift is the precision of the probability in BitModel.
	bitLengthShift = 13
	// bitMaxCount is the total count at which BitModel halves its counters.
	bitMaxCount = 1 << bitLengthShift

	// MinSymbols and MaxSymbols bound the alphabet size of a Model.
	MinSymbols = 2
	MaxSymbols = 1 << 11
)

// Model is an adaptive probability model over a fixed alphabet of symbols.
//
// Every coded symbol increments its counter. The cumulative distribution is
// rebuilt periodically, with the period growing until it reaches a cap so
// that the cost of adaptation stays bounded. When the total count exceeds
// maxCount all counters are halved, which keeps the model responsive to
// recent statistics.
type Model struct {
	symbols    uint32
	lastSymbol uint32

	distribution []uint32 // cumulative distribution scaled to 1<<lengthShift
	count        []uint32 // per-symbol counters

	// decoderTable speeds up symbol search for large alphabets.
	decoderTable []uint32
	tableShift   uint32

	totalCount         uint32
	updateCycle        uint32
	symbolsUntilUpdate uint32
}

// NewModel creates an adaptive model with the given number of symbols,
// initialized to a uniform distribution.
func NewModel(symbols uint32) *Model {
	if symbols < MinSymbols || symbols > MaxSymbols {
		panic("arithcode: symbol count out of range")
	}

	m := &Model{
		symbols:      symbols,
		lastSymbol:   symbols - 1,
		distribution: make([]uint32, symbols),
		count:        make([]uint32, symbols),
	}

	if symbols > 16 {
		tableBits := uint32(3)
		for symbols > 1<<(tableBits+2) {
			tableBits++
		}
		m.decoderTable = make([]uint32, (1<<tableBits)+2)
		m.tableShift = lengthShift - tableBits
	}

	m.Init()
	return m
}

// SymbolCount returns the number of symbols in the alphabet.
func (m *Model) SymbolCount() int { return int(m.symbols) }

// Init resets the model to a uniform distribution.
func (m *Model) Init() {
	m.totalCount = 0
	m.updateCycle = m.symbols
	for i := range m.count {
		m.count[i] = 1
	}
	m.update()
	m.updateCycle = (m.symbols + 6) >> 1
	m.symbolsUntilUpdate = m.updateCycle
}

// observe records one occurrence of sym.
func (m *Model) observe(sym uint32) {
	m.count[sym]++
	m.symbolsUntilUpdate--
	if m.symbolsUntilUpdate == 0 {
		m.update()
	}
}

// update rebuilds the cumulative distribution from the counters.
func (m *Model) update() {
	m.totalCount += m.updateCycle
	if m.totalCount > maxCount {
		m.totalCount = 0
		for i, c := range m.count {
			c = (c + 1) >> 1
			m.count[i] = c
			m.totalCount += c
		}
	}

	scale := uint32(0x80000000) / m.totalCount
	var sum uint32
	if m.decoderTable == nil {
		for k, c := range m.count {
			m.distribution[k] = (scale * sum) >> (31 - lengthShift)
			sum += c
		}
	} else {
		tableSize := uint32(len(m.decoderTable) - 2)
		var s uint32
		for k, c := range m.count {
			m.distribution[k] = (scale * sum) >> (31 - lengthShift)
			sum += c
			w := m.distribution[k] >> m.tableShift
			for s < w {
				s++
				m.decoderTable[s] = uint32(k) - 1
			}
		}
		m.decoderTable[0] = 0
		for s <= tableSize {
			s++
			m.decoderTable[s] = m.symbols - 1
		}
	}

	m.updateCycle = (5 * m.updateCycle) >> 2
	maxCycle := (m.symbols + 6) << 3
	if m.updateCycle > maxCycle {
		m.updateCycle = maxCycle
	}
	m.symbolsUntilUpdate = m.updateCycle
}

// BitModel is an adaptive probability model for a binary alphabet.
type BitModel struct {
	bit0Prob        uint32 // probability of 0 scaled to 1<<bitLengthShift
	bit0Count       uint32
	bitCount        uint32
	updateCycle     uint32
	bitsUntilUpdate uint32
}

// NewBitModel creates a binary model where both bits are equally likely.
func NewBitModel() *BitModel {
	m := &BitModel{}
	m.Init()
	return m
}

// Init resets the model to equal probabilities.
func (m *BitModel) Init() {
	m.bit0Count = 1
	m.bitCount = 2
	m.bit0Prob = 1 << (bitLengthShift - 1)
	m.updateCycle = 4
	m.bitsUntilUpdate = 4
}

func (m *BitModel) observe(bit uint32) {
	if bit == 0 {
		m.bit0Count++
	}
	m.bitsUntilUpdate--
	if m.bitsUntilUpdate == 0 {
		m.update()
	}
}

func (m *BitModel) update() {
	m.bitCount += m.updateCycle
	if m.bitCount > bitMaxCount {
		m.bitCount = (m.bitCount + 1) >> 1
		m.bit0Count = (m.bit0Count + 1) >> 1
		if m.bit0Count == m.bitCount {
			m.bitCount++
		}
	}

	scale := uint32(0x80000000) / m.bitCount
	m.bit0Prob = (m.bit0Count * scale) >> (31 - bitLengthShift)

	m.updateCycle = (5 * m.updateCycle) >> 2
	if m.updateCycle > 64 {
		m.updateCycle = 64
	}
	m.bitsUntilUpdate = m.updateCycle
}
