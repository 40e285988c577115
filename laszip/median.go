package laszip

// Median3 tracks the last three deltas of an axis and predicts the next
// delta as their median. The median ignores a single outlier jump, which a
// running mean would not.
//
// Slots start at zero, so until three deltas have been added the
// prediction is the median of the added deltas and the remaining zeros.
type Median3 struct {
	values [3]int32
	next   int
}

// Reset clears the history.
func (m *Median3) Reset() { *m = Median3{} }

// Add records an observed delta, replacing the oldest one.
// Call it only after Value has been used for the current prediction.
func (m *Median3) Add(v int32) {
	m.values[m.next] = v
	m.next++
	if m.next == len(m.values) {
		m.next = 0
	}
}

// Value returns the median of the tracked deltas.
func (m *Median3) Value() int32 {
	a, b, c := m.values[0], m.values[1], m.values[2]
	if a < b {
		if b < c {
			return b
		} else if a < c {
			return c
		}
		return a
	}
	if a < c {
		return a
	} else if b < c {
		return c
	}
	return b
}
