package larva

// PerceptionHistory is the log of concentrations sensed at the head, one per
// tick. Only a trailing window is ever read by the rate estimators, so the
// samples live in a fixed-capacity circular buffer while Len still counts
// every sample ever appended.
type PerceptionHistory struct {
	// Rolling history (circular buffer)
	samples []float64
	size    int
	idx     int // next write position
	full    bool

	count int
}

// NewPerceptionHistory creates a history retaining the most recent capacity samples.
func NewPerceptionHistory(capacity int) *PerceptionHistory {
	if capacity < 2 {
		capacity = 2 // one sample plus its predecessor
	}
	return &PerceptionHistory{
		samples: make([]float64, capacity),
		size:    capacity,
	}
}

// Append records the newest sample.
func (h *PerceptionHistory) Append(c float64) {
	h.samples[h.idx] = c
	h.idx++
	if h.idx == h.size {
		h.idx = 0
		h.full = true
	}
	h.count++
}

// Len returns the number of samples appended since construction.
func (h *PerceptionHistory) Len() int {
	return h.count
}

// Cap returns the number of samples retained.
func (h *PerceptionHistory) Cap() int {
	return h.size
}

// Retained returns how many samples are currently readable.
func (h *PerceptionHistory) Retained() int {
	if h.full {
		return h.size
	}
	return h.idx
}

// At returns the sample lag ticks before the newest one (lag 0 is the newest).
func (h *PerceptionHistory) At(lag int) (float64, bool) {
	if lag < 0 || lag >= h.Retained() {
		return 0, false
	}
	i := h.idx - 1 - lag
	if i < 0 {
		i += h.size
	}
	return h.samples[i], true
}

// Latest returns the newest sample.
func (h *PerceptionHistory) Latest() (float64, bool) {
	return h.At(0)
}

// Recent returns up to n samples, oldest first.
func (h *PerceptionHistory) Recent(n int) []float64 {
	if r := h.Retained(); n > r {
		n = r
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[n-1-i], _ = h.At(i)
	}
	return out
}
