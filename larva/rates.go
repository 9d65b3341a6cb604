package larva

import "math"

// Rates holds the four per-tick transition probabilities, already scaled by
// the timestep. WV is a threshold-comparable rate and may leave [0, 1].
type Rates struct {
	RunTerm      float64
	CastTerm     float64
	WV           float64
	WVCastResume float64
}

// RateEstimator turns a perception history into transition probabilities by
// convolving finite-difference log-derivatives with per-behavior kernels.
type RateEstimator struct {
	dt float64
	p  Params

	kRunTerm  Kernel
	kCastTerm Kernel
	kWV       Kernel

	runSteps int // lags read by the run and cast estimators
	wvSteps  int // lags read by the weathervane estimator

	phi []float64 // scratch, reused across ticks
}

// NewRateEstimator precomputes the kernels for timestep dt.
func NewRateEstimator(dt float64, p Params) *RateEstimator {
	e := &RateEstimator{
		dt:        dt,
		p:         p,
		kRunTerm:  RunTermKernel(dt, p.TRunTerm),
		kCastTerm: CastTermKernel(dt, p.TCastTerm),
		kWV:       WeathervaneKernel(dt, p.TWVShortAvg, p.TWVLongAvg, p.KWVMult),
		runSteps:  stepCount(p.TRunTerm, dt),
		wvSteps:   stepCount(p.TWVShortAvg+p.TWVLongAvg, dt),
	}
	e.phi = make([]float64, e.MaxLag())
	return e
}

// MaxLag returns the deepest lag any estimator reads.
func (e *RateEstimator) MaxLag() int {
	if e.wvSteps > e.runSteps {
		return e.wvSteps
	}
	return e.runSteps
}

// HistoryCapacity returns the number of samples a history must retain so
// that every lag read by the estimators still has its predecessor.
func (e *RateEstimator) HistoryCapacity() int {
	return e.MaxLag() + 1
}

// RunTermKernel returns the run-termination kernel.
func (e *RateEstimator) RunTermKernel() Kernel { return e.kRunTerm }

// CastTermKernel returns the cast-termination kernel.
func (e *RateEstimator) CastTermKernel() Kernel { return e.kCastTerm }

// logDerivatives writes phi for lags [0, n) into dst. phi at a lag is the
// log difference between that sample and its predecessor over dt, or 0 when
// the predecessor was never sensed.
func logDerivatives(dst []float64, h *PerceptionHistory, dt float64) []float64 {
	for lag := range dst {
		c, ok := h.At(lag)
		prev, okPrev := h.At(lag + 1)
		if !ok || !okPrev {
			dst[lag] = 0
			continue
		}
		dst[lag] = (math.Log(c) - math.Log(prev)) / dt
	}
	return dst
}

// window returns the number of lags an estimator bounded by steps reads.
func window(h *PerceptionHistory, steps int) int {
	if n := h.Len(); n < steps {
		return n
	}
	return steps
}

func (e *RateEstimator) derivatives(h *PerceptionHistory) []float64 {
	return logDerivatives(e.phi[:window(h, e.MaxLag())], h, e.dt)
}

func (e *RateEstimator) runTerm(phi []float64, h *PerceptionHistory) float64 {
	n := window(h, e.runSteps)
	return e.dt * (e.p.RunTermBase + e.kRunTerm.Convolve(phi[:n]))
}

// castTerm is bounded by the run-termination window, not TCastTerm.
func (e *RateEstimator) castTerm(phi []float64, h *PerceptionHistory) float64 {
	n := window(h, e.runSteps)
	return e.dt * (e.p.CastTermBase + e.kCastTerm.Convolve(phi[:n]))
}

func (e *RateEstimator) wv(phi []float64, h *PerceptionHistory) float64 {
	n := window(h, e.wvSteps)
	return e.dt * (e.p.WVTermBase + e.kWV.Convolve(phi[:n]))
}

// PRunTerm returns the probability of ending the current run this tick.
func (e *RateEstimator) PRunTerm(h *PerceptionHistory) float64 {
	return e.runTerm(e.derivatives(h), h)
}

// PCastTerm returns the probability of ending the current cast this tick.
func (e *RateEstimator) PCastTerm(h *PerceptionHistory) float64 {
	return e.castTerm(e.derivatives(h), h)
}

// PWV returns the weathervane-termination rate for this tick.
func (e *RateEstimator) PWV(h *PerceptionHistory) float64 {
	return e.wv(e.derivatives(h), h)
}

// PWVCastResume returns the constant probability of resuming a weathervane cast.
func (e *RateEstimator) PWVCastResume() float64 {
	return e.dt * e.p.RWVCastResume
}

// Estimate computes all four probabilities from one pass over the history.
func (e *RateEstimator) Estimate(h *PerceptionHistory) Rates {
	phi := e.derivatives(h)
	return Rates{
		RunTerm:      e.runTerm(phi, h),
		CastTerm:     e.castTerm(phi, h),
		WV:           e.wv(phi, h),
		WVCastResume: e.PWVCastResume(),
	}
}
