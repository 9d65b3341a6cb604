package larva

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Kernel holds transition-rate weights indexed by lag: Kernel[0] weighs the
// most recent concentration change, Kernel[1] the one before, and so on.
// Lags past the end of the kernel carry zero weight.
type Kernel []float64

// Weight returns the weight at the given lag.
func (k Kernel) Weight(lag int) float64 {
	if lag < 0 || lag >= len(k) {
		return 0
	}
	return k[lag]
}

// Convolve returns sum(phi[lag] * k[lag]) over the lags both cover.
func (k Kernel) Convolve(phi []float64) float64 {
	n := len(phi)
	if n > len(k) {
		n = len(k)
	}
	if n == 0 {
		return 0
	}
	return floats.Dot(phi[:n], k[:n])
}

// stepCount returns the number of samples in [0, span) taken every step,
// tolerating the rounding error of span/step landing just above an integer.
func stepCount(span, step float64) int {
	if span <= 0 || step <= 0 {
		return 0
	}
	n := int(math.Ceil(span/step - 1e-9))
	if n < 0 {
		return 0
	}
	return n
}

// rampKernel samples a linear ramp start, start+step, ... up to (not
// including) stop, then orders it so the last sample lands on lag 0.
func rampKernel(start, stop, step float64) Kernel {
	n := stepCount(math.Abs(stop-start), math.Abs(step))
	k := make(Kernel, n)
	switch n {
	case 0:
	case 1:
		k[0] = start
	default:
		last := start + float64(n-1)*step
		floats.Span(k, last, start)
	}
	return k
}

// RunTermKernel builds the run-termination kernel: a ramp from 1 toward -1 in
// steps of dt/tau. The ramp's tail, close to -1, weighs the newest change, so
// a rising concentration suppresses run termination.
func RunTermKernel(dt, tau float64) Kernel {
	return rampKernel(1, -1, -dt/tau)
}

// CastTermKernel builds the cast-termination kernel: a ramp from 0 toward 150
// in steps of dt/tau, with the largest weight on the newest change.
func CastTermKernel(dt, tau float64) Kernel {
	return rampKernel(0, 150, dt/tau)
}

// WeathervaneKernel builds the short-versus-long average contrast kernel:
// +mult for lags up to short, -mult beyond it, over short+long seconds.
func WeathervaneKernel(dt, short, long, mult float64) Kernel {
	n := stepCount(short+long, dt)
	k := make(Kernel, n)
	for lag := range k {
		if float64(lag)*dt <= short {
			k[lag] = mult
		} else {
			k[lag] = -mult
		}
	}
	return k
}
