package larva

import (
	"math"
	"math/rand"
	"testing"
)

// referenceRate evaluates a rate over an unbounded history, oldest first,
// lag by lag.
func referenceRate(history []float64, dt, base, windowTime float64, weight func(lag int) float64) float64 {
	r := base
	n := len(history)
	lags := stepCount(math.Min(float64(n)*dt, windowTime), dt)
	for lag := 0; lag < lags; lag++ {
		phi := 0.0
		if n-lag-2 >= 0 {
			phi = (math.Log(history[n-lag-1]) - math.Log(history[n-lag-2])) / dt
		}
		r += phi * weight(lag)
	}
	return dt * r
}

func fillHistory(e *RateEstimator, samples []float64) *PerceptionHistory {
	h := NewPerceptionHistory(e.HistoryCapacity())
	for _, c := range samples {
		h.Append(c)
	}
	return h
}

func TestKernelShapes(t *testing.T) {
	run := RunTermKernel(0.1, 20)
	if len(run) != 400 {
		t.Fatalf("run kernel length: got %d, want 400", len(run))
	}
	if !near(run[0], -0.995, 1e-9) || !near(run[len(run)-1], 1, 1e-12) {
		t.Errorf("run kernel ends: got %v .. %v, want -0.995 .. 1", run[0], run[len(run)-1])
	}

	cast := CastTermKernel(0.1, 1)
	if len(cast) != 1500 {
		t.Fatalf("cast kernel length: got %d, want 1500", len(cast))
	}
	if !near(cast[0], 149.9, 1e-9) || !near(cast[len(cast)-1], 0, 1e-9) {
		t.Errorf("cast kernel ends: got %v .. %v, want 149.9 .. 0", cast[0], cast[len(cast)-1])
	}

	wv := WeathervaneKernel(0.1, 1, 10, 30)
	if len(wv) != 110 {
		t.Fatalf("weathervane kernel length: got %d, want 110", len(wv))
	}
	if wv[0] != 30 || wv[10] != 30 || wv[11] != -30 || wv[109] != -30 {
		t.Errorf("weathervane kernel: got %v %v %v %v", wv[0], wv[10], wv[11], wv[109])
	}

	if run.Weight(-1) != 0 || run.Weight(400) != 0 {
		t.Error("weights outside the kernel should be zero")
	}
}

func TestRatesEmptyHistoryAreBaseRates(t *testing.T) {
	p := DefaultParams()
	e := NewRateEstimator(testDT, p)
	h := NewPerceptionHistory(e.HistoryCapacity())

	got := e.Estimate(h)
	want := Rates{
		RunTerm:      testDT * p.RunTermBase,
		CastTerm:     testDT * p.CastTermBase,
		WV:           testDT * p.WVTermBase,
		WVCastResume: testDT * p.RWVCastResume,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	h.Append(3)
	if got := e.Estimate(h); got != want {
		t.Errorf("single sample: got %+v, want %+v", got, want)
	}
}

func TestRatesMatchReference(t *testing.T) {
	p := DefaultParams()
	e := NewRateEstimator(testDT, p)
	rng := rand.New(rand.NewSource(3))

	// Long enough to wrap the ring several times.
	var samples []float64
	for i := 0; i < 1000; i++ {
		samples = append(samples, 0.5+rng.Float64())
		h := fillHistory(e, samples)

		got := e.Estimate(h)
		want := Rates{
			RunTerm:      referenceRate(samples, testDT, p.RunTermBase, p.TRunTerm, e.kRunTerm.Weight),
			CastTerm:     referenceRate(samples, testDT, p.CastTermBase, p.TRunTerm, e.kCastTerm.Weight),
			WV:           referenceRate(samples, testDT, p.WVTermBase, p.TWVShortAvg+p.TWVLongAvg, e.kWV.Weight),
			WVCastResume: testDT * p.RWVCastResume,
		}

		if !near(got.RunTerm, want.RunTerm, 1e-9) ||
			!near(got.CastTerm, want.CastTerm, 1e-9) ||
			!near(got.WV, want.WV, 1e-9) ||
			got.WVCastResume != want.WVCastResume {
			t.Fatalf("len %d: got %+v, want %+v", len(samples), got, want)
		}

		if i%97 == 0 {
			if r := e.PRunTerm(h); r != got.RunTerm {
				t.Errorf("PRunTerm %v differs from Estimate %v", r, got.RunTerm)
			}
			if r := e.PCastTerm(h); r != got.CastTerm {
				t.Errorf("PCastTerm %v differs from Estimate %v", r, got.CastTerm)
			}
			if r := e.PWV(h); r != got.WV {
				t.Errorf("PWV %v differs from Estimate %v", r, got.WV)
			}
		}
	}
}

func TestRunTermRespondsToGradient(t *testing.T) {
	p := DefaultParams()
	e := NewRateEstimator(testDT, p)
	base := testDT * p.RunTermBase

	up := fillHistory(e, []float64{1, 1.1, 1.2, 1.3})
	down := fillHistory(e, []float64{1.3, 1.2, 1.1, 1})

	// The newest lags carry negative weights: climbing suppresses termination.
	if r := e.PRunTerm(up); r >= base {
		t.Errorf("rising concentration: got %v, want below %v", r, base)
	}
	if r := e.PRunTerm(down); r <= base {
		t.Errorf("falling concentration: got %v, want above %v", r, base)
	}
}

// The cast estimator reads as far back as the run-termination window.
func TestCastTermUsesRunTermWindow(t *testing.T) {
	p := DefaultParams()
	e := NewRateEstimator(testDT, p)

	samples := []float64{1, 2}
	for i := 0; i < 30; i++ {
		samples = append(samples, 2)
	}
	h := fillHistory(e, samples)

	// The only change sits at lag 30, beyond t_cast_term/dt = 10 lags.
	want := testDT * (p.CastTermBase + math.Log(2)/testDT*e.kCastTerm.Weight(30))
	if got := e.PCastTerm(h); !near(got, want, 1e-9) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := e.PCastTerm(h); near(got, testDT*p.CastTermBase, 1e-9) {
		t.Errorf("change at lag 30 was ignored")
	}
}

func TestWeathervaneRateCanLeaveUnitInterval(t *testing.T) {
	p := DefaultParams()
	e := NewRateEstimator(testDT, p)

	// A sharp recent rise weighted by +k_wv_mult.
	h := fillHistory(e, []float64{1, 1, 100})
	if r := e.PWV(h); r <= 1 {
		t.Errorf("got %v, want a rate above 1", r)
	}
}

func TestHistoryCapacityCoversWindows(t *testing.T) {
	p := DefaultParams()
	e := NewRateEstimator(testDT, p)

	if got, want := e.MaxLag(), 200; got != want {
		t.Errorf("max lag: got %d, want %d", got, want)
	}
	if got, want := e.HistoryCapacity(), 201; got != want {
		t.Errorf("capacity: got %d, want %d", got, want)
	}

	p.TWVLongAvg = 30
	e = NewRateEstimator(testDT, p)
	if got, want := e.MaxLag(), 310; got != want {
		t.Errorf("max lag with long weathervane window: got %d, want %d", got, want)
	}
}
