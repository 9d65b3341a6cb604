package larva

import (
	"fmt"
	"math"
)

// Params holds the fixed parameters of a larva. They are copied at
// construction and never change afterwards.
type Params struct {
	HeadLength float64 // head-joint offset (mm)

	ThetaMax   float64 // maximum head cast angle (degrees)
	ThetaMin   float64 // minimum head cast angle (degrees)
	WVThetaMax float64 // maximum weathervane cast angle (degrees)

	CastSpeed   float64 // head cast rotation speed (degrees/sec)
	WVCastSpeed float64 // weathervane cast rotation speed (degrees/sec)
	VFwd        float64 // forward crawl speed (mm/sec)

	TMinRun float64 // minimum run duration before weathervaning (sec)

	// Base rates
	RunTermBase  float64
	CastTermBase float64
	WVTermBase   float64

	// Resume-rate parameters. WVCastResume is carried for configuration
	// compatibility; the resume probability is driven by RWVCastResume.
	WVCastResume  float64
	RWVCastResume float64

	// Termination kernel time constants
	TRunTerm  float64
	TCastTerm float64

	// Weathervane kernel shape
	TWVLongAvg  float64
	TWVShortAvg float64
	KWVMult     float64

	// Verbose logs every handled state at debug level.
	Verbose bool
}

// DefaultParams returns the reference parameter set.
func DefaultParams() Params {
	return Params{
		HeadLength:    1,
		ThetaMax:      120,
		ThetaMin:      37,
		WVThetaMax:    20,
		CastSpeed:     240,
		WVCastSpeed:   60,
		VFwd:          1.0,
		TMinRun:       7,
		RunTermBase:   0.148,
		CastTermBase:  2,
		WVTermBase:    2,
		WVCastResume:  1,
		RWVCastResume: 1,
		TRunTerm:      20,
		TCastTerm:     1,
		TWVLongAvg:    10,
		TWVShortAvg:   1,
		KWVMult:       30,
	}
}

// Validate checks the parameters a larva cannot run without.
func (p Params) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"head_length", p.HeadLength},
		{"cast_speed", p.CastSpeed},
		{"t_run_term", p.TRunTerm},
		{"t_cast_term", p.TCastTerm},
		{"t_wv_short_avg + t_wv_long_avg", p.TWVShortAvg + p.TWVLongAvg},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidParams, f.name, f.v)
		}
	}

	nonNegative := []struct {
		name string
		v    float64
	}{
		{"wv_cast_speed", p.WVCastSpeed},
		{"v_fwd", p.VFwd},
		{"t_min_run", p.TMinRun},
		{"t_wv_short_avg", p.TWVShortAvg},
		{"t_wv_long_avg", p.TWVLongAvg},
	}
	for _, f := range nonNegative {
		if !(f.v >= 0) {
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidParams, f.name, f.v)
		}
	}

	if p.ThetaMin > p.ThetaMax {
		return fmt.Errorf("%w: theta_min %v exceeds theta_max %v", ErrInvalidParams, p.ThetaMin, p.ThetaMax)
	}
	return nil
}
