package main

import (
	"github.com/pthm-cable/chemotaxis/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
// Geometry and speeds stay fixed; only the decision rates and kernel
// time constants are tuned.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Base rates
			{Name: "run_term_base", Path: "larva.run_term_base", Min: 0.02, Max: 0.5, Default: 0.148},
			{Name: "cast_term_base", Path: "larva.cast_term_base", Min: 0.5, Max: 5, Default: 2},
			{Name: "wv_term_base", Path: "larva.wv_term_base", Min: 0.5, Max: 5, Default: 2},
			{Name: "r_wv_cast_resume", Path: "larva.r_wv_cast_resume", Min: 0.1, Max: 3, Default: 1},
			// Kernels
			{Name: "t_run_term", Path: "larva.t_run_term", Min: 2, Max: 40, Default: 20},
			{Name: "t_cast_term", Path: "larva.t_cast_term", Min: 0.3, Max: 5, Default: 1},
			{Name: "t_wv_long_avg", Path: "larva.t_wv_long_avg", Min: 2, Max: 20, Default: 10},
			{Name: "t_wv_short_avg", Path: "larva.t_wv_short_avg", Min: 0.2, Max: 3, Default: 1},
			{Name: "k_wv_mult", Path: "larva.k_wv_mult", Min: 1, Max: 80, Default: 30},
			// Casting
			{Name: "theta_min", Path: "larva.theta_min", Min: 10, Max: 90, Default: 37},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// fields returns pointers to the tuned config fields, in Specs order.
func (pv *ParamVector) fields(l *config.LarvaConfig) []*float64 {
	return []*float64{
		&l.RunTermBase,
		&l.CastTermBase,
		&l.WVTermBase,
		&l.RWVCastResume,
		&l.TRunTerm,
		&l.TCastTerm,
		&l.TWVLongAvg,
		&l.TWVShortAvg,
		&l.KWVMult,
		&l.ThetaMin,
	}
}

// ApplyToConfig writes clamped parameter values into cfg and refreshes its
// derived larva parameters.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	clamped := pv.Clamp(values)
	for i, f := range pv.fields(&cfg.Larva) {
		*f = clamped[i]
	}
	cfg.Larva.ThetaMin = min(cfg.Larva.ThetaMin, cfg.Larva.ThetaMax)
	return cfg.Rederive()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	l := cfg.Larva
	fields := pv.fields(&l)
	out := make([]float64, len(fields))
	for i, f := range fields {
		out[i] = *f
	}
	return out
}
