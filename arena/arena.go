// Package arena provides rectangular arenas with scalar concentration fields
// for larvae to sense.
package arena

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"
)

// Field is a scalar concentration field over the plane.
type Field interface {
	ConcentrationAt(p r2.Vec) float64
}

// Arena is a rectangle centered on the origin holding a concentration field.
type Arena struct {
	length float64
	width  float64
	field  Field
}

// New creates an arena with the given extents.
func New(length, width float64, field Field) (*Arena, error) {
	if !(length > 0) || !(width > 0) {
		return nil, fmt.Errorf("arena: extents must be positive, got %v x %v", length, width)
	}
	if field == nil {
		return nil, fmt.Errorf("arena: nil field")
	}
	return &Arena{length: length, width: width, field: field}, nil
}

// ConcentrationAt samples the field.
func (a *Arena) ConcentrationAt(p r2.Vec) float64 {
	return a.field.ConcentrationAt(p)
}

// Length returns the extent along x.
func (a *Arena) Length() float64 { return a.length }

// Width returns the extent along y.
func (a *Arena) Width() float64 { return a.width }

// Field returns the arena's field.
func (a *Arena) Field() Field { return a.field }

// Bounds returns the symmetric box [-Length/2, Length/2] x [-Width/2, Width/2].
func (a *Arena) Bounds() r2.Box {
	x, y := a.length/2, a.width/2
	return r2.Box{Min: r2.Vec{X: -x, Y: -y}, Max: r2.Vec{X: x, Y: y}}
}

// Clamp moves p to the nearest point inside the arena.
func (a *Arena) Clamp(p r2.Vec) r2.Vec {
	b := a.Bounds()
	return r2.Vec{
		X: math.Min(b.Max.X, math.Max(b.Min.X, p.X)),
		Y: math.Min(b.Max.Y, math.Max(b.Min.Y, p.Y)),
	}
}

// Uniform is a constant field.
type Uniform struct {
	Value float64
}

// ConcentrationAt returns the constant value.
func (u Uniform) ConcentrationAt(r2.Vec) float64 { return u.Value }

// Gaussian is a single odor source over a constant baseline.
type Gaussian struct {
	Source   r2.Vec
	Sigma    float64
	Peak     float64
	Baseline float64
}

// ConcentrationAt returns Baseline + Peak*exp(-d²/2σ²).
func (g Gaussian) ConcentrationAt(p r2.Vec) float64 {
	d := r2.Sub(p, g.Source)
	return g.Baseline + g.Peak*math.Exp(-r2.Dot(d, d)/(2*g.Sigma*g.Sigma))
}

// Exponential grows as Baseline*exp(Rate·p), so its log-gradient is Rate everywhere.
type Exponential struct {
	Baseline float64
	Rate     r2.Vec
}

// ConcentrationAt returns Baseline*exp(Rate·p).
func (e Exponential) ConcentrationAt(p r2.Vec) float64 {
	return e.Baseline * math.Exp(r2.Dot(e.Rate, p))
}

// Noisy modulates a base field with coherent simplex noise. The result never
// drops below Floor.
type Noisy struct {
	Base      Field
	Scale     float64 // noise frequency
	Amplitude float64 // relative modulation
	Floor     float64

	noise opensimplex.Noise
}

// NewNoisy wraps base with noise seeded by seed.
func NewNoisy(base Field, seed int64, scale, amplitude, floor float64) *Noisy {
	return &Noisy{
		Base:      base,
		Scale:     scale,
		Amplitude: amplitude,
		Floor:     floor,
		noise:     opensimplex.NewNormalized(seed),
	}
}

// ConcentrationAt returns Base(p) * (1 + Amplitude*n) for noise n in [-1, 1].
func (n *Noisy) ConcentrationAt(p r2.Vec) float64 {
	v := 2*n.noise.Eval2(p.X*n.Scale, p.Y*n.Scale) - 1
	c := n.Base.ConcentrationAt(p) * (1 + n.Amplitude*v)
	return math.Max(c, n.Floor)
}
