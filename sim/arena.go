package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/chemotaxis/arena"
	"github.com/pthm-cable/chemotaxis/config"
)

// NewArena builds the arena described by ac. seed drives the noisy field.
func NewArena(ac config.ArenaConfig, seed int64) (*arena.Arena, error) {
	source := r2.Vec{X: ac.SourceX, Y: ac.SourceY}
	gaussian := arena.Gaussian{
		Source:   source,
		Sigma:    ac.Sigma,
		Peak:     ac.Peak,
		Baseline: ac.Baseline,
	}

	var field arena.Field
	switch ac.Field {
	case "gaussian":
		field = gaussian
	case "exponential":
		// Grows along +x.
		field = arena.Exponential{Baseline: ac.Baseline, Rate: r2.Vec{X: ac.Slope}}
	case "uniform":
		field = arena.Uniform{Value: ac.Baseline}
	case "noisy":
		field = arena.NewNoisy(gaussian, seed, ac.NoiseScale, ac.NoiseAmplitude, ac.Baseline*(1-ac.NoiseAmplitude))
	default:
		return nil, fmt.Errorf("unknown arena field %q", ac.Field)
	}
	return arena.New(ac.Length, ac.Width, field)
}

// Source returns the configured odor source, the reference point for
// distance and navigation telemetry.
func Source(ac config.ArenaConfig) r2.Vec {
	return r2.Vec{X: ac.SourceX, Y: ac.SourceY}
}
