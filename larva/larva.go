// Package larva models the chemotaxis of a single larva: a stochastic state
// machine that alternates forward crawling, head casting and weathervaning,
// with transition rates driven by the recent history of sensed concentration.
package larva

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Arena is the environment a larva senses and moves in. Its bounds are the
// symmetric box [-Length/2, Length/2] x [-Width/2, Width/2].
type Arena interface {
	// ConcentrationAt samples the scalar field. It must be strictly positive.
	ConcentrationAt(p r2.Vec) float64
	Length() float64
	Width() float64
}

// Observer receives one snapshot at the end of every tick.
type Observer interface {
	NotifyState(s Snapshot)
}

// Source provides the uniform draw in [0, 1) consumed once per tick.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Context is the per-tick view of the simulation a larva reads. It is treated
// as immutable for the duration of a tick.
type Context struct {
	Tick     int64
	Time     float64
	DT       float64
	Arena    Arena
	Observer Observer // may be nil
}

// Snapshot is the observable state of a larva at the end of a tick.
type Snapshot struct {
	ID            string
	Tick          int64
	Time          float64
	State         State
	Head          r2.Vec
	Joint         r2.Vec
	Velocity      r2.Vec
	HeadAngle     float64
	CastDir       int
	Concentration float64
	Rates         Rates
}

// Larva is a single simulated larva.
type Larva struct {
	// ID identifies the larva to observers.
	ID string

	p  Params
	dt float64

	head     r2.Vec
	joint    r2.Vec
	velocity r2.Vec // unit heading
	castDir  int    // -1, 0 or +1

	state        State
	runStartTime float64
	castEpsilon  float64

	history   *PerceptionHistory
	estimator *RateEstimator
	rng       Source

	lastRates         Rates
	lastConcentration float64
}

// New creates a larva with its head at location, facing heading. The body
// starts straight: the joint sits HeadLength behind the head.
func New(ctx Context, location, heading r2.Vec, p Params, rng Source) (*Larva, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !(ctx.DT > 0) {
		return nil, fmt.Errorf("%w: timestep must be positive, got %v", ErrInvalidParams, ctx.DT)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}
	n := r2.Norm(heading)
	if n == 0 || math.IsNaN(n) {
		return nil, fmt.Errorf("%w: zero initial heading", ErrInvalidParams)
	}

	velocity := r2.Scale(1/n, heading)
	estimator := NewRateEstimator(ctx.DT, p)

	return &Larva{
		p:            p,
		dt:           ctx.DT,
		head:         location,
		joint:        r2.Sub(location, r2.Scale(p.HeadLength, velocity)),
		velocity:     velocity,
		state:        CrawlFwd,
		runStartTime: ctx.Time,
		castEpsilon:  p.CastSpeed * ctx.DT / 0.5,
		history:      NewPerceptionHistory(estimator.HistoryCapacity()),
		estimator:    estimator,
		rng:          rng,
	}, nil
}

// Update advances the larva by one tick: it draws the tick's random value,
// perceives the concentration at its head, estimates the transition rates,
// runs exactly one state handler and notifies the observer.
func (l *Larva) Update(ctx Context) error {
	return l.step(ctx, l.rng.Float64())
}

// step is Update with the tick's random draw supplied by the caller.
func (l *Larva) step(ctx Context, rand float64) error {
	if ctx.DT != l.dt {
		return fmt.Errorf("%w: built for %v, ticked with %v", ErrTimestepMismatch, l.dt, ctx.DT)
	}

	c, err := l.perceive(ctx.Arena)
	if err != nil {
		return err
	}
	l.history.Append(c)
	l.lastConcentration = c
	l.lastRates = l.estimator.Estimate(l.history)

	t := tick{ctx: ctx, rates: l.lastRates, rand: rand}
	if err := l.dispatch(&t); err != nil {
		return err
	}

	if ctx.Observer != nil {
		ctx.Observer.NotifyState(l.snapshot(ctx))
	}
	return nil
}

// perceive samples the arena at the head.
func (l *Larva) perceive(a Arena) (float64, error) {
	c := a.ConcentrationAt(l.head)
	if !(c > 0) || math.IsInf(c, 0) {
		return 0, fmt.Errorf("%w: %v at (%.3f, %.3f)", ErrNonPositiveConcentration, c, l.head.X, l.head.Y)
	}
	return c, nil
}

func (l *Larva) snapshot(ctx Context) Snapshot {
	return Snapshot{
		ID:            l.ID,
		Tick:          ctx.Tick,
		Time:          ctx.Time,
		State:         l.state,
		Head:          l.head,
		Joint:         l.joint,
		Velocity:      l.velocity,
		HeadAngle:     l.HeadAngle(),
		CastDir:       l.castDir,
		Concentration: l.lastConcentration,
		Rates:         l.lastRates,
	}
}

// Snapshot returns the current observable state, stamped with ctx's clock.
func (l *Larva) Snapshot(ctx Context) Snapshot {
	return l.snapshot(ctx)
}

// State returns the current behavioral state.
func (l *Larva) State() State { return l.state }

// Head returns the head location.
func (l *Larva) Head() r2.Vec { return l.head }

// Joint returns the joint location, the pivot of head rotations.
func (l *Larva) Joint() r2.Vec { return l.joint }

// Velocity returns the unit heading.
func (l *Larva) Velocity() r2.Vec { return l.velocity }

// CastDir returns the sign of the current head cast.
func (l *Larva) CastDir() int { return l.castDir }

// RunStartTime returns the time the current run began.
func (l *Larva) RunStartTime() float64 { return l.runStartTime }

// CastEpsilon returns the small-angle tolerance used to detect a centered head.
func (l *Larva) CastEpsilon() float64 { return l.castEpsilon }

// Params returns the larva's fixed parameters.
func (l *Larva) Params() Params { return l.p }

// History returns the perception history.
func (l *Larva) History() *PerceptionHistory { return l.history }

// Estimator returns the rate estimator.
func (l *Larva) Estimator() *RateEstimator { return l.estimator }

// Rates returns the probabilities computed on the last tick.
func (l *Larva) Rates() Rates { return l.lastRates }

func (l *Larva) String() string {
	v := r2.Scale(l.p.VFwd, l.velocity)
	return fmt.Sprintf("Location: (%g, %g)\tVelocity: (%g, %g)", l.head.X, l.head.Y, v.X, v.Y)
}

// LogValue implements slog.LogValuer.
func (l *Larva) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", l.ID),
		slog.String("state", l.state.String()),
		slog.Float64("x", l.head.X),
		slog.Float64("y", l.head.Y),
		slog.Float64("head_angle", l.HeadAngle()),
	)
}
