// Package sim drives a population of independent larvae: it owns the clock,
// the arena, per-larva random sources and the ECS world, and fans snapshots
// out to observers once per tick.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/chemotaxis/arena"
	"github.com/pthm-cable/chemotaxis/components"
	"github.com/pthm-cable/chemotaxis/config"
	"github.com/pthm-cable/chemotaxis/larva"
	"github.com/pthm-cable/chemotaxis/systems"
	"github.com/pthm-cable/chemotaxis/telemetry"
)

// ErrNoLiveLarvae is returned by Run once every larva has halted.
var ErrNoLiveLarvae = errors.New("sim: no live larvae")

// Options carries the optional collaborators of a simulation.
type Options struct {
	// Observer receives every snapshot, serially and in spawn order. If it
	// implements telemetry.TickEnder, EndTick is called after each tick.
	Observer larva.Observer

	// Perf times the step phases. May be nil.
	Perf *telemetry.PerfCollector

	// Arena overrides the arena built from the config.
	Arena *arena.Arena
}

// Simulation is the external driver of the larva population.
type Simulation struct {
	cfg *config.Config

	world      *ecs.World
	mapper     *ecs.Map2[components.Identity, components.Body]
	chemotaxis *systems.ChemotaxisSystem
	census     *systems.CensusSystem

	arena    *arena.Arena
	rng      *rand.Rand
	observer larva.Observer
	perf     *telemetry.PerfCollector

	runID   uuid.UUID
	seed    int64
	tick    int64
	dt      float64
	spawned int
}

// New builds a simulation and spawns cfg.Population.Count larvae.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	a := opts.Arena
	if a == nil {
		var err error
		if a, err = NewArena(cfg.Arena, seed); err != nil {
			return nil, err
		}
	}

	world := ecs.NewWorld()
	s := &Simulation{
		cfg:        cfg,
		world:      world,
		mapper:     ecs.NewMap2[components.Identity, components.Body](world),
		chemotaxis: systems.NewChemotaxisSystem(world, cfg.Simulation.Workers, cfg.Simulation.ParallelThreshold),
		census:     systems.NewCensusSystem(world),
		arena:      a,
		rng:        rand.New(rand.NewSource(seed)),
		observer:   opts.Observer,
		perf:       opts.Perf,
		runID:      uuid.New(),
		seed:       seed,
		dt:         cfg.Simulation.DT,
	}

	for i := 0; i < cfg.Population.Count; i++ {
		if _, err := s.Spawn(); err != nil {
			return nil, fmt.Errorf("spawning larva %d: %w", i, err)
		}
	}

	slog.Info("simulation created",
		"run", s.runID.String(),
		"seed", seed,
		"larvae", s.spawned,
		"field", cfg.Arena.Field,
		"workers", s.chemotaxis.Workers(),
	)
	return s, nil
}

// Spawn adds one larva at a uniform random point of the spawn disc, clamped
// into the arena, facing a uniform random direction. Its random source is
// seeded from the master source, so a run is reproducible from its seed.
func (s *Simulation) Spawn() (*larva.Larva, error) {
	pop := s.cfg.Population

	center := r2.Vec{X: pop.SpawnX, Y: pop.SpawnY}
	rad := pop.SpawnRadius * math.Sqrt(s.rng.Float64())
	theta := 2 * math.Pi * s.rng.Float64()
	loc := s.arena.Clamp(r2.Add(center, r2.Scale(rad, r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)})))

	phi := 2 * math.Pi * s.rng.Float64()
	heading := r2.Vec{X: math.Cos(phi), Y: math.Sin(phi)}

	seed := s.rng.Int63()
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		return nil, fmt.Errorf("larva id: %w", err)
	}

	l, err := larva.New(s.context(), loc, heading, s.cfg.Derived.Params, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	l.ID = id.String()

	s.mapper.NewEntity(
		&components.Identity{ID: id, Index: s.spawned, Seed: seed},
		&components.Body{Larva: l},
	)
	s.spawned++
	return l, nil
}

// context is the immutable view every larva reads during the current tick.
func (s *Simulation) context() larva.Context {
	return larva.Context{
		Tick:  s.tick,
		Time:  s.Time(),
		DT:    s.dt,
		Arena: s.arena,
	}
}

// Step advances every live larva exactly once, forwards their snapshots to
// the observer in spawn order and advances the clock.
func (s *Simulation) Step(ctx context.Context) error {
	s.perf.StartTick()
	defer s.perf.EndTick()

	lc := s.context()

	s.perf.StartPhase(systems.PhaseChemotaxis)
	snaps, err := s.chemotaxis.Update(ctx, lc)
	if err != nil {
		return err
	}

	s.perf.StartPhase(systems.PhaseObserve)
	if s.observer != nil {
		for _, snap := range snaps {
			s.observer.NotifyState(snap)
		}
	}

	if every := s.cfg.Telemetry.LogEvery; every > 0 && s.tick%int64(every) == 0 {
		s.perf.StartPhase(systems.PhaseCensus)
		slog.Info("census", "tick", s.tick, "time", lc.Time, "census", s.census.Count())
	}

	s.perf.StartPhase(systems.PhaseRecord)
	var obsErr error
	if te, ok := s.observer.(telemetry.TickEnder); ok {
		obsErr = te.EndTick(s.tick, lc.Time)
	}

	s.tick++
	if obsErr != nil {
		return fmt.Errorf("tick %d: %w", lc.Tick, obsErr)
	}
	if len(snaps) == 0 && s.spawned > 0 {
		return ErrNoLiveLarvae
	}
	return nil
}

// Run steps until maxTicks ticks have run (maxTicks <= 0 means no limit),
// ctx is cancelled or a step fails. It returns the number of ticks run.
func (s *Simulation) Run(ctx context.Context, maxTicks int) (int, error) {
	n := 0
	for maxTicks <= 0 || n < maxTicks {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		err := s.Step(ctx)
		if err == nil {
			n++
			continue
		}
		if errors.Is(err, ErrNoLiveLarvae) {
			n++
		}
		return n, err
	}
	return n, nil
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int64 { return s.tick }

// Time returns the simulated time in seconds.
func (s *Simulation) Time() float64 { return float64(s.tick) * s.dt }

// DT returns the timestep.
func (s *Simulation) DT() float64 { return s.dt }

// Arena returns the arena.
func (s *Simulation) Arena() *arena.Arena { return s.arena }

// RunID identifies this run in output files and the track store.
func (s *Simulation) RunID() uuid.UUID { return s.runID }

// Seed returns the master seed.
func (s *Simulation) Seed() int64 { return s.seed }

// Census counts the population by state.
func (s *Simulation) Census() systems.Census { return s.census.Count() }

// Larvae returns every larva, halted or not, in spawn order.
func (s *Simulation) Larvae() []*larva.Larva {
	type indexed struct {
		index int
		l     *larva.Larva
	}
	var all []indexed

	filter := ecs.NewFilter2[components.Identity, components.Body](s.world)
	query := filter.Query()
	for query.Next() {
		id, body := query.Get()
		all = append(all, indexed{id.Index, body.Larva})
	}
	slices.SortFunc(all, func(a, b indexed) int { return a.index - b.index })

	out := make([]*larva.Larva, len(all))
	for i, e := range all {
		out[i] = e.l
	}
	return out
}

// Snapshot captures the whole population at the current tick.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	snap := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		RunID:       s.runID.String(),
		RNGSeed:     s.seed,
		ArenaLength: s.arena.Length(),
		ArenaWidth:  s.arena.Width(),
		Field:       s.cfg.Arena.Field,
		Tick:        s.tick,
		Time:        s.Time(),
	}

	filter := ecs.NewFilter2[components.Identity, components.Body](s.world)
	query := filter.Query()
	for query.Next() {
		id, body := query.Get()
		l := body.Larva
		st := telemetry.LarvaState{
			ID:           l.ID,
			Index:        id.Index,
			Seed:         id.Seed,
			State:        l.State().String(),
			Halted:       body.Halted,
			HeadX:        l.Head().X,
			HeadY:        l.Head().Y,
			JointX:       l.Joint().X,
			JointY:       l.Joint().Y,
			VelX:         l.Velocity().X,
			VelY:         l.Velocity().Y,
			CastDir:      l.CastDir(),
			RunStartTime: l.RunStartTime(),
			Perceptions:  l.History().Recent(l.History().Cap()),
		}
		if body.Err != nil {
			st.Error = body.Err.Error()
		}
		snap.Larvae = append(snap.Larvae, st)
	}
	slices.SortFunc(snap.Larvae, func(a, b telemetry.LarvaState) int { return a.Index - b.Index })
	return snap
}
