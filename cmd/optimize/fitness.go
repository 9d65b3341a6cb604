package main

import (
	"context"
	"errors"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/chemotaxis/config"
	"github.com/pthm-cable/chemotaxis/sim"
	"github.com/pthm-cable/chemotaxis/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params        *ParamVector
	maxTicks      int
	seeds         []int64
	baseConfig    *config.Config
	arrivalRadius float64

	// Best run tracking
	mu           sync.Mutex
	bestFitness  float64
	bestSnapshot *telemetry.Snapshot
	last         seedResult // mean over seeds of the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config, arrivalRadius float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:        params,
		maxTicks:      maxTicks,
		seeds:         seeds,
		baseConfig:    baseCfg,
		arrivalRadius: arrivalRadius,
		bestFitness:   math.Inf(1),
	}
}

// BestSnapshot returns the final population of the best evaluation.
func (fe *FitnessEvaluator) BestSnapshot() *telemetry.Snapshot {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestSnapshot
}

// Last returns the seed-averaged scores of the most recent evaluation.
func (fe *FitnessEvaluator) Last() (navIndex, arrival float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last.navIndex, fe.last.arrival
}

// Weight of the arrival fraction against the navigation index.
const arrivalWeight = 0.5

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness  float64
	navIndex float64
	arrival  float64
	snapshot *telemetry.Snapshot
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated sum of the navigation index and the weighted
// fraction of larvae ending within the arrival radius of the source.
// Parameter vectors the larvae cannot run with score +Inf.
func (fe *FitnessEvaluator) Evaluate(ctx context.Context, x []float64) (float64, error) {
	cfg := fe.baseConfig.Clone()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		fe.mu.Lock()
		fe.last = seedResult{fitness: math.Inf(1)}
		fe.mu.Unlock()
		return math.Inf(1), nil
	}

	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, seed := range fe.seeds {
		g.Go(func() error {
			r, err := fe.runSimulation(gctx, cfg, seed)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return math.Inf(1), err
	}

	// Aggregate results
	var mean seedResult
	best := results[0]
	for _, r := range results {
		mean.fitness += r.fitness
		mean.navIndex += r.navIndex
		mean.arrival += r.arrival
		if r.fitness < best.fitness {
			best = r
		}
	}
	n := float64(len(results))
	mean.fitness /= n
	mean.navIndex /= n
	mean.arrival /= n

	fe.mu.Lock()
	if mean.fitness < fe.bestFitness {
		fe.bestFitness = mean.fitness
		fe.bestSnapshot = best.snapshot
	}
	fe.last = mean
	fe.mu.Unlock()

	return mean.fitness, nil
}

// runSimulation executes a single headless simulation run.
func (fe *FitnessEvaluator) runSimulation(ctx context.Context, base *config.Config, seed int64) (seedResult, error) {
	cfg := base.Clone()
	cfg.Simulation.Seed = seed
	cfg.Simulation.Workers = 1 // seeds already run in parallel
	cfg.Telemetry.LogEvery = 0

	source := sim.Source(cfg.Arena)
	recorder := telemetry.NewRecorder(telemetry.RecorderOptions{Source: source})

	s, err := sim.New(cfg, sim.Options{Observer: recorder})
	if err != nil {
		return seedResult{}, err
	}
	if _, err := s.Run(ctx, fe.maxTicks); err != nil && !errors.Is(err, sim.ErrNoLiveLarvae) {
		return seedResult{}, err
	}

	snap := s.Snapshot()
	r := seedResult{
		navIndex: recorder.Stats().NavigationIndex,
		arrival:  fe.arrivalFraction(snap, source),
		snapshot: snap,
	}
	r.fitness = -(r.navIndex + arrivalWeight*r.arrival)
	return r, nil
}

// arrivalFraction is the share of live larvae whose head ends within the
// arrival radius of the source. Halted larvae count as not arrived.
func (fe *FitnessEvaluator) arrivalFraction(snap *telemetry.Snapshot, source r2.Vec) float64 {
	if len(snap.Larvae) == 0 {
		return 0
	}
	arrived := 0
	for _, l := range snap.Larvae {
		if l.Halted {
			continue
		}
		if r2.Norm(r2.Sub(r2.Vec{X: l.HeadX, Y: l.HeadY}, source)) <= fe.arrivalRadius {
			arrived++
		}
	}
	return float64(arrived) / float64(len(snap.Larvae))
}
