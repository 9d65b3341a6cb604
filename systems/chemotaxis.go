package systems

import (
	"context"
	"log/slog"
	"runtime"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/chemotaxis/components"
	"github.com/pthm-cable/chemotaxis/larva"
)

// DefaultParallelThreshold is the minimum larva count to fan updates out.
// Below this, single-threaded is faster due to goroutine overhead.
const DefaultParallelThreshold = 64

// ChemotaxisSystem advances every live larva by one tick.
//
// Larvae are independent within a tick, so updates may run concurrently. Each
// larva reports to its own slot; slots are read back in spawn order once all
// updates finish, which keeps observer output identical across worker counts.
type ChemotaxisSystem struct {
	filter    ecs.Filter2[components.Identity, components.Body]
	workers   int
	threshold int

	entries []entry
	slots   []slot
	out     []larva.Snapshot
}

// entry captures one live larva for the duration of an update.
type entry struct {
	index int
	id    *components.Identity
	body  *components.Body
}

// slot receives the snapshot a larva emits during its update.
type slot struct {
	snap larva.Snapshot
	ok   bool
	err  error
}

// NotifyState implements larva.Observer.
func (s *slot) NotifyState(snap larva.Snapshot) {
	s.snap = snap
	s.ok = true
}

// NewChemotaxisSystem creates the system. workers <= 0 uses GOMAXPROCS;
// threshold <= 0 uses DefaultParallelThreshold.
func NewChemotaxisSystem(w *ecs.World, workers, threshold int) *ChemotaxisSystem {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = DefaultParallelThreshold
	}
	return &ChemotaxisSystem{
		filter:    *ecs.NewFilter2[components.Identity, components.Body](w),
		workers:   workers,
		threshold: threshold,
	}
}

// Workers returns the number of goroutines used above the threshold.
func (s *ChemotaxisSystem) Workers() int { return s.workers }

// Update ticks every live larva with lc and returns their snapshots in spawn
// order. lc.Observer is ignored; callers forward the returned snapshots.
// A larva whose update fails is halted and logged; it never stops the others.
// The returned slice is reused by the next call.
func (s *ChemotaxisSystem) Update(ctx context.Context, lc larva.Context) ([]larva.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase A: collect live larvae (single-threaded)
	s.entries = s.entries[:0]
	query := s.filter.Query()
	for query.Next() {
		id, body := query.Get()
		if body.Halted || body.Larva == nil {
			continue
		}
		s.entries = append(s.entries, entry{index: id.Index, id: id, body: body})
	}
	slices.SortFunc(s.entries, func(a, b entry) int { return a.index - b.index })

	n := len(s.entries)
	if cap(s.slots) < n {
		s.slots = make([]slot, n)
	}
	s.slots = s.slots[:n]

	// Phase B: update, fanning out above the threshold
	if n < s.threshold || s.workers == 1 {
		s.updateRange(lc, 0, n)
	} else if err := s.updateParallel(ctx, lc, n); err != nil {
		return nil, err
	}

	// Phase C: apply results in spawn order (single-threaded)
	s.out = s.out[:0]
	for i := range s.entries {
		e, sl := &s.entries[i], &s.slots[i]
		if sl.err != nil {
			e.body.Halted = true
			e.body.Err = sl.err
			slog.Warn("larva halted",
				"id", e.id.ID.String(),
				"index", e.index,
				"tick", lc.Tick,
				"error", sl.err,
			)
			continue
		}
		if sl.ok {
			s.out = append(s.out, sl.snap)
		}
	}
	return s.out, nil
}

func (s *ChemotaxisSystem) updateParallel(ctx context.Context, lc larva.Context, n int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	chunk := (n + s.workers - 1) / s.workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.updateRange(lc, start, end)
			return nil
		})
	}
	return g.Wait()
}

// updateRange ticks entries [i0, i1). Each larva only touches its own slot.
func (s *ChemotaxisSystem) updateRange(lc larva.Context, i0, i1 int) {
	for i := i0; i < i1; i++ {
		sl := &s.slots[i]
		*sl = slot{}
		c := lc
		c.Observer = sl
		sl.err = s.entries[i].body.Larva.Update(c)
	}
}
