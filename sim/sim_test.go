package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/chemotaxis/arena"
	"github.com/pthm-cable/chemotaxis/config"
	"github.com/pthm-cable/chemotaxis/larva"
)

// collector records every snapshot it is sent.
type collector struct {
	snaps []larva.Snapshot
	ends  []int64
}

func (c *collector) NotifyState(s larva.Snapshot) { c.snaps = append(c.snaps, s) }

func (c *collector) EndTick(tick int64, _ float64) error {
	c.ends = append(c.ends, tick)
	return nil
}

func testConfig(count int, seed int64) *config.Config {
	cfg := config.Default()
	cfg.Population.Count = count
	cfg.Simulation.Seed = seed
	cfg.Telemetry.LogEvery = 0
	return cfg
}

// halfPlane is unsensable for x > 0.
type halfPlane struct{}

func (halfPlane) ConcentrationAt(p r2.Vec) float64 {
	if p.X > 0 {
		return 0
	}
	return 1
}

func TestStepNotifiesInSpawnOrder(t *testing.T) {
	obs := &collector{}
	s, err := New(testConfig(5, 1), Options{Observer: obs})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Run(context.Background(), 3); err != nil {
		t.Fatal(err)
	}

	if len(obs.snaps) != 15 {
		t.Fatalf("got %d snapshots, want 15", len(obs.snaps))
	}
	larvae := s.Larvae()
	for i, snap := range obs.snaps {
		if want := larvae[i%5].ID; snap.ID != want {
			t.Errorf("snapshot %d: larva %s, want %s", i, snap.ID, want)
		}
		if want := int64(i / 5); snap.Tick != want {
			t.Errorf("snapshot %d: tick %d, want %d", i, snap.Tick, want)
		}
	}
	if len(obs.ends) != 3 || obs.ends[2] != 2 {
		t.Errorf("EndTick calls: got %v, want [0 1 2]", obs.ends)
	}
}

func TestClock(t *testing.T) {
	s, err := New(testConfig(1, 1), Options{})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Run(context.Background(), 10)
	if err != nil || n != 10 {
		t.Fatalf("Run: got %d, %v; want 10, nil", n, err)
	}
	if s.Tick() != 10 {
		t.Errorf("Tick = %d, want 10", s.Tick())
	}
	if math.Abs(s.Time()-1.0) > 1e-12 {
		t.Errorf("Time = %v, want 1.0", s.Time())
	}
	if h := s.Larvae()[0].History().Len(); h != 10 {
		t.Errorf("history length = %d, want one sample per tick", h)
	}
}

func TestSpawnInsideDisc(t *testing.T) {
	cfg := testConfig(50, 3)
	s, err := New(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}

	center := r2.Vec{X: cfg.Population.SpawnX, Y: cfg.Population.SpawnY}
	ids := make(map[string]bool)
	for _, l := range s.Larvae() {
		if d := r2.Norm(r2.Sub(l.Head(), center)); d > cfg.Population.SpawnRadius+1e-9 {
			t.Errorf("larva %s spawned %v from center", l.ID, d)
		}
		if math.Abs(r2.Norm(l.Velocity())-1) > 1e-12 {
			t.Errorf("larva %s heading is not unit length", l.ID)
		}
		if ids[l.ID] {
			t.Errorf("duplicate id %s", l.ID)
		}
		ids[l.ID] = true
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	run := func(workers, threshold int) []larva.Snapshot {
		cfg := testConfig(24, 99)
		cfg.Simulation.Workers = workers
		cfg.Simulation.ParallelThreshold = threshold
		obs := &collector{}
		s, err := New(cfg, Options{Observer: obs})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Run(context.Background(), 300); err != nil {
			t.Fatal(err)
		}
		return obs.snaps
	}

	serial := run(1, 1000)
	parallel := run(4, 1)

	if len(serial) != len(parallel) {
		t.Fatalf("snapshot counts differ: %d vs %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("snapshot %d differs:\nserial   %+v\nparallel %+v", i, serial[i], parallel[i])
		}
	}
}

func TestFailingLarvaIsHalted(t *testing.T) {
	cfg := testConfig(20, 5)
	cfg.Population.SpawnX = 0
	cfg.Population.SpawnY = 0
	cfg.Population.SpawnRadius = 10

	a, err := arena.New(100, 100, halfPlane{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(cfg, Options{Arena: a})
	if err != nil {
		t.Fatal(err)
	}

	right := 0
	for _, l := range s.Larvae() {
		if l.Head().X > 0 {
			right++
		}
	}
	if right == 0 || right == 20 {
		t.Fatalf("need larvae on both sides, got %d of 20 at x > 0", right)
	}

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	c := s.Census()
	if c.Halted != right {
		t.Errorf("halted: got %d, want %d", c.Halted, right)
	}
	if c.Live() != 20-right {
		t.Errorf("live: got %d, want %d", c.Live(), 20-right)
	}
}

func TestRunStopsWhenAllHalted(t *testing.T) {
	a, err := arena.New(100, 100, arena.Uniform{Value: 0})
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(testConfig(3, 1), Options{Arena: a})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Run(context.Background(), 100)
	if !errors.Is(err, ErrNoLiveLarvae) {
		t.Fatalf("got %v, want ErrNoLiveLarvae", err)
	}
	if n != 1 {
		t.Errorf("ran %d ticks, want 1", n)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	s, err := New(testConfig(2, 1), Options{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := s.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("got %d, %v; want 0, context.Canceled", n, err)
	}
}

func TestNewArenaFields(t *testing.T) {
	for _, field := range []string{"gaussian", "exponential", "uniform", "noisy"} {
		t.Run(field, func(t *testing.T) {
			ac := config.Default().Arena
			ac.Field = field
			a, err := NewArena(ac, 7)
			if err != nil {
				t.Fatal(err)
			}
			b := a.Bounds()
			for _, p := range []r2.Vec{b.Min, b.Max, {}, Source(ac)} {
				if c := a.ConcentrationAt(p); !(c > 0) {
					t.Errorf("concentration at %v = %v, want > 0", p, c)
				}
			}
		})
	}

	ac := config.Default().Arena
	ac.Field = "plasma"
	if _, err := NewArena(ac, 1); err == nil {
		t.Error("unknown field should fail")
	}
}

func BenchmarkStep(b *testing.B) {
	s, err := New(testConfig(256, 1), Options{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Step(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func TestSnapshotCoversPopulation(t *testing.T) {
	s, err := New(testConfig(4, 11), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background(), 25); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Tick != 25 || snap.RunID != s.RunID().String() || snap.RNGSeed != 11 {
		t.Errorf("header: got tick %d run %s seed %d", snap.Tick, snap.RunID, snap.RNGSeed)
	}
	if len(snap.Larvae) != 4 {
		t.Fatalf("got %d larvae, want 4", len(snap.Larvae))
	}
	larvae := s.Larvae()
	for i, st := range snap.Larvae {
		if st.Index != i || st.ID != larvae[i].ID {
			t.Errorf("entry %d: index %d id %s", i, st.Index, st.ID)
		}
		if want := min(25, larvae[i].History().Cap()); len(st.Perceptions) != want {
			t.Errorf("entry %d: %d perceptions, want %d", i, len(st.Perceptions), want)
		}
		if _, err := larva.ParseState(st.State); err != nil {
			t.Errorf("entry %d: %v", i, err)
		}
	}
}
