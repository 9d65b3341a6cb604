package telemetry

import (
	"testing"
	"time"

	"github.com/pthm-cable/chemotaxis/systems"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(systems.PhaseChemotaxis)
		time.Sleep(200 * time.Microsecond)
		pc.StartPhase(systems.PhaseObserve)
		time.Sleep(100 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}
	if _, ok := stats.PhaseAvg[systems.PhaseChemotaxis]; !ok {
		t.Error("expected chemotaxis phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[systems.PhaseObserve]; !ok {
		t.Error("expected observe phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(systems.PhaseChemotaxis)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
	if pc.filled != 5 {
		t.Errorf("filled = %d, want 5", pc.filled)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(100 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]
	if slowPct <= fastPct {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", slowPct, fastPct)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}
	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}
	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}

func TestPerfCollector_NilIsDisabled(t *testing.T) {
	var pc *PerfCollector

	pc.StartTick()
	pc.StartPhase(systems.PhaseChemotaxis)
	pc.EndTick()

	if stats := pc.Stats(); stats.AvgTickDuration != 0 || stats.PhasePct == nil {
		t.Errorf("nil collector: got %+v", stats)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{
		AvgTickDuration: 1500 * time.Microsecond,
		PhasePct: map[string]float64{
			systems.PhaseChemotaxis: 80,
			systems.PhaseRecord:     5,
		},
		TicksPerSecond: 666,
	}

	got := s.ToCSV(600)
	if got.WindowEnd != 600 || got.AvgTickUS != 1500 {
		t.Errorf("timing columns: got %+v", got)
	}
	if got.ChemotaxisPct != 80 || got.RecordPct != 5 || got.ObservePct != 0 {
		t.Errorf("phase columns: got %+v", got)
	}
}
