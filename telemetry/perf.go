package telemetry

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/chemotaxis/systems"
)

// PerfCollector times simulation ticks and their phases over a rolling
// window. A nil collector is disabled; every method is a no-op.
type PerfCollector struct {
	window int
	next   int // ring write position
	filled int

	ticks  []float64            // tick durations (seconds), ring
	phases map[string][]float64 // per-phase durations, rings aligned with ticks
	acc    map[string]float64   // current tick

	tickStart  time.Time
	phaseStart time.Time
	phase      string
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		window: windowSize,
		ticks:  make([]float64, windowSize),
		phases: make(map[string][]float64),
		acc:    make(map[string]float64),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	if p == nil {
		return
	}
	p.tickStart = time.Now()
	clear(p.acc)
	p.phase = ""
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase != "" {
		p.acc[p.phase] += now.Sub(p.phaseStart).Seconds()
	}
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	if p == nil {
		return
	}
	now := time.Now()
	p.closePhase(now)
	p.phase = ""

	p.ticks[p.next] = now.Sub(p.tickStart).Seconds()
	for name := range p.acc {
		if _, ok := p.phases[name]; !ok {
			p.phases[name] = make([]float64, p.window)
		}
	}
	// Phases skipped this tick record zero.
	for name, ring := range p.phases {
		ring[p.next] = p.acc[name]
	}

	p.next = (p.next + 1) % p.window
	if p.filled < p.window {
		p.filled++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Tick timing
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total tick time
	PhasePct map[string]float64

	// Throughput
	TicksPerSecond float64
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	ps := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p == nil || p.filled == 0 {
		return ps
	}

	// The ring fills from index 0, so the first filled entries are valid.
	ticks := p.ticks[:p.filled]
	avg := stat.Mean(ticks, nil)
	ps.AvgTickDuration = seconds(avg)
	ps.MinTickDuration = seconds(floats.Min(ticks))
	ps.MaxTickDuration = seconds(floats.Max(ticks))

	for name, ring := range p.phases {
		phaseAvg := stat.Mean(ring[:p.filled], nil)
		ps.PhaseAvg[name] = seconds(phaseAvg)
		if avg > 0 {
			ps.PhasePct[name] = phaseAvg / avg * 100
		}
	}
	if avg > 0 {
		ps.TicksPerSecond = 1 / avg
	}
	return ps
}

// phases lists the step phases in the order they run.
var phases = systems.NewSystemRegistry().IDs()

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}

	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}

	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd     int64   `csv:"window_end"`
	AvgTickUS     int64   `csv:"avg_tick_us"`
	MinTickUS     int64   `csv:"min_tick_us"`
	MaxTickUS     int64   `csv:"max_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	ChemotaxisPct float64 `csv:"chemotaxis_pct"`
	ObservePct    float64 `csv:"observe_pct"`
	CensusPct     float64 `csv:"census_pct"`
	RecordPct     float64 `csv:"record_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		AvgTickUS:     s.AvgTickDuration.Microseconds(),
		MinTickUS:     s.MinTickDuration.Microseconds(),
		MaxTickUS:     s.MaxTickDuration.Microseconds(),
		TicksPerSec:   s.TicksPerSecond,
		ChemotaxisPct: s.PhasePct[systems.PhaseChemotaxis],
		ObservePct:    s.PhasePct[systems.PhaseObserve],
		CensusPct:     s.PhasePct[systems.PhaseCensus],
		RecordPct:     s.PhasePct[systems.PhaseRecord],
	}
}
