package telemetry

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/chemotaxis/larva"
)

type memorySink struct {
	tracks    []TrackRecord
	summaries []SummaryRecord
	err       error
}

func (m *memorySink) WriteTracks(records []TrackRecord) error {
	if m.err != nil {
		return m.err
	}
	m.tracks = append(m.tracks, records...)
	return nil
}

func (m *memorySink) WriteSummaries(records []SummaryRecord) error {
	if m.err != nil {
		return m.err
	}
	m.summaries = append(m.summaries, records...)
	return nil
}

func snap(id string, tick int64, st larva.State, x float64) larva.Snapshot {
	return larva.Snapshot{
		ID:            id,
		Tick:          tick,
		Time:          float64(tick) / 10,
		State:         st,
		Head:          r2.Vec{X: x},
		Velocity:      r2.Vec{X: 1},
		Concentration: 1,
	}
}

// oneRunOneCast crawls for two ticks, casts for two and crawls again.
var oneRunOneCast = []larva.Snapshot{
	snap("a", 0, larva.CrawlFwd, 0),
	snap("a", 1, larva.CrawlFwd, 1),
	snap("a", 2, larva.CastStart, 1),
	snap("a", 3, larva.CastTurn, 1),
	snap("a", 4, larva.CrawlFwd, 1),
	snap("a", 5, larva.WVCrawlFwd, 2),
}

func TestRecorderSummarizesRunsAndCasts(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(RecorderOptions{RunID: "run", RecordEvery: 2, Source: r2.Vec{X: 10}}, sink)

	for _, s := range oneRunOneCast {
		r.NotifyState(s)
		if err := r.EndTick(s.Tick, s.Time); err != nil {
			t.Fatalf("EndTick: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(sink.tracks) != 3 {
		t.Fatalf("tracks: got %d rows, want 3 (ticks 0, 2, 4)", len(sink.tracks))
	}
	for i, want := range []int64{0, 2, 4} {
		if got := sink.tracks[i].Tick; got != want {
			t.Errorf("track %d: tick %d, want %d", i, got, want)
		}
	}
	if sink.tracks[1].State != "CAST_START" {
		t.Errorf("track state: got %q, want CAST_START", sink.tracks[1].State)
	}

	if len(sink.summaries) != 1 {
		t.Fatalf("summaries: got %d, want 1", len(sink.summaries))
	}
	got := sink.summaries[0]
	if got.Ticks != 6 || got.CastsStarted != 1 || got.RunsEnded != 1 {
		t.Errorf("counts: got ticks %d casts %d runs %d, want 6, 1, 1", got.Ticks, got.CastsStarted, got.RunsEnded)
	}
	if math.Abs(got.CrawlFraction-4.0/6) > 1e-12 {
		t.Errorf("CrawlFraction = %v, want 4/6", got.CrawlFraction)
	}
	if math.Abs(got.WVFraction-1.0/6) > 1e-12 {
		t.Errorf("WVFraction = %v, want 1/6", got.WVFraction)
	}
	if math.Abs(got.MeanRunSec-0.2) > 1e-12 {
		t.Errorf("MeanRunSec = %v, want 0.2", got.MeanRunSec)
	}
	if got.PathLength != 2 || got.DistToSource != 8 {
		t.Errorf("geometry: path %v dist %v, want 2 and 8", got.PathLength, got.DistToSource)
	}

	stats := r.Stats()
	if stats.Runs != 1 {
		t.Errorf("Stats.Runs = %d, want 1", stats.Runs)
	}
	if math.Abs(stats.NavigationIndex-1) > 1e-12 {
		t.Errorf("NavigationIndex = %v, want 1", stats.NavigationIndex)
	}
}

func TestRecorderWindows(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(RecorderOptions{RunID: "run", SummaryEvery: 3}, sink)

	for tick := int64(0); tick < 4; tick++ {
		r.NotifyState(snap("a", tick, larva.CrawlFwd, float64(tick)))
		r.NotifyState(snap("b", tick, larva.CastTurn, 0))
		if err := r.EndTick(tick, float64(tick)/10); err != nil {
			t.Fatal(err)
		}
	}
	if len(sink.summaries) != 2 {
		t.Fatalf("after first window: got %d summaries, want 2", len(sink.summaries))
	}
	if sink.summaries[0].LarvaID != "a" || sink.summaries[1].LarvaID != "b" {
		t.Errorf("summaries out of first-seen order: %q, %q", sink.summaries[0].LarvaID, sink.summaries[1].LarvaID)
	}
	if w := sink.summaries[0]; w.WindowStart != 0 || w.WindowEnd != 2 || w.Ticks != 3 {
		t.Errorf("first window: got [%d, %d] with %d ticks, want [0, 2] with 3", w.WindowStart, w.WindowEnd, w.Ticks)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if len(sink.summaries) != 4 {
		t.Fatalf("after close: got %d summaries, want 4", len(sink.summaries))
	}
	if w := sink.summaries[3]; w.WindowStart != 3 || w.WindowEnd != 3 || w.Ticks != 1 {
		t.Errorf("final window: got [%d, %d] with %d ticks, want [3, 3] with 1", w.WindowStart, w.WindowEnd, w.Ticks)
	}
	if got := sink.summaries[1].CrawlFraction; got != 0 {
		t.Errorf("casting larva crawl fraction: got %v, want 0", got)
	}

	// Nothing new since the last window.
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if len(sink.summaries) != 4 {
		t.Errorf("second close wrote %d extra summaries", len(sink.summaries)-4)
	}
}

func TestRecorderPropagatesSinkErrors(t *testing.T) {
	boom := errors.New("disk full")
	r := NewRecorder(RecorderOptions{RecordEvery: 1}, &memorySink{err: boom})

	r.NotifyState(snap("a", 0, larva.CrawlFwd, 0))
	if err := r.EndTick(0, 0); !errors.Is(err, boom) {
		t.Errorf("EndTick: got %v, want %v", err, boom)
	}
}

func TestMulti(t *testing.T) {
	a := NewRecorder(RecorderOptions{RecordEvery: 1}, &memorySink{})
	b := &memorySink{}
	rb := NewRecorder(RecorderOptions{RecordEvery: 1}, b)

	m := Multi{a, nil, rb}
	m.NotifyState(snap("x", 0, larva.CrawlFwd, 0))
	if err := m.EndTick(0, 0); err != nil {
		t.Fatal(err)
	}

	if len(a.Larvae()) != 1 || len(rb.Larvae()) != 1 {
		t.Errorf("every member should see the snapshot")
	}
	if len(b.tracks) != 1 {
		t.Errorf("EndTick not forwarded: got %d tracks, want 1", len(b.tracks))
	}
}
