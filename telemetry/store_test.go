package telemetry

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *TrackStore {
	t.Helper()
	s, err := OpenTrackStore(filepath.Join(t.TempDir(), "tracks.db"))
	if err != nil {
		t.Fatalf("OpenTrackStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTrackStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	run := RunRecord{ID: "run-1", Seed: 7, Larvae: 2, DT: 0.1, ConfigYAML: "simulation: {}\n"}
	if err := s.BeginRun(run); err != nil {
		t.Fatal(err)
	}

	tracks := []TrackRecord{
		{RunID: "run-1", LarvaID: "b", Tick: 0, State: "CRAWL_FWD"},
		{RunID: "run-1", LarvaID: "a", Tick: 10, State: "CAST_TURN", HeadX: 1.5, CastDir: -1},
		{RunID: "run-1", LarvaID: "a", Tick: 0, State: "CRAWL_FWD", Concentration: 0.25},
	}
	if err := s.WriteTracks(tracks); err != nil {
		t.Fatal(err)
	}

	got, err := s.Track("run-1", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Track: got %d rows, want 2", len(got))
	}
	if got[0].Tick != 0 || got[0].Concentration != 0.25 {
		t.Errorf("first row: got %+v", got[0])
	}
	if got[1].HeadX != 1.5 || got[1].CastDir != -1 {
		t.Errorf("second row: got %+v", got[1])
	}

	counts, err := s.StateCounts("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if counts["CRAWL_FWD"] != 2 || counts["CAST_TURN"] != 1 {
		t.Errorf("StateCounts: got %v", counts)
	}

	if err := s.EndRun("run-1", 600); err != nil {
		t.Fatal(err)
	}
	back, err := s.Run("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if back.Ticks != 600 || back.Seed != 7 || back.EndedAt == "" || back.StartedAt == "" {
		t.Errorf("Run: got %+v", back)
	}
}

func TestTrackStoreSummaries(t *testing.T) {
	s := openTestStore(t)

	rows := []SummaryRecord{
		{RunID: "r", LarvaID: "a", WindowEnd: 599, Ticks: 600, CrawlFraction: 0.8},
		{RunID: "r", LarvaID: "a", WindowEnd: 1199, Ticks: 600, CastsStarted: 3},
		{RunID: "other", LarvaID: "z", WindowEnd: 599},
	}
	if err := s.WriteSummaries(rows); err != nil {
		t.Fatal(err)
	}

	got, err := s.Summaries("r")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].CrawlFraction != 0.8 || got[1].CastsStarted != 3 {
		t.Errorf("rows: got %+v", got)
	}
}

func TestTrackStoreEmptyWrites(t *testing.T) {
	s := openTestStore(t)
	if err := s.WriteTracks(nil); err != nil {
		t.Error(err)
	}
	if err := s.WriteSummaries(nil); err != nil {
		t.Error(err)
	}
}
