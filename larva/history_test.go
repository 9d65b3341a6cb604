package larva

import (
	"errors"
	"testing"
)

func TestHistoryAppendAndAt(t *testing.T) {
	h := NewPerceptionHistory(3)

	if _, ok := h.Latest(); ok {
		t.Error("empty history should have no latest sample")
	}

	for i := 1; i <= 5; i++ {
		h.Append(float64(i))
		if h.Len() != i {
			t.Errorf("Len after %d appends: got %d", i, h.Len())
		}
	}

	if h.Retained() != 3 {
		t.Errorf("Retained: got %d, want 3", h.Retained())
	}

	tests := []struct {
		lag  int
		want float64
		ok   bool
	}{
		{0, 5, true},
		{1, 4, true},
		{2, 3, true},
		{3, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		got, ok := h.At(tt.lag)
		if got != tt.want || ok != tt.ok {
			t.Errorf("At(%d) = %v, %v; want %v, %v", tt.lag, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHistoryRecentOldestFirst(t *testing.T) {
	h := NewPerceptionHistory(4)
	for _, c := range []float64{1, 2, 3, 4, 5, 6} {
		h.Append(c)
	}

	got := h.Recent(10)
	want := []float64{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("Recent length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Recent[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if got := h.Recent(2); got[0] != 5 || got[1] != 6 {
		t.Errorf("Recent(2) = %v, want [5 6]", got)
	}
}

func TestHistoryMinimumCapacity(t *testing.T) {
	h := NewPerceptionHistory(0)
	if h.Cap() != 2 {
		t.Errorf("Cap: got %d, want 2", h.Cap())
	}
}

func TestStateFamilies(t *testing.T) {
	for _, s := range AllStates() {
		families := 0
		if s == CrawlFwd {
			families++
		}
		if s.IsWeathervaning() {
			families++
		}
		if s.IsCasting() {
			families++
		}
		if families != 1 {
			t.Errorf("%v belongs to %d families, want 1", s, families)
		}
		if s.IsCrawling() == s.IsCasting() {
			t.Errorf("%v: crawling and casting must be exclusive", s)
		}
	}
}

func TestStateNamesRoundTrip(t *testing.T) {
	for _, s := range AllStates() {
		got, err := ParseState(s.String())
		if err != nil || got != s {
			t.Errorf("ParseState(%q) = %v, %v", s.String(), got, err)
		}
	}

	if _, err := ParseState("SWIM"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unknown name: got %v, want ErrInvalidState", err)
	}
	if State(0).Valid() {
		t.Error("zero state should be invalid")
	}
}
