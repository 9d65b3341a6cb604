package systems

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/chemotaxis/components"
	"github.com/pthm-cable/chemotaxis/larva"
)

// Census counts larvae by behavioral state.
type Census struct {
	Total         int
	Halted        int
	Crawling      int // CRAWL_FWD only; weathervaning is counted apart
	Weathervaning int
	Casting       int
	PerState      map[larva.State]int

	// MeanConcentration averages the latest perception of every live larva
	// that has perceived at least once.
	MeanConcentration float64
}

// CensusSystem summarizes the population without modifying it.
type CensusSystem struct {
	filter ecs.Filter2[components.Identity, components.Body]
}

// NewCensusSystem creates a new census system.
func NewCensusSystem(w *ecs.World) *CensusSystem {
	return &CensusSystem{
		filter: *ecs.NewFilter2[components.Identity, components.Body](w),
	}
}

// Count walks the population once.
func (s *CensusSystem) Count() Census {
	c := Census{PerState: make(map[larva.State]int, len(larva.AllStates()))}

	var sum float64
	var sensed int
	query := s.filter.Query()
	for query.Next() {
		_, body := query.Get()
		if body.Larva == nil {
			continue
		}
		c.Total++
		if body.Halted {
			c.Halted++
			continue
		}

		st := body.Larva.State()
		c.PerState[st]++
		switch {
		case st.IsWeathervaning():
			c.Weathervaning++
		case st.IsCrawling():
			c.Crawling++
		case st.IsCasting():
			c.Casting++
		}

		if v, ok := body.Larva.History().Latest(); ok {
			sum += v
			sensed++
		}
	}
	if sensed > 0 {
		c.MeanConcentration = sum / float64(sensed)
	}
	return c
}

// Live returns the number of larvae still updating.
func (c Census) Live() int { return c.Total - c.Halted }

// LogValue implements slog.LogValuer.
func (c Census) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("total", c.Total),
		slog.Int("halted", c.Halted),
		slog.Int("crawling", c.Crawling),
		slog.Int("weathervaning", c.Weathervaning),
		slog.Int("casting", c.Casting),
		slog.Float64("mean_concentration", c.MeanConcentration),
	}
	return slog.GroupValue(attrs...)
}
