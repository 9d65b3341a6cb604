package larva

import "fmt"

// State is the behavioral state of a larva.
type State uint8

const (
	// Crawl states
	CrawlFwd State = iota + 1

	// Weathervaning states
	WVCrawlFwd
	WVCrawlFwdWhileCast
	WVChangeCastDir

	// Casting states
	CastStart
	CastTurn
	CastTurnAfterMinAngle
	CastTurnToMiddle
	CastTurnRandomDir
)

var stateNames = map[State]string{
	CrawlFwd:              "CRAWL_FWD",
	WVCrawlFwd:            "WV_CRAWL_FWD",
	WVCrawlFwdWhileCast:   "WV_CRAWL_FWD_WHILE_CAST",
	WVChangeCastDir:       "WV_CHANGE_CAST_DIR",
	CastStart:             "CAST_START",
	CastTurn:              "CAST_TURN",
	CastTurnAfterMinAngle: "CAST_TURN_AFTER_MIN_ANGLE",
	CastTurnToMiddle:      "CAST_TURN_TO_MIDDLE",
	CastTurnRandomDir:     "CAST_TURN_RANDOM_DIR",
}

// AllStates returns every valid state in declaration order.
func AllStates() []State {
	return []State{
		CrawlFwd,
		WVCrawlFwd, WVCrawlFwdWhileCast, WVChangeCastDir,
		CastStart, CastTurn, CastTurnAfterMinAngle, CastTurnToMiddle, CastTurnRandomDir,
	}
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// IsCrawling reports whether s belongs to the crawl or weathervane family.
func (s State) IsCrawling() bool {
	switch s {
	case CrawlFwd, WVCrawlFwd, WVCrawlFwdWhileCast, WVChangeCastDir:
		return true
	}
	return false
}

// IsWeathervaning reports whether s is one of the weathervane sub-states.
func (s State) IsWeathervaning() bool {
	switch s {
	case WVCrawlFwd, WVCrawlFwdWhileCast, WVChangeCastDir:
		return true
	}
	return false
}

// IsCasting reports whether s belongs to the casting family.
func (s State) IsCasting() bool {
	switch s {
	case CastStart, CastTurn, CastTurnAfterMinAngle, CastTurnToMiddle, CastTurnRandomDir:
		return true
	}
	return false
}

// ParseState converts a state name as produced by String back to a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidState, name)
}
