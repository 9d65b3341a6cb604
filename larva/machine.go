package larva

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r2"
)

// tick carries everything a state handler reads: the environment, the
// probabilities estimated this tick and the tick's single random draw.
type tick struct {
	ctx   Context
	rates Rates
	rand  float64
}

type handler func(l *Larva, t *tick) error

// handlers maps every state to the routine that runs it. The three weathervane
// sub-states share one entry so the run-termination override applies to all.
var handlers = map[State]handler{
	CrawlFwd:              (*Larva).crawlFwd,
	WVCrawlFwd:            (*Larva).weathervane,
	WVCrawlFwdWhileCast:   (*Larva).weathervane,
	WVChangeCastDir:       (*Larva).weathervane,
	CastStart:             (*Larva).castStart,
	CastTurn:              (*Larva).castTurn,
	CastTurnAfterMinAngle: (*Larva).castTurnAfterMinAngle,
	CastTurnToMiddle:      (*Larva).castTurnToMiddle,
	CastTurnRandomDir:     (*Larva).castTurnRandomDir,
}

func (l *Larva) dispatch(t *tick) error {
	h, ok := handlers[l.state]
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidState, l.state)
	}
	if l.p.Verbose {
		slog.Debug("larva state", "larva", l.ID, "state", l.state.String(), "tick", t.ctx.Tick)
	}
	return h(l, t)
}

// sign returns -1, 0 or +1.
func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// castDirection picks a cast direction from the tick's draw. A draw of
// exactly 0.5 has no sign; only then is a fresh value taken from the source.
func (l *Larva) castDirection(rand float64) int {
	dir := sign(rand - 0.5)
	for dir == 0 {
		dir = sign(l.rng.Float64() - 0.5)
	}
	return dir
}

func (l *Larva) crawlFwd(t *tick) error {
	if t.ctx.Time-l.runStartTime > l.p.TMinRun {
		l.state = WVCrawlFwd
		return nil
	}
	l.moveForward(t.ctx)
	return nil
}

// weathervane runs the current weathervane sub-state, then lets run
// termination override whatever state it chose. A run terminated mid-cast
// keeps its old heading.
func (l *Larva) weathervane(t *tick) error {
	var err error
	switch l.state {
	case WVCrawlFwd:
		l.wvCrawlFwd(t)
	case WVCrawlFwdWhileCast:
		err = l.wvCrawlFwdWhileCast(t)
	case WVChangeCastDir:
		l.wvChangeCastDir()
	}
	if err != nil {
		return err
	}
	if t.rand < t.rates.RunTerm {
		l.state = CastStart
	}
	return nil
}

func (l *Larva) wvCrawlFwd(t *tick) {
	l.moveForward(t.ctx)
	if t.rand < t.rates.WVCastResume {
		l.castDir = l.castDirection(t.rand)
		l.state = WVCrawlFwdWhileCast
	}
}

func (l *Larva) wvCrawlFwdWhileCast(t *tick) error {
	l.rotateWeathervaneCast(t.ctx.DT)
	l.moveForward(t.ctx)
	if t.rand < t.rates.WV {
		// Weathervaning ends by adopting the head's direction.
		if err := l.UpdateVelocity(); err != nil {
			return err
		}
		l.state = WVCrawlFwd
	} else if l.HeadAngle() > l.p.WVThetaMax {
		l.state = WVChangeCastDir
	}
	return nil
}

func (l *Larva) wvChangeCastDir() {
	l.castDir = -l.castDir
	l.state = WVCrawlFwdWhileCast
}

// castStart turns the head further toward the side it already leans to:
// counter-clockwise when the head is left of the midline, clockwise when right.
func (l *Larva) castStart(t *tick) error {
	body := r2.Sub(l.head, l.joint)
	// det of [velocity; body]
	l.castDir = sign(r2.Cross(l.velocity, body))
	if l.castDir == 0 {
		l.castDir = l.castDirection(t.rand)
	}
	l.state = CastTurn
	return nil
}

func (l *Larva) castTurn(t *tick) error {
	l.rotateNormalCast(t.ctx.DT)
	if l.HeadAngle() > l.p.ThetaMin {
		l.state = CastTurnAfterMinAngle
	}
	return nil
}

func (l *Larva) castTurnAfterMinAngle(t *tick) error {
	l.rotateNormalCast(t.ctx.DT)
	if t.rand < t.rates.CastTerm {
		// The cast ends by adopting the head's direction as the new heading.
		if err := l.UpdateVelocity(); err != nil {
			return err
		}
		l.runStartTime = t.ctx.Time
		l.state = CrawlFwd
	} else if l.HeadAngle() > l.p.ThetaMax {
		l.castDir = -l.castDir
		l.state = CastTurnToMiddle
	}
	return nil
}

func (l *Larva) castTurnToMiddle(t *tick) error {
	l.rotateNormalCast(t.ctx.DT)
	if l.HeadAngle() < l.castEpsilon {
		l.state = CastTurnRandomDir
	}
	return nil
}

func (l *Larva) castTurnRandomDir(t *tick) error {
	l.castDir = l.castDirection(t.rand)
	l.state = CastTurn
	return nil
}
