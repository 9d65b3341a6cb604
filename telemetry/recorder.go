package telemetry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/chemotaxis/larva"
)

// Sink persists telemetry records.
type Sink interface {
	WriteTracks(records []TrackRecord) error
	WriteSummaries(records []SummaryRecord) error
}

// TickEnder is implemented by observers that act once every larva has
// reported for a tick.
type TickEnder interface {
	EndTick(tick int64, time float64) error
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	RunID        string
	RecordEvery  int    // ticks between track rows (0 = no tracks)
	SummaryEvery int    // ticks per summary window (0 = one window for the whole run)
	Source       r2.Vec // reference point for distance and navigation index
}

// Recorder observes larvae, samples their tracks and aggregates per-larva
// summaries over fixed windows. It is not safe for concurrent use; the
// simulation forwards snapshots to it serially.
type Recorder struct {
	opts  RecorderOptions
	sinks []Sink

	tracks []TrackRecord
	larvae map[string]*larvaTrack
	order  []string // first-seen order

	windowStart int64
	lastTick    int64
	lastTime    float64
	pending     bool // a snapshot arrived since the last summary
}

// larvaTrack accumulates one larva's behavior.
type larvaTrack struct {
	start     r2.Vec
	last      r2.Vec
	lastState larva.State
	seen      bool

	inRun    bool
	runStart float64

	// Current window
	ticks      int
	crawlTicks int
	wvTicks    int
	casts      int
	windowRuns []float64
	concSum    float64
	windowPath float64

	// Whole run
	runs      []float64
	lifeTicks int
	lifeCrawl int
	lifePath  float64
}

// NewRecorder creates a recorder writing to sinks.
func NewRecorder(opts RecorderOptions, sinks ...Sink) *Recorder {
	if opts.RecordEvery < 0 {
		opts.RecordEvery = 0
	}
	if opts.SummaryEvery < 0 {
		opts.SummaryEvery = 0
	}
	return &Recorder{
		opts:   opts,
		sinks:  sinks,
		larvae: make(map[string]*larvaTrack),
	}
}

// NotifyState implements larva.Observer.
func (r *Recorder) NotifyState(s larva.Snapshot) {
	t, ok := r.larvae[s.ID]
	if !ok {
		t = &larvaTrack{start: s.Head, last: s.Head}
		r.larvae[s.ID] = t
		r.order = append(r.order, s.ID)
	}

	crawling := s.State.IsCrawling()
	switch {
	case !t.seen:
		t.inRun = crawling
		t.runStart = s.Time
	case t.inRun && !crawling:
		d := s.Time - t.runStart
		t.windowRuns = append(t.windowRuns, d)
		t.runs = append(t.runs, d)
		t.inRun = false
	case !t.inRun && crawling:
		t.inRun = true
		t.runStart = s.Time
	}
	if s.State == larva.CastStart && (!t.seen || t.lastState != larva.CastStart) {
		t.casts++
	}

	step := r2.Norm(r2.Sub(s.Head, t.last))
	t.windowPath += step
	t.lifePath += step

	t.ticks++
	t.lifeTicks++
	if crawling {
		t.crawlTicks++
		t.lifeCrawl++
	}
	if s.State.IsWeathervaning() {
		t.wvTicks++
	}
	t.concSum += s.Concentration

	t.last = s.Head
	t.lastState = s.State
	t.seen = true

	if r.opts.RecordEvery > 0 && s.Tick%int64(r.opts.RecordEvery) == 0 {
		r.tracks = append(r.tracks, NewTrackRecord(r.opts.RunID, s))
	}

	r.lastTick = s.Tick
	r.lastTime = s.Time
	r.pending = true
}

// EndTick flushes sampled tracks and closes the summary window when it is due.
func (r *Recorder) EndTick(tick int64, time float64) error {
	var errs []error
	if err := r.flushTracks(); err != nil {
		errs = append(errs, err)
	}
	if r.opts.SummaryEvery > 0 && tick+1-r.windowStart >= int64(r.opts.SummaryEvery) {
		if err := r.flushSummaries(tick, time); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes remaining tracks and the final, possibly partial, window.
func (r *Recorder) Close() error {
	var errs []error
	if err := r.flushTracks(); err != nil {
		errs = append(errs, err)
	}
	if r.pending {
		if err := r.flushSummaries(r.lastTick, r.lastTime); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) flushTracks() error {
	if len(r.tracks) == 0 {
		return nil
	}
	defer func() { r.tracks = r.tracks[:0] }()
	for _, s := range r.sinks {
		if err := s.WriteTracks(r.tracks); err != nil {
			return fmt.Errorf("writing tracks: %w", err)
		}
	}
	return nil
}

func (r *Recorder) flushSummaries(tick int64, time float64) error {
	records := r.Summaries(tick, time)
	for _, t := range r.larvae {
		t.resetWindow()
	}
	r.windowStart = tick + 1
	r.pending = false

	if len(records) == 0 {
		return nil
	}
	for _, s := range r.sinks {
		if err := s.WriteSummaries(records); err != nil {
			return fmt.Errorf("writing summaries: %w", err)
		}
	}
	return nil
}

// Summaries builds the current window's records without closing the window.
// Larvae that did not report during the window are omitted.
func (r *Recorder) Summaries(tick int64, time float64) []SummaryRecord {
	records := make([]SummaryRecord, 0, len(r.order))
	for _, id := range r.order {
		t := r.larvae[id]
		if t.ticks == 0 {
			continue
		}
		n := float64(t.ticks)
		rec := SummaryRecord{
			RunID:             r.opts.RunID,
			LarvaID:           id,
			WindowStart:       r.windowStart,
			WindowEnd:         tick,
			SimTimeSec:        time,
			Ticks:             t.ticks,
			CrawlFraction:     float64(t.crawlTicks) / n,
			WVFraction:        float64(t.wvTicks) / n,
			CastsStarted:      t.casts,
			RunsEnded:         len(t.windowRuns),
			MeanConcentration: t.concSum / n,
			DistToSource:      r2.Norm(r2.Sub(t.last, r.opts.Source)),
			PathLength:        t.windowPath,
		}
		if len(t.windowRuns) > 0 {
			rec.MeanRunSec, _, _, _ = ComputeDistribution(t.windowRuns)
		}
		records = append(records, rec)
	}
	return records
}

// Stats aggregates the whole run so far.
func (r *Recorder) Stats() RunStats {
	var runs, crawl, nav []float64
	for _, id := range r.order {
		t := r.larvae[id]
		runs = append(runs, t.runs...)
		if t.lifeTicks > 0 {
			crawl = append(crawl, float64(t.lifeCrawl)/float64(t.lifeTicks))
		}
		if t.lifePath > 0 {
			d0 := r2.Norm(r2.Sub(t.start, r.opts.Source))
			d1 := r2.Norm(r2.Sub(t.last, r.opts.Source))
			nav = append(nav, (d0-d1)/t.lifePath)
		}
	}
	return ComputeRunStats(runs, crawl, nav)
}

// Larvae returns the ids seen so far, in first-seen order.
func (r *Recorder) Larvae() []string {
	return r.order
}

func (t *larvaTrack) resetWindow() {
	t.ticks = 0
	t.crawlTicks = 0
	t.wvTicks = 0
	t.casts = 0
	t.windowRuns = t.windowRuns[:0]
	t.concSum = 0
	t.windowPath = 0
}

// Multi fans snapshots out to several observers in order.
type Multi []larva.Observer

// NotifyState implements larva.Observer.
func (m Multi) NotifyState(s larva.Snapshot) {
	for _, o := range m {
		if o != nil {
			o.NotifyState(s)
		}
	}
}

// EndTick forwards to every member implementing TickEnder.
func (m Multi) EndTick(tick int64, time float64) error {
	var errs []error
	for _, o := range m {
		if te, ok := o.(TickEnder); ok {
			if err := te.EndTick(tick, time); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
