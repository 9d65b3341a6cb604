package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstArrival         BookmarkType = "first_arrival"
	BookmarkHalfArrived          BookmarkType = "half_arrived"
	BookmarkApproachBreakthrough BookmarkType = "approach_breakthrough"
	BookmarkLarvaeLost           BookmarkType = "larvae_lost"
	BookmarkSettled              BookmarkType = "settled"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType
	Tick        int64
	Description string
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// WindowStats aggregates one summary window over the population.
type WindowStats struct {
	WindowEnd       int64
	Larvae          int     // larvae that reported during the window
	MeanDist        float64 // mean final distance to the source
	ArrivedFraction float64 // share of larvae within the arrival radius
	CrawlFraction   float64
	CastsPerLarva   float64
}

// NewWindowStats aggregates the records of one window.
func NewWindowStats(records []SummaryRecord, arrivalRadius float64) WindowStats {
	ws := WindowStats{Larvae: len(records)}
	if len(records) == 0 {
		return ws
	}
	ws.WindowEnd = records[0].WindowEnd

	dist := make([]float64, len(records))
	crawl := make([]float64, len(records))
	arrived, casts := 0, 0
	for i, r := range records {
		dist[i] = r.DistToSource
		crawl[i] = r.CrawlFraction
		casts += r.CastsStarted
		if r.DistToSource <= arrivalRadius {
			arrived++
		}
	}
	n := float64(len(records))
	ws.MeanDist = stat.Mean(dist, nil)
	ws.CrawlFraction = stat.Mean(crawl, nil)
	ws.ArrivedFraction = float64(arrived) / n
	ws.CastsPerLarva = float64(casts) / n
	return ws
}

// BookmarkDetector detects interesting moments of a run from its summary
// windows. It is a Sink, so a Recorder can feed it directly.
type BookmarkDetector struct {
	arrivalRadius float64

	// OnBookmark, if set, is called for every triggered bookmark.
	OnBookmark func(Bookmark)

	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	peakLarvae         int
	arrivedOnce        bool
	halfArrivedOnce    bool
	stableWindowsCount int
	bookmarks          []Bookmark
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, arrivalRadius float64) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for settled detection
	}
	return &BookmarkDetector{
		arrivalRadius: arrivalRadius,
		history:       make([]WindowStats, historySize),
		historySize:   historySize,
	}
}

// WriteTracks implements Sink; tracks are ignored.
func (bd *BookmarkDetector) WriteTracks([]TrackRecord) error { return nil }

// WriteSummaries implements Sink.
func (bd *BookmarkDetector) WriteSummaries(records []SummaryRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, b := range bd.Check(NewWindowStats(records, bd.arrivalRadius)) {
		b.LogBookmark()
		if bd.OnBookmark != nil {
			bd.OnBookmark(b)
		}
	}
	return nil
}

// Bookmarks returns every bookmark triggered so far.
func (bd *BookmarkDetector) Bookmarks() []Bookmark {
	return bd.bookmarks
}

// Check analyzes the latest window and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkArrival(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkHalfArrived(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Approach breakthrough: mean distance < 0.7x rolling average
		if b := bd.checkApproachBreakthrough(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Larvae lost: fewer reporting than at the peak
		if b := bd.checkLarvaeLost(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Settled: mean distance flat over 5+ windows
		if b := bd.checkSettled(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	if stats.Larvae > bd.peakLarvae {
		bd.peakLarvae = stats.Larvae
	}

	bd.bookmarks = append(bd.bookmarks, bookmarks...)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns the retained windows, oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) checkArrival(stats WindowStats) *Bookmark {
	if bd.arrivedOnce || stats.ArrivedFraction == 0 {
		return nil
	}
	bd.arrivedOnce = true
	return &Bookmark{
		Type:        BookmarkFirstArrival,
		Tick:        stats.WindowEnd,
		Description: fmt.Sprintf("First larva within %.1f of the source", bd.arrivalRadius),
	}
}

func (bd *BookmarkDetector) checkHalfArrived(stats WindowStats) *Bookmark {
	if bd.halfArrivedOnce || stats.ArrivedFraction < 0.5 {
		return nil
	}
	bd.halfArrivedOnce = true
	return &Bookmark{
		Type:        BookmarkHalfArrived,
		Tick:        stats.WindowEnd,
		Description: fmt.Sprintf("%.0f%% of larvae within %.1f of the source", stats.ArrivedFraction*100, bd.arrivalRadius),
	}
}

func (bd *BookmarkDetector) checkApproachBreakthrough(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	dist := make([]float64, len(history))
	for i, h := range history {
		dist[i] = h.MeanDist
	}
	avg := stat.Mean(dist, nil)
	if avg == 0 {
		return nil
	}

	if stats.MeanDist < avg*0.7 {
		return &Bookmark{
			Type:        BookmarkApproachBreakthrough,
			Tick:        stats.WindowEnd,
			Description: fmt.Sprintf("Mean distance %.1f is %.0f%% below average (%.1f)", stats.MeanDist, (1-stats.MeanDist/avg)*100, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkLarvaeLost(stats WindowStats) *Bookmark {
	if stats.Larvae >= bd.peakLarvae {
		return nil
	}

	oldPeak := bd.peakLarvae
	// Reset the peak so each loss triggers once
	bd.peakLarvae = stats.Larvae
	return &Bookmark{
		Type:        BookmarkLarvaeLost,
		Tick:        stats.WindowEnd,
		Description: fmt.Sprintf("Reporting larvae fell from %d to %d", oldPeak, stats.Larvae),
	}
}

func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := make([]float64, 0, 4)
	for _, h := range history[len(history)-4:] {
		recent = append(recent, h.MeanDist)
	}
	mean, std := stat.MeanStdDev(recent, nil)

	// Coefficient of variation < 5%
	if mean > 0 && std/mean < 0.05 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkSettled,
			Tick:        stats.WindowEnd,
			Description: fmt.Sprintf("Mean distance settled near %.1f over 5+ windows", stats.MeanDist),
		}
	}
	return nil
}
