package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean and percentiles of values.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	mean = stat.Mean(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// RunStats summarizes the runs of a whole population.
type RunStats struct {
	Runs      int     // completed runs
	MeanRun   float64 // seconds
	StdRun    float64
	MedianRun float64
	P10Run    float64
	P90Run    float64

	MeanCrawlFraction float64

	// NavigationIndex is the mean over larvae of net displacement toward the
	// source divided by path length, in [-1, 1].
	NavigationIndex float64
}

// ComputeRunStats aggregates completed run durations, per-larva crawl
// fractions and per-larva navigation indices.
func ComputeRunStats(runs, crawlFractions, navIndices []float64) RunStats {
	var rs RunStats
	rs.Runs = len(runs)
	if len(runs) > 0 {
		rs.MeanRun, rs.P10Run, rs.MedianRun, rs.P90Run = ComputeDistribution(runs)
		if len(runs) > 1 {
			_, rs.StdRun = stat.MeanStdDev(runs, nil)
		}
	}
	if len(crawlFractions) > 0 {
		rs.MeanCrawlFraction = stat.Mean(crawlFractions, nil)
	}
	if len(navIndices) > 0 {
		rs.NavigationIndex = stat.Mean(navIndices, nil)
	}
	return rs
}

// LogValue implements slog.LogValuer for structured logging.
func (s RunStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("runs", s.Runs),
		slog.Float64("mean_run_sec", s.MeanRun),
		slog.Float64("std_run_sec", s.StdRun),
		slog.Float64("median_run_sec", s.MedianRun),
		slog.Float64("p10_run_sec", s.P10Run),
		slog.Float64("p90_run_sec", s.P90Run),
		slog.Float64("crawl_fraction", s.MeanCrawlFraction),
		slog.Float64("navigation_index", s.NavigationIndex),
	)
}
