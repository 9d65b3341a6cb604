// Package main provides CMA-ES optimization of larva decision parameters
// for navigation up the configured odor gradient.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/chemotaxis/config"
	"github.com/pthm-cable/chemotaxis/telemetry"
)

// EvalRecord is one row of optimize_log.csv. Parameter columns hold the
// clamped values actually simulated.
type EvalRecord struct {
	Eval            int     `csv:"eval"`
	Fitness         float64 `csv:"fitness"`
	NavigationIndex float64 `csv:"navigation_index"`
	Arrival         float64 `csv:"arrival"`

	RunTermBase   float64 `csv:"run_term_base"`
	CastTermBase  float64 `csv:"cast_term_base"`
	WVTermBase    float64 `csv:"wv_term_base"`
	RWVCastResume float64 `csv:"r_wv_cast_resume"`
	TRunTerm      float64 `csv:"t_run_term"`
	TCastTerm     float64 `csv:"t_cast_term"`
	TWVLongAvg    float64 `csv:"t_wv_long_avg"`
	TWVShortAvg   float64 `csv:"t_wv_short_avg"`
	KWVMult       float64 `csv:"k_wv_mult"`
	ThetaMin      float64 `csv:"theta_min"`
}

func newEvalRecord(eval int, fitness, nav, arrival float64, l config.LarvaConfig) EvalRecord {
	return EvalRecord{
		Eval:            eval,
		Fitness:         fitness,
		NavigationIndex: nav,
		Arrival:         arrival,
		RunTermBase:     l.RunTermBase,
		CastTermBase:    l.CastTermBase,
		WVTermBase:      l.WVTermBase,
		RWVCastResume:   l.RWVCastResume,
		TRunTerm:        l.TRunTerm,
		TCastTerm:       l.TCastTerm,
		TWVLongAvg:      l.TWVLongAvg,
		TWVShortAvg:     l.TWVShortAvg,
		KWVMult:         l.KWVMult,
		ThetaMin:        l.ThetaMin,
	}
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 3000, "Ticks per simulation run")
	larvae := flag.Int("larvae", 32, "Larvae per simulation run")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	arrivalRadius := flag.Float64("arrival-radius", 0, "Distance from the source (mm) that counts as arrived (0 = use config)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	// Per-run simulation logs would drown the progress lines.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *outputDir == "" {
		fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fatal("failed to create output directory", "error", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to load config", "error", err)
	}
	baseCfg.Population.Count = *larvae
	if *arrivalRadius <= 0 {
		*arrivalRadius = baseCfg.Telemetry.ArrivalRadius
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := NewParamVector()

	// Generate seeds for evaluation
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, *maxTicks, evalSeeds, baseCfg, *arrivalRadius)

	// Set up CMA-ES
	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential evaluation; seeds run in parallel
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		fatal("failed to create log file", "error", err)
	}
	defer logFile.Close()
	headerWritten := false

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness, err := evaluator.Evaluate(ctx, raw)
			if err != nil {
				// Cancelled or a simulation failed; CMA-ES sees a hopeless point.
				slog.Warn("evaluation failed", "error", err)
			}
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = raw
			}

			nav, arrival := evaluator.Last()
			cfg := baseCfg.Clone()
			if err := params.ApplyToConfig(cfg, raw); err != nil {
				slog.Warn("invalid parameters", "error", err)
			}
			rows := []EvalRecord{newEvalRecord(evalCount, fitness, nav, arrival, cfg.Larva)}
			if err := appendRows(logFile, &headerWritten, &rows); err != nil {
				slog.Warn("failed to write log row", "error", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

			fmt.Printf("Eval %d/%d: nav=%.3f arrival=%.2f (best=%.3f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, nav, arrival, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, larvae per run: %d, ticks per run: %d\n", *seeds, *larvae, *maxTicks)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		fatal("no evaluation completed")
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best fitness: %.4f\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg := baseCfg.Clone()
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		fatal("best parameters invalid", "error", err)
	}
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		slog.Error("failed to write best config", "error", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	if snap := evaluator.BestSnapshot(); snap != nil {
		path, err := telemetry.SaveSnapshot(snap, *outputDir)
		if err != nil {
			slog.Error("failed to write best snapshot", "error", err)
		} else {
			fmt.Printf("Final population of the best run saved to: %s\n", path)
		}
	}
}

// appendRows marshals records, including the header only on the first write.
func appendRows(f *os.File, headerWritten *bool, records any) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
