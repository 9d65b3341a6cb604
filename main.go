package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/chemotaxis/config"
	"github.com/pthm-cable/chemotaxis/sim"
	"github.com/pthm-cable/chemotaxis/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	sqlitePath := flag.String("sqlite", "", "Track store path (empty = use config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", -1, "Stop after N ticks (0 = unlimited, -1 = use config)")
	larvae := flag.Int("larvae", -1, "Population size (-1 = use config)")
	perfWindow := flag.Int("perf-window", 600, "Ticks per perf.csv row (0 = off)")
	snapshotDir := flag.String("snapshot-dir", "", "Write population snapshots here at bookmarks and on exit (empty = off)")
	debug := flag.Bool("debug", false, "Log at debug level")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *maxTicks >= 0 {
		cfg.Simulation.MaxTicks = *maxTicks
	}
	if *larvae >= 0 {
		cfg.Population.Count = *larvae
	}
	if *sqlitePath != "" {
		cfg.Telemetry.SQLitePath = *sqlitePath
	}

	if err := run(cfg, *outputDir, *snapshotDir, *perfWindow); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, outputDir, snapshotDir string, perfWindow int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer out.Close()

	var store *telemetry.TrackStore
	if cfg.Telemetry.SQLitePath != "" {
		if store, err = telemetry.OpenTrackStore(cfg.Telemetry.SQLitePath); err != nil {
			return err
		}
		defer store.Close()
	}

	var perf *telemetry.PerfCollector
	if perfWindow > 0 {
		perf = telemetry.NewPerfCollector(perfWindow)
	}

	// The recorder needs the run id, which the simulation assigns; route
	// snapshots through a Multi that is filled in after construction.
	observers := &telemetry.Multi{}
	s, err := sim.New(cfg, sim.Options{Observer: observers, Perf: perf})
	if err != nil {
		return err
	}
	runID := s.RunID().String()

	bookmarks := telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistory, cfg.Telemetry.ArrivalRadius)
	if snapshotDir != "" {
		bookmarks.OnBookmark = func(b telemetry.Bookmark) {
			if _, err := telemetry.SaveSnapshot(s.Snapshot(), snapshotDir); err != nil {
				slog.Warn("bookmark snapshot failed", "type", string(b.Type), "error", err)
			}
		}
	}

	sinks := []telemetry.Sink{out, bookmarks}
	if store != nil {
		sinks = append(sinks, store)
	}
	recorder := telemetry.NewRecorder(telemetry.RecorderOptions{
		RunID:        runID,
		RecordEvery:  cfg.Telemetry.RecordEvery,
		SummaryEvery: cfg.Telemetry.SummaryEvery,
		Source:       sim.Source(cfg.Arena),
	}, sinks...)
	*observers = append(*observers, recorder)

	if err := out.WriteConfig(cfg); err != nil {
		return err
	}
	if store != nil {
		yaml, err := cfg.YAML()
		if err != nil {
			return err
		}
		if err := store.BeginRun(telemetry.RunRecord{
			ID:         runID,
			Seed:       s.Seed(),
			Larvae:     cfg.Population.Count,
			DT:         cfg.Simulation.DT,
			ConfigYAML: yaml,
		}); err != nil {
			return err
		}
	}

	slog.Info("starting simulation",
		"run", runID,
		"seed", s.Seed(),
		"max_ticks", cfg.Simulation.MaxTicks,
		"output_dir", out.Dir(),
	)

	var runErr error
	for {
		chunk := cfg.Simulation.MaxTicks - int(s.Tick())
		if perfWindow > 0 && (cfg.Simulation.MaxTicks <= 0 || chunk > perfWindow) {
			chunk = perfWindow
		}
		if cfg.Simulation.MaxTicks > 0 && chunk <= 0 {
			slog.Info("max ticks reached", "tick", s.Tick())
			break
		}

		_, runErr = s.Run(ctx, chunk)
		if perf != nil {
			stats := perf.Stats()
			if err := out.WritePerf(stats, s.Tick()); err != nil {
				return err
			}
			stats.LogStats()
		}
		if runErr != nil {
			break
		}
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		slog.Info("interrupted", "tick", s.Tick())
	case errors.Is(runErr, sim.ErrNoLiveLarvae):
		slog.Warn("every larva halted", "tick", s.Tick())
	default:
		return runErr
	}

	if err := recorder.Close(); err != nil {
		return err
	}
	if store != nil {
		if err := store.EndRun(runID, s.Tick()); err != nil {
			return err
		}
	}

	if snapshotDir != "" {
		path, err := telemetry.SaveSnapshot(s.Snapshot(), snapshotDir)
		if err != nil {
			return err
		}
		slog.Info("snapshot saved", "path", path)
	}

	slog.Info("simulation finished",
		"run", runID,
		"tick", s.Tick(),
		"time", s.Time(),
		"census", s.Census(),
		"runs", recorder.Stats(),
		"bookmarks", len(bookmarks.Bookmarks()),
	)
	return nil
}
