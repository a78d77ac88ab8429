package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/sim"
	"github.com/pthm-cable/splash/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	logStats := flag.Bool("log-stats", false, "Output window stats and perf via slog")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = use config)")
	workers := flag.Int("workers", -1, "Worker count, 1 = sequential, 0 = one per CPU (-1 = use config)")
	mode := flag.String("mode", "", "Parallel mode: pool or fork (empty = use config)")
	seed := flag.Int64("seed", 0, "Spawn jitter seed (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *maxTicks > 0 {
		cfg.Run.MaxTicks = *maxTicks
	}
	if *workers >= 0 {
		cfg.Parallel.Workers = *workers
	}
	if *mode != "" {
		cfg.Parallel.Mode = *mode
	}
	if *seed != 0 {
		cfg.Spawn.Seed = *seed
	}

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output", "error", err)
		os.Exit(1)
	}
	defer output.Close()

	s, err := sim.New(cfg, sim.Options{Output: output, LogStats: *logStats})
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	// Quit signal stops the loop between ticks
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting headless simulation",
		"seed", cfg.Spawn.Seed,
		"max_ticks", cfg.Run.MaxTicks,
		"impulses", len(cfg.Impulses),
		"output_dir", output.Dir(),
	)

	if err := s.Run(ctx, nil, nil); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	s.PerfStats().LogStats()
	slog.Info("simulation finished", "tick", s.TickCount(), "anomalies", s.Anomalies())
}
