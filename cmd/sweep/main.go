// Package main runs one scenario across executor modes and worker counts,
// reporting throughput and divergence from the sequential run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/splash/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 500, "Ticks per run")
	workersFlag := flag.String("workers", "2,4,8,16", "Comma-separated worker counts")
	modesFlag := flag.String("modes", "pool,fork", "Comma-separated parallel modes")
	tolerance := flag.Float64("tolerance", 1e-5, "Maximum allowed difference from the sequential run")
	outputDir := flag.String("output", "", "Output directory for sweep.csv (empty = stdout only)")
	flag.Parse()

	// Keep per-run creation logs out of the progress output
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	workers, err := parseWorkers(*workersFlag)
	if err != nil {
		log.Fatalf("invalid -workers: %v", err)
	}

	base, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	base.Run.MaxTicks = *maxTicks

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()

	ref, refState, err := runOnce(ctx, base, config.ModePool, 1)
	if err != nil {
		log.Fatalf("sequential run failed: %v", err)
	}
	ref.Speedup = 1
	results := []Result{ref}
	fmt.Printf("sequential: %d ticks in %.2fs (%.1f ticks/s)\n", ref.Ticks, ref.Seconds, ref.TicksPerSec)

	diverged := false
	for _, mode := range strings.Split(*modesFlag, ",") {
		mode = strings.TrimSpace(mode)
		for _, n := range workers {
			if n == 1 {
				continue
			}
			res, state, err := runOnce(ctx, base, mode, n)
			if err != nil {
				log.Fatalf("%s/%d failed: %v", mode, n, err)
			}
			compare(&res, state, ref, refState)
			results = append(results, res)

			fmt.Printf("%s/%d: %.1f ticks/s speedup=%.2fx max_diff=%g | elapsed: %s\n",
				mode, n, res.TicksPerSec, res.Speedup, res.MaxDiff,
				formatDuration(time.Since(startTime)))
			if res.MaxDiff > *tolerance {
				diverged = true
			}
		}
	}

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatalf("failed to create output directory: %v", err)
		}
		path := filepath.Join(*outputDir, "sweep.csv")
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("failed to create %s: %v", path, err)
		}
		if err := gocsv.MarshalFile(&results, f); err != nil {
			f.Close()
			log.Fatalf("failed to write %s: %v", path, err)
		}
		f.Close()
		fmt.Printf("\nResults saved to: %s\n", path)
	}

	if diverged {
		fmt.Printf("\nparallel runs diverged from sequential by more than %g\n", *tolerance)
		os.Exit(1)
	}
}
