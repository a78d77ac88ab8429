package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/splash/components"
	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/sim"
)

// Result is one row of sweep.csv.
type Result struct {
	Mode        string  `csv:"mode"`
	Workers     int     `csv:"workers"`
	Ticks       int     `csv:"ticks"`
	Seconds     float64 `csv:"seconds"`
	TicksPerSec float64 `csv:"ticks_per_sec"`
	Speedup     float64 `csv:"speedup"`  // Relative to the sequential run
	MaxDiff     float64 `csv:"max_diff"` // Largest field difference from the sequential run
	Anomalies   int     `csv:"anomalies"`
}

// runOnce runs base with the given executor settings and returns timing
// plus the flattened final particle state.
func runOnce(ctx context.Context, base *config.Config, mode string, workers int) (Result, []float64, error) {
	cfg := *base
	cfg.Parallel.Mode = mode
	cfg.Parallel.Workers = workers
	cfg.ComputeDerived()

	s, err := sim.New(&cfg, sim.Options{})
	if err != nil {
		return Result{}, nil, err
	}
	defer s.Close()

	start := time.Now()
	if err := s.Run(ctx, nil, nil); err != nil {
		return Result{}, nil, err
	}
	elapsed := time.Since(start)

	res := Result{
		Mode:      mode,
		Workers:   s.Workers(),
		Ticks:     s.TickCount(),
		Seconds:   elapsed.Seconds(),
		Anomalies: s.Anomalies(),
	}
	if res.Seconds > 0 {
		res.TicksPerSec = float64(res.Ticks) / res.Seconds
	}
	return res, flatten(s.Particles()), nil
}

// compare fills the fields of res that are relative to the reference run.
func compare(res *Result, state []float64, ref Result, refState []float64) {
	if res.Seconds > 0 {
		res.Speedup = ref.Seconds / res.Seconds
	}
	if len(state) != len(refState) {
		res.MaxDiff = math.Inf(1)
		return
	}
	res.MaxDiff = floats.Distance(state, refState, math.Inf(1))
}

func flatten(particles []components.Particle) []float64 {
	out := make([]float64, 0, len(particles)*8)
	for _, p := range particles {
		out = append(out,
			float64(p.X), float64(p.Y),
			float64(p.VX), float64(p.VY),
			float64(p.AX), float64(p.AY),
			float64(p.Density), float64(p.Pressure),
		)
	}
	return out
}

// parseWorkers parses a comma-separated list of positive worker counts.
func parseWorkers(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("worker count %q: %w", field, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("worker count must be >= 1, got %d", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no worker counts in %q", s)
	}
	return out, nil
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
