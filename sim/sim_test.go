package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/pthm-cable/splash/components"
	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/telemetry"
)

// testConfig returns a small dam-break setup that still fills several
// hash cells per worker chunk.
func testConfig(workers int, mode string, ticks int) *config.Config {
	cfg := config.Default()
	cfg.Domain.Width = 200
	cfg.Domain.Height = 100
	cfg.Spawn.Count = 1500
	cfg.Parallel.Workers = workers
	cfg.Parallel.Mode = mode
	cfg.Run.MaxTicks = ticks
	cfg.ComputeDerived()
	return cfg
}

func newSim(t *testing.T, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	s, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func equalParticles(t *testing.T, label string, got, want []components.Particle, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: %d particles, want %d", label, len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		fields := [...][2]float32{
			{g.X, w.X}, {g.Y, w.Y},
			{g.VX, w.VX}, {g.VY, w.VY},
			{g.AX, w.AX}, {g.AY, w.AY},
			{g.Density, w.Density}, {g.Pressure, w.Pressure},
		}
		for _, f := range fields {
			if !scalar.EqualWithinAbs(float64(f[0]), float64(f[1]), tol) {
				t.Fatalf("%s: particle %d = %+v, want %+v", label, i, g, w)
			}
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(1, config.ModePool, 10)
	cfg.Spawn.Count = 0

	s, err := New(cfg, Options{})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if s != nil {
		t.Error("simulation returned for invalid config")
	}
}

func TestNew_DomainExhausted(t *testing.T) {
	cfg := testConfig(1, config.ModePool, 10)
	cfg.Domain.Width = 10
	cfg.Domain.Height = 10
	cfg.Spawn.Count = 500
	cfg.ComputeDerived()

	s := newSim(t, cfg, Options{})
	if s.Len() != 100 {
		t.Errorf("Len = %d, want 100", s.Len())
	}
}

func TestTick_GridSize(t *testing.T) {
	s := newSim(t, testConfig(1, config.ModePool, 10), Options{})

	err := s.Tick(make([]int32, 10), 200, 100)
	if !errors.Is(err, ErrGridSize) {
		t.Fatalf("err = %v, want ErrGridSize", err)
	}
	if s.TickCount() != 0 {
		t.Errorf("rejected tick advanced the count to %d", s.TickCount())
	}
}

func TestRun_OccupancyConserved(t *testing.T) {
	cfg := testConfig(4, config.ModePool, 25)
	cfg.Impulses = []config.ImpulseEvent{{Tick: 10, X: 100, Y: 5}}
	s := newSim(t, cfg, Options{})

	var last int
	err := s.Run(context.Background(), nil, func(tick int, grid []int32) {
		last = tick
		if len(grid) != 200*100 {
			t.Fatalf("grid has %d cells, want %d", len(grid), 200*100)
		}
		total := 0
		for _, c := range grid {
			total += int(c)
		}
		if total != s.Len() {
			t.Errorf("tick %d: grid sum %d, want %d", tick, total, s.Len())
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if last != 25 || s.TickCount() != 25 {
		t.Errorf("stopped at tick %d (last callback %d), want 25", s.TickCount(), last)
	}
	if s.Anomalies() != 0 {
		t.Errorf("anomalies = %d, want 0", s.Anomalies())
	}
}

// TestRun_DeterministicAcrossWorkers runs the same scenario with every
// executor and compares the final state against the sequential run.
func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	const ticks = 20
	impulses := []config.ImpulseEvent{{Tick: 5, X: 100, Y: 5}}

	refCfg := testConfig(1, config.ModePool, ticks)
	refCfg.Impulses = impulses
	ref := newSim(t, refCfg, Options{})
	if err := ref.Run(context.Background(), nil, nil); err != nil {
		t.Fatalf("reference Run: %v", err)
	}
	want := ref.Particles()

	for _, mode := range []string{config.ModePool, config.ModeFork} {
		for _, workers := range []int{2, 4, 8, 16} {
			cfg := testConfig(workers, mode, ticks)
			cfg.Impulses = impulses
			s := newSim(t, cfg, Options{})
			if s.Workers() != workers {
				t.Fatalf("Workers = %d, want %d", s.Workers(), workers)
			}
			if err := s.Run(context.Background(), nil, nil); err != nil {
				t.Fatalf("%s/%d Run: %v", mode, workers, err)
			}
			equalParticles(t, fmt.Sprintf("%s/%d", mode, workers), s.Particles(), want, 1e-5)
		}
	}
}

func TestRun_ContextCancel(t *testing.T) {
	s := newSim(t, testConfig(2, config.ModeFork, 100), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := s.Run(ctx, nil, func(tick int, _ []int32) {
		if tick == 3 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.TickCount() != 3 {
		t.Errorf("TickCount = %d, want 3", s.TickCount())
	}
}

// TestRun_ImpulseSources checks that a queued impulse, a scripted impulse and
// a direct Explode call before the first tick all produce the same state.
func TestRun_ImpulseSources(t *testing.T) {
	const ticks = 5

	direct := newSim(t, testConfig(1, config.ModePool, ticks), Options{})
	if pushed := direct.Explode(100, 5); pushed == 0 {
		t.Fatal("Explode pushed no particles")
	}
	grid := make([]int32, 200*100)
	for i := 0; i < ticks; i++ {
		if err := direct.Tick(grid, 200, 100); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	want := direct.Particles()

	queued := newSim(t, testConfig(1, config.ModePool, ticks), Options{})
	ch := make(chan Impulse, 1)
	ch <- Impulse{X: 100, Y: 5}
	if err := queued.Run(context.Background(), ch, nil); err != nil {
		t.Fatalf("queued Run: %v", err)
	}
	equalParticles(t, "queued", queued.Particles(), want, 0)

	scriptCfg := testConfig(1, config.ModePool, ticks)
	scriptCfg.Impulses = []config.ImpulseEvent{{Tick: 0, X: 100, Y: 5}}
	scripted := newSim(t, scriptCfg, Options{})
	if err := scripted.Run(context.Background(), nil, nil); err != nil {
		t.Fatalf("scripted Run: %v", err)
	}
	equalParticles(t, "scripted", scripted.Particles(), want, 0)
}

func TestRun_ClosedImpulseChannel(t *testing.T) {
	s := newSim(t, testConfig(1, config.ModePool, 3), Options{})
	ch := make(chan Impulse)
	close(ch)

	if err := s.Run(context.Background(), ch, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.TickCount() != 3 {
		t.Errorf("TickCount = %d, want 3", s.TickCount())
	}
}

func TestRun_WritesTelemetry(t *testing.T) {
	dir := t.TempDir()
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	cfg := testConfig(2, config.ModePool, 10)
	cfg.Telemetry.WindowTicks = 5
	s := newSim(t, cfg, Options{Output: om})
	if err := s.Run(context.Background(), nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{"ticks.csv", "perf.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Errorf("%s has %d lines, want header + 2 rows:\n%s", name, len(lines), data)
		}
	}
}
