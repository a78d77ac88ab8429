// Package sim owns the particle store and spatial hash and drives ticks.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pthm-cable/splash/components"
	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/parallel"
	"github.com/pthm-cable/splash/systems"
	"github.com/pthm-cable/splash/telemetry"
)

// ErrGridSize is returned by Tick when the occupancy buffer does not match
// the given dimensions.
var ErrGridSize = errors.New("occupancy grid size mismatch")

// Impulse is a blast request in domain coordinates.
type Impulse struct {
	X, Y float32
}

// Options holds optional collaborators for a simulation.
type Options struct {
	Output   *telemetry.OutputManager // nil disables CSV output
	LogStats bool                     // log window stats and perf via slog
}

// Simulation is the explicit context for one run. It is not safe for
// concurrent use: Tick, Explode and Run must be called from one goroutine.
type Simulation struct {
	cfg *config.Config

	store     *components.Store
	grid      *systems.SpatialHash
	fluid     *systems.Fluid
	projector *systems.Projector
	exec      parallel.Executor

	// Telemetry
	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	sampler   telemetry.Sampler
	output    *telemetry.OutputManager
	logStats  bool

	// Scripted impulses, sorted by tick
	script     []config.ImpulseEvent
	scriptNext int

	tick      int
	anomalies int
	lastGrid  []int32
}

// New validates cfg and spawns the initial particles. Nothing is allocated
// for an invalid config.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	if cfg.Fluid.CellSize < cfg.Fluid.SmoothingRadius {
		slog.Warn("cell size below smoothing radius, neighbour search will miss pairs",
			"cell_size", cfg.Fluid.CellSize,
			"smoothing_radius", cfg.Fluid.SmoothingRadius,
		)
	}

	particles := systems.Spawn(cfg)
	if len(particles) < cfg.Spawn.Count {
		slog.Warn("domain exhausted before spawn count reached",
			"requested", cfg.Spawn.Count,
			"spawned", len(particles),
		)
	}

	script := make([]config.ImpulseEvent, len(cfg.Impulses))
	copy(script, cfg.Impulses)
	sort.SliceStable(script, func(i, j int) bool { return script[i].Tick < script[j].Tick })

	s := &Simulation{
		cfg:       cfg,
		store:     components.NewStore(particles),
		grid:      systems.NewSpatialHash(cfg.Derived.CellSize32),
		fluid:     systems.NewFluid(systems.NewKernel(cfg.Derived.H32), systems.FluidParamsFromConfig(cfg)),
		projector: systems.NewProjector(),
		exec:      newExecutor(cfg.Parallel),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		collector: telemetry.NewCollector(cfg.Telemetry.WindowTicks, cfg.Fluid.DT),
		output:    opts.Output,
		logStats:  opts.LogStats,
		script:    script,
	}

	slog.Info("simulation created",
		"particles", s.store.Len(),
		"domain_w", cfg.Domain.Width,
		"domain_h", cfg.Domain.Height,
		"workers", s.exec.Workers(),
		"mode", cfg.Parallel.Mode,
	)

	return s, nil
}

func newExecutor(pc config.ParallelConfig) parallel.Executor {
	workers := parallel.ResolveWorkers(pc.Workers)
	switch {
	case workers == 1:
		return parallel.Sequential{}
	case pc.Mode == config.ModeFork:
		return parallel.NewFork(workers)
	default:
		return parallel.NewPool(workers)
	}
}

// Tick runs one full pipeline pass and overwrites grid with per-cell counts.
// Stages are separated by full joins: rebuild, density, forces, integrate, project.
func (s *Simulation) Tick(grid []int32, width, height int) error {
	if width <= 0 || height <= 0 || len(grid) != width*height {
		return fmt.Errorf("%w: %d cells for %dx%d", ErrGridSize, len(grid), width, height)
	}

	s.perf.StartTick()
	s.step(grid, width, height)
	return nil
}

// step runs the pipeline stages of one tick inside an already started perf tick.
func (s *Simulation) step(grid []int32, width, height int) {
	s.perf.StartPhase(telemetry.PhaseSpatialHash)
	if s.exec.Workers() > 1 {
		s.grid.RebuildParallel(s.store, s.exec)
	} else {
		s.grid.Rebuild(s.store)
	}

	s.perf.StartPhase(telemetry.PhaseDensity)
	s.fluid.DensityPass(s.store, s.grid, s.exec)

	s.perf.StartPhase(telemetry.PhaseForces)
	anomalies := s.fluid.ForcePass(s.store, s.grid, s.exec)

	s.perf.StartPhase(telemetry.PhaseIntegrate)
	s.fluid.IntegratePass(s.store, float32(width), float32(height), s.exec)

	s.perf.StartPhase(telemetry.PhaseProject)
	s.projector.ProjectParallel(s.store, grid, width, height, s.exec)

	s.perf.EndTick()

	s.tick++
	s.lastGrid = grid
	if anomalies > 0 {
		s.anomalies += anomalies
		s.collector.RecordAnomalies(anomalies)
		slog.Debug("non-finite acceleration reset", "tick", s.tick, "count", anomalies)
	}

	if s.collector.ShouldFlush(s.tick) {
		s.flushTelemetry()
	}
}

// Explode applies a blast centred on (x, y) using the configured radius and
// strength. Call only between ticks. Returns the number of particles pushed.
func (s *Simulation) Explode(x, y float32) int {
	pushed := systems.Impulse(s.store, x, y, float32(s.cfg.Blast.Radius), float32(s.cfg.Blast.Strength))
	s.collector.RecordImpulse(pushed)
	slog.Debug("impulse", "tick", s.tick, "x", x, "y", y, "pushed", pushed)
	return pushed
}

// Run ticks until the configured tick budget is spent or ctx is cancelled.
// Cancellation is honoured between ticks only. Impulses received on the
// channel and scripted impulses due at the current tick are applied before
// the tick runs. onTick, if set, sees the grid after every tick and must not
// keep it.
func (s *Simulation) Run(ctx context.Context, impulses <-chan Impulse, onTick func(tick int, grid []int32)) error {
	width, height := s.cfg.Domain.Width, s.cfg.Domain.Height
	grid := make([]int32, s.cfg.Derived.GridCells)

	for s.tick < s.cfg.Run.MaxTicks {
		if ctx.Err() != nil {
			slog.Info("simulation stopped", "tick", s.tick)
			return nil
		}

		s.perf.StartTick()
		s.perf.StartPhase(telemetry.PhaseImpulse)
		impulses = s.drainImpulses(impulses)
		s.applyScript()
		s.step(grid, width, height)

		if onTick != nil {
			onTick(s.tick, grid)
		}
	}

	slog.Info("tick budget reached", "tick", s.tick)
	return nil
}

// drainImpulses applies every queued impulse without blocking. Returns nil
// once the channel is closed.
func (s *Simulation) drainImpulses(impulses <-chan Impulse) <-chan Impulse {
	for impulses != nil {
		select {
		case ev, ok := <-impulses:
			if !ok {
				return nil
			}
			s.Explode(ev.X, ev.Y)
		default:
			return impulses
		}
	}
	return nil
}

// applyScript fires scripted impulses due at or before the current tick.
func (s *Simulation) applyScript() {
	for s.scriptNext < len(s.script) && s.script[s.scriptNext].Tick <= s.tick {
		ev := s.script[s.scriptNext]
		s.Explode(float32(ev.X), float32(ev.Y))
		s.scriptNext++
	}
}

// flushTelemetry samples the current state and emits a window record.
func (s *Simulation) flushTelemetry() {
	sampled := s.sampler.Sample(s.store.Particles, s.cfg.Fluid.Mass, s.lastGrid)
	stats := s.collector.Flush(s.tick, sampled)
	perf := s.perf.Stats()

	if s.logStats {
		stats.LogStats()
		perf.LogStats()
	}

	if err := s.output.WriteStats(stats); err != nil {
		slog.Error("failed to write stats", "error", err)
	}
	if err := s.output.WritePerf(perf, s.tick, s.exec.Workers()); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

// Particles returns a copy of the current particle state.
func (s *Simulation) Particles() []components.Particle {
	return s.store.Snapshot()
}

// Len returns the particle count.
func (s *Simulation) Len() int {
	return s.store.Len()
}

// TickCount returns the number of completed ticks.
func (s *Simulation) TickCount() int {
	return s.tick
}

// Anomalies returns the total number of non-finite accelerations reset so far.
func (s *Simulation) Anomalies() int {
	return s.anomalies
}

// Workers returns the executor fan-out.
func (s *Simulation) Workers() int {
	return s.exec.Workers()
}

// PerfStats returns rolling performance statistics.
func (s *Simulation) PerfStats() telemetry.PerfStats {
	return s.perf.Stats()
}

// Close releases worker goroutines.
func (s *Simulation) Close() {
	s.exec.Close()
}
