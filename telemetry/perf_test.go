package telemetry

import (
	"testing"
	"time"
)

// stepClock advances by step on every read.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestCollector(window int, step time.Duration) *PerfCollector {
	pc := NewPerfCollector(window)
	pc.now = (&stepClock{t: time.Unix(0, 0), step: step}).now
	return pc
}

// runTick starts each phase in order; every clock read is one step, so
// every phase lasts exactly one step and the tick lasts len(phases)+1 steps.
func runTick(pc *PerfCollector, phases ...Phase) {
	pc.StartTick()
	for _, ph := range phases {
		pc.StartPhase(ph)
	}
	pc.EndTick()
}

func allPhases() []Phase {
	out := make([]Phase, 0, NumPhases)
	for ph := range NumPhases {
		out = append(out, ph)
	}
	return out
}

func TestPerfCollector_RecordsEveryPhase(t *testing.T) {
	pc := newTestCollector(8, time.Millisecond)
	for range 3 {
		runTick(pc, allPhases()...)
	}

	stats := pc.Stats()
	if stats.Samples != 3 {
		t.Fatalf("samples = %d, want 3", stats.Samples)
	}
	if want := time.Duration(NumPhases+1) * time.Millisecond; stats.AvgTickDuration != want {
		t.Errorf("avg tick = %v, want %v", stats.AvgTickDuration, want)
	}
	for ph := range NumPhases {
		if stats.PhaseAvg[ph] != time.Millisecond {
			t.Errorf("%s avg = %v, want 1ms", ph, stats.PhaseAvg[ph])
		}
	}
	if got, want := stats.Pct(PhaseForces), 100.0/float64(NumPhases+1); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("forces pct = %v, want %v", got, want)
	}
}

func TestPerfCollector_RepeatedPhaseAccumulates(t *testing.T) {
	pc := newTestCollector(4, time.Millisecond)
	runTick(pc, PhaseDensity, PhaseForces, PhaseDensity)

	stats := pc.Stats()
	if stats.PhaseAvg[PhaseDensity] != 2*time.Millisecond {
		t.Errorf("density = %v, want 2ms", stats.PhaseAvg[PhaseDensity])
	}
	if stats.PhaseAvg[PhaseProject] != 0 {
		t.Errorf("unused phase = %v, want 0", stats.PhaseAvg[PhaseProject])
	}
}

func TestPerfCollector_WindowDropsOldTicks(t *testing.T) {
	pc := newTestCollector(2, time.Millisecond)
	runTick(pc, PhaseDensity, PhaseForces, PhaseIntegrate, PhaseProject) // 5ms
	runTick(pc, PhaseDensity)                                            // 2ms
	runTick(pc, PhaseDensity)                                            // 2ms, evicts the first

	stats := pc.Stats()
	if stats.Samples != 2 {
		t.Fatalf("samples = %d, want 2", stats.Samples)
	}
	if stats.MaxTickDuration != 2*time.Millisecond || stats.MinTickDuration != 2*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 2ms/2ms", stats.MinTickDuration, stats.MaxTickDuration)
	}
	if stats.PhaseAvg[PhaseForces] != 0 {
		t.Errorf("evicted phase still averaged: %v", stats.PhaseAvg[PhaseForces])
	}
	if stats.TicksPerSecond != 500 {
		t.Errorf("ticks/s = %v, want 500", stats.TicksPerSecond)
	}
}

func TestPerfCollector_Empty(t *testing.T) {
	stats := NewPerfCollector(10).Stats()
	if stats.Samples != 0 || stats.AvgTickDuration != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
	if stats.Pct(PhaseDensity) != 0 {
		t.Error("empty stats report a phase share")
	}
}

func TestPerfCollector_TickDoesNotAllocate(t *testing.T) {
	pc := NewPerfCollector(16)
	phases := allPhases()

	allocs := testing.AllocsPerRun(100, func() {
		runTick(pc, phases...)
	})
	if allocs != 0 {
		t.Errorf("recording a tick allocated %v times", allocs)
	}
}

func TestPhase_String(t *testing.T) {
	if PhaseSpatialHash.String() != "spatial_hash" {
		t.Errorf("String = %q", PhaseSpatialHash.String())
	}
	if NumPhases.String() != "unknown" {
		t.Errorf("out of range String = %q", NumPhases.String())
	}
}

func TestPerfStats_ToCSV(t *testing.T) {
	pc := newTestCollector(4, time.Millisecond)
	runTick(pc, PhaseForces, PhaseIntegrate)

	row := pc.Stats().ToCSV(300, 8)
	if row.WindowEnd != 300 || row.Workers != 8 {
		t.Errorf("row = %+v, want window_end 300 workers 8", row)
	}
	if row.AvgTickUS != 3000 {
		t.Errorf("avg tick us = %d, want 3000", row.AvgTickUS)
	}
	if row.ForcesPct != row.IntegratePct || row.ForcesPct <= 33 || row.ForcesPct >= 34 {
		t.Errorf("forces/integrate pct = %v/%v, want a third each", row.ForcesPct, row.IntegratePct)
	}
	if row.DensityPct != 0 {
		t.Errorf("untracked density pct = %v, want 0", row.DensityPct)
	}
}
