package telemetry

import (
	"log/slog"
	"time"
)

// Phase identifies one timed stage of a tick.
type Phase uint8

// Phases in the order a tick runs them.
const (
	PhaseImpulse Phase = iota
	PhaseSpatialHash
	PhaseDensity
	PhaseForces
	PhaseIntegrate
	PhaseProject

	NumPhases
)

var phaseNames = [NumPhases]string{
	PhaseImpulse:     "impulse",
	PhaseSpatialHash: "spatial_hash",
	PhaseDensity:     "density",
	PhaseForces:      "forces",
	PhaseIntegrate:   "integrate",
	PhaseProject:     "project",
}

func (ph Phase) String() string {
	if ph < NumPhases {
		return phaseNames[ph]
	}
	return "unknown"
}

// PhaseTimes holds one duration per phase, indexed by Phase.
type PhaseTimes [NumPhases]time.Duration

type tickSample struct {
	total  time.Duration
	phases PhaseTimes
}

// PerfCollector keeps per-phase tick timings in a fixed ring of the last
// windowSize ticks. Recording a tick does not allocate.
type PerfCollector struct {
	ring   []tickSample
	next   int
	filled int

	current    tickSample
	tickStart  time.Time
	phaseStart time.Time
	active     Phase
	inPhase    bool

	now func() time.Time
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		ring: make([]tickSample, windowSize),
		now:  time.Now,
	}
}

// StartTick resets the in-progress sample.
func (p *PerfCollector) StartTick() {
	p.current = tickSample{}
	p.inPhase = false
	p.tickStart = p.now()
}

// StartPhase closes the running phase, if any, and starts timing ph.
// Entering the same phase twice in a tick accumulates.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := p.now()
	p.closePhase(now)
	p.active = ph
	p.phaseStart = now
	p.inPhase = true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase && p.active < NumPhases {
		p.current.phases[p.active] += now.Sub(p.phaseStart)
	}
	p.inPhase = false
}

// EndTick closes the running phase and stores the sample in the ring.
func (p *PerfCollector) EndTick() {
	now := p.now()
	p.closePhase(now)
	p.current.total = now.Sub(p.tickStart)

	p.ring[p.next] = p.current
	p.next = (p.next + 1) % len(p.ring)
	if p.filled < len(p.ring) {
		p.filled++
	}
}

// PerfStats holds timings averaged over the collector's window.
type PerfStats struct {
	Samples int

	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64

	PhaseAvg PhaseTimes
}

// Pct returns the share of the average tick spent in ph, in percent.
func (s PerfStats) Pct(ph Phase) float64 {
	if s.AvgTickDuration <= 0 || ph >= NumPhases {
		return 0
	}
	return float64(s.PhaseAvg[ph]) / float64(s.AvgTickDuration) * 100
}

// Stats aggregates the ticks currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{Samples: p.filled}
	if p.filled == 0 {
		return stats
	}

	var total time.Duration
	var sums PhaseTimes
	for i, s := range p.ring[:p.filled] {
		total += s.total
		if i == 0 || s.total < stats.MinTickDuration {
			stats.MinTickDuration = s.total
		}
		stats.MaxTickDuration = max(stats.MaxTickDuration, s.total)
		for ph, d := range s.phases {
			sums[ph] += d
		}
	}

	n := time.Duration(p.filled)
	stats.AvgTickDuration = total / n
	for ph, d := range sums {
		stats.PhaseAvg[ph] = d / n
	}
	if stats.AvgTickDuration > 0 {
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgTickDuration)
	}
	return stats
}

// LogStats logs the window averages. Phases under 0.1% are left out.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	for ph := range NumPhases {
		if pct := s.Pct(ph); pct > 0.1 {
			attrs = append(attrs, ph.String()+"_pct", float64(int(pct*10))/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 4+int(NumPhases))
	attrs = append(attrs,
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	)
	for ph := range NumPhases {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.Pct(ph)))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd      int     `csv:"window_end"`
	Workers        int     `csv:"workers"`
	AvgTickUS      int64   `csv:"avg_tick_us"`
	MinTickUS      int64   `csv:"min_tick_us"`
	MaxTickUS      int64   `csv:"max_tick_us"`
	TicksPerSec    float64 `csv:"ticks_per_sec"`
	ImpulsePct     float64 `csv:"impulse_pct"`
	SpatialHashPct float64 `csv:"spatial_hash_pct"`
	DensityPct     float64 `csv:"density_pct"`
	ForcesPct      float64 `csv:"forces_pct"`
	IntegratePct   float64 `csv:"integrate_pct"`
	ProjectPct     float64 `csv:"project_pct"`
}

// ToCSV flattens s into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd, workers int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		Workers:        workers,
		AvgTickUS:      s.AvgTickDuration.Microseconds(),
		MinTickUS:      s.MinTickDuration.Microseconds(),
		MaxTickUS:      s.MaxTickDuration.Microseconds(),
		TicksPerSec:    s.TicksPerSecond,
		ImpulsePct:     s.Pct(PhaseImpulse),
		SpatialHashPct: s.Pct(PhaseSpatialHash),
		DensityPct:     s.Pct(PhaseDensity),
		ForcesPct:      s.Pct(PhaseForces),
		IntegratePct:   s.Pct(PhaseIntegrate),
		ProjectPct:     s.Pct(PhaseProject),
	}
}
