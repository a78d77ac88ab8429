package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/splash/components"
)

// WindowStats holds fluid statistics sampled at the end of a window.
type WindowStats struct {
	WindowStartTick int     `csv:"-"`
	WindowEndTick   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	Particles     int `csv:"particles"`
	OccupiedCells int `csv:"occupied_cells"`

	// Density distribution (sampled at window end)
	DensityMean float64 `csv:"density_mean"`
	DensityStd  float64 `csv:"density_std"`
	DensityP50  float64 `csv:"density_p50"`
	DensityP90  float64 `csv:"density_p90"`
	DensityMax  float64 `csv:"density_max"`

	// Motion
	SpeedMean     float64 `csv:"speed_mean"`
	SpeedMax      float64 `csv:"speed_max"`
	KineticEnergy float64 `csv:"kinetic_energy"`

	// Events during window
	Anomalies int `csv:"anomalies"`
	Impulses  int `csv:"impulses"`
	Pushed    int `csv:"pushed"` // Particles moved by impulses
}

// Distribution summarises a sample.
type Distribution struct {
	Mean, Std, P50, P90, Max float64
}

// Summarize computes mean, standard deviation, quantiles and max of values.
// values is sorted in place. Returns the zero Distribution for empty input.
func Summarize(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sort.Float64s(values)

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Distribution{
		Mean: mean,
		Std:  std,
		P50:  stat.Quantile(0.5, stat.Empirical, values, nil),
		P90:  stat.Quantile(0.9, stat.Empirical, values, nil),
		Max:  floats.Max(values),
	}
}

// Sampler computes WindowStats fields from particle state, reusing buffers.
type Sampler struct {
	densities []float64
	speeds    []float64
	energies  []float64
}

// Sample fills the particle-derived fields of a WindowStats.
func (s *Sampler) Sample(particles []components.Particle, mass float64, grid []int32) WindowStats {
	s.densities = s.densities[:0]
	s.speeds = s.speeds[:0]
	s.energies = s.energies[:0]

	for i := range particles {
		p := &particles[i]
		v2 := float64(p.VX)*float64(p.VX) + float64(p.VY)*float64(p.VY)
		s.densities = append(s.densities, float64(p.Density))
		s.speeds = append(s.speeds, math.Sqrt(v2))
		s.energies = append(s.energies, 0.5*mass*v2)
	}

	occupied := 0
	for _, c := range grid {
		if c > 0 {
			occupied++
		}
	}

	var kinetic float64
	if len(s.energies) > 0 {
		kinetic = floats.Sum(s.energies)
	}

	density := Summarize(s.densities)
	speed := Summarize(s.speeds)

	return WindowStats{
		Particles:     len(particles),
		OccupiedCells: occupied,
		DensityMean:   density.Mean,
		DensityStd:    density.Std,
		DensityP50:    density.P50,
		DensityP90:    density.P90,
		DensityMax:    density.Max,
		SpeedMean:     speed.Mean,
		SpeedMax:      speed.Max,
		KineticEnergy: kinetic,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("particles", s.Particles),
		slog.Int("occupied_cells", s.OccupiedCells),
		slog.Float64("density_mean", s.DensityMean),
		slog.Float64("density_std", s.DensityStd),
		slog.Float64("density_p50", s.DensityP50),
		slog.Float64("density_p90", s.DensityP90),
		slog.Float64("density_max", s.DensityMax),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Int("anomalies", s.Anomalies),
		slog.Int("impulses", s.Impulses),
		slog.Int("pushed", s.Pushed),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"occupied_cells", s.OccupiedCells,
		"density_mean", s.DensityMean,
		"density_max", s.DensityMax,
		"speed_max", s.SpeedMax,
		"kinetic_energy", s.KineticEnergy,
		"anomalies", s.Anomalies,
		"impulses", s.Impulses,
	)
}
