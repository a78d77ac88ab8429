package systems

import (
	"math"

	"github.com/pthm-cable/splash/components"
	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/parallel"
)

// MinSeparation is the distance below which a particle pair is skipped in
// the force pass (and an impulse is skipped), since the unit vector between
// them is undefined.
const MinSeparation float32 = 1e-4

// FluidParams holds the per-run SPH constants in float32 for the hot loops.
type FluidParams struct {
	Mass          float32
	RestDensity   float32
	Stiffness     float32
	Viscosity     float32
	Gravity       float32
	DT            float32
	BounceDamping float32
}

// FluidParamsFromConfig converts the fluid section of cfg.
func FluidParamsFromConfig(cfg *config.Config) FluidParams {
	f := cfg.Fluid
	return FluidParams{
		Mass:          float32(f.Mass),
		RestDensity:   float32(f.RestDensity),
		Stiffness:     float32(f.Stiffness),
		Viscosity:     float32(f.Viscosity),
		Gravity:       float32(f.Gravity),
		DT:            cfg.Derived.DT32,
		BounceDamping: float32(f.BounceDamping),
	}
}

// fluidScratch holds per-worker reusable buffers.
type fluidScratch struct {
	neighbors []int32
	anomalies int
}

// Fluid runs the three SPH passes. Each pass reads state frozen by the
// previous one; the executor's join between passes is the barrier.
type Fluid struct {
	Kernel Kernel
	Params FluidParams

	scratches []fluidScratch
}

// NewFluid creates the pass runner.
func NewFluid(kernel Kernel, params FluidParams) *Fluid {
	return &Fluid{Kernel: kernel, Params: params}
}

func (f *Fluid) ensureScratch(workers int) {
	for len(f.scratches) < workers {
		f.scratches = append(f.scratches, fluidScratch{neighbors: make([]int32, 0, 256)})
	}
}

// DensityPass sets density and pressure for every particle. Only positions
// are read, so workers never observe each other's writes.
func (f *Fluid) DensityPass(store *components.Store, grid *SpatialHash, exec parallel.Executor) {
	f.ensureScratch(exec.Workers())
	exec.Run(store.Len(), func(worker int, c parallel.Chunk) {
		scratch := &f.scratches[worker]
		for i := c.Start; i < c.End; i++ {
			scratch.neighbors = f.densityPressure(store, grid, i, scratch.neighbors[:0])
		}
	})
}

// ForcePass computes acceleration for every particle and returns how many
// non-finite accelerations were reset to zero.
func (f *Fluid) ForcePass(store *components.Store, grid *SpatialHash, exec parallel.Executor) int {
	f.ensureScratch(exec.Workers())
	for w := range f.scratches {
		f.scratches[w].anomalies = 0
	}

	exec.Run(store.Len(), func(worker int, c parallel.Chunk) {
		scratch := &f.scratches[worker]
		for i := c.Start; i < c.End; i++ {
			var anomaly bool
			scratch.neighbors, anomaly = f.forces(store, grid, i, scratch.neighbors[:0])
			if anomaly {
				scratch.anomalies++
			}
		}
	})

	total := 0
	for w := range f.scratches {
		total += f.scratches[w].anomalies
	}
	return total
}

// IntegratePass advances every particle by one time step inside a
// width x height domain.
func (f *Fluid) IntegratePass(store *components.Store, width, height float32, exec parallel.Executor) {
	exec.Run(store.Len(), func(_ int, c parallel.Chunk) {
		for i := c.Start; i < c.End; i++ {
			Integrate(&store.Particles[i], &f.Params, width, height)
		}
	})
}

// densityPressure sums kernel-weighted mass over the 3x3 neighbourhood of
// particle i (itself included) and derives pressure from it.
func (f *Fluid) densityPressure(store *components.Store, grid *SpatialHash, i int, scratch []int32) []int32 {
	particles := store.Particles
	p := &particles[i]

	scratch = grid.NeighborsInto(scratch, p.X, p.Y)

	var density float32
	for _, j := range scratch {
		p2 := &particles[j]
		dx := p2.X - p.X
		dy := p2.Y - p.Y
		density += f.Params.Mass * f.Kernel.Density(dx*dx+dy*dy)
	}

	p.Pressure = f.Params.Stiffness * max(density-f.Params.RestDensity, 0)
	p.Density = max(density, components.DensityFloor)

	return scratch
}

// forces accumulates pressure, viscosity and gravity on particle i and
// stores the resulting acceleration. Only particle i is written.
func (f *Fluid) forces(store *components.Store, grid *SpatialHash, i int, scratch []int32) ([]int32, bool) {
	particles := store.Particles
	p := &particles[i]
	prm := &f.Params
	h := f.Kernel.H()

	scratch = grid.NeighborsInto(scratch, p.X, p.Y)

	density := max(p.Density, components.DensityFloor)
	pTerm := p.Pressure / (density * density)

	var fx, fy float32
	for _, j := range scratch {
		if int(j) == i {
			continue
		}
		p2 := &particles[j]

		dx := p2.X - p.X
		dy := p2.Y - p.Y
		r := float32(math.Sqrt(float64(dx*dx + dy*dy)))
		if r >= h || r <= MinSeparation {
			continue
		}

		density2 := max(p2.Density, components.DensityFloor)

		// Symmetric pressure term along the unit separation
		grad := prm.Mass * (pTerm + p2.Pressure/(density2*density2)) * f.Kernel.PressureGradient(r)
		fx += grad * (dx / r)
		fy += grad * (dy / r)

		// Viscous diffusion of relative velocity
		visc := prm.Viscosity * prm.Mass / density2 * f.Kernel.Viscosity(r)
		fx += visc * (p2.VX - p.VX)
		fy += visc * (p2.VY - p.VY)
	}

	fy += prm.Gravity * density

	p.AX = fx / density
	p.AY = fy / density

	if !finite(p.AX) || !finite(p.AY) {
		p.AX, p.AY = 0, 0
		return scratch, true
	}
	return scratch, false
}

// Integrate applies one semi-implicit Euler step and reflects the particle
// off the domain walls at [0, extent-1], damping the bounced component.
func Integrate(p *components.Particle, prm *FluidParams, width, height float32) {
	p.VX += prm.DT * p.AX
	p.VY += prm.DT * p.AY

	p.X += prm.DT * p.VX
	p.Y += prm.DT * p.VY

	if p.X < 0 {
		p.X = 0
		p.VX *= -prm.BounceDamping
	}
	if p.X > width-1 {
		p.X = width - 1
		p.VX *= -prm.BounceDamping
	}
	if p.Y < 0 {
		p.Y = 0
		p.VY *= -prm.BounceDamping
	}
	if p.Y > height-1 {
		p.Y = height - 1
		p.VY *= -prm.BounceDamping
	}
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
