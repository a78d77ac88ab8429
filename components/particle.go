// Package components defines the particle state owned by the simulation.
package components

// DensityFloor is the smallest density ever used as a divisor.
const DensityFloor float32 = 1e-6

// Particle is a single SPH fluid particle.
type Particle struct {
	X, Y     float32
	VX, VY   float32
	AX, AY   float32
	Density  float32
	Pressure float32
}

// Store is the ordered, fixed-length particle array. Other packages refer to
// particles by index only; no pointer into Particles should outlive a pass.
type Store struct {
	Particles []Particle
}

// NewStore wraps the given particles. The slice is owned by the store from here on.
func NewStore(particles []Particle) *Store {
	return &Store{Particles: particles}
}

// Len returns the particle count.
func (s *Store) Len() int {
	return len(s.Particles)
}

// At returns a pointer to particle i, valid until the store is replaced.
func (s *Store) At(i int) *Particle {
	return &s.Particles[i]
}

// Snapshot returns a copy of the current particle state.
func (s *Store) Snapshot() []Particle {
	out := make([]Particle, len(s.Particles))
	copy(out, s.Particles)
	return out
}
