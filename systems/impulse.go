package systems

import (
	"math"

	"github.com/pthm-cable/splash/components"
)

// Impulse pushes every particle within radius of (x, y) directly away from
// it. The velocity kick falls off linearly from strength at the centre to
// zero at radius. Only velocity is touched. Returns the number of particles
// affected.
//
// Must not run while a pass is in flight.
func Impulse(store *components.Store, x, y, radius, strength float32) int {
	affected := 0
	for i := range store.Particles {
		p := &store.Particles[i]
		dx := p.X - x
		dy := p.Y - y
		r := float32(math.Sqrt(float64(dx*dx + dy*dy)))

		if r >= radius || r <= MinSeparation {
			continue
		}

		force := strength * (1 - r/radius)
		p.VX += dx / r * force
		p.VY += dy / r * force
		affected++
	}
	return affected
}
