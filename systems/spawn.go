package systems

import (
	"math/rand"

	"github.com/pthm-cable/splash/components"
	"github.com/pthm-cable/splash/config"
)

// Spawn places particles row by row from the origin at cfg.Spawn.Spacing
// until Spawn.Count is reached or the domain is full. Each particle gets a
// small horizontal velocity jitter from a source seeded with Spawn.Seed, so
// identical configs always produce identical initial state.
func Spawn(cfg *config.Config) []components.Particle {
	rng := rand.New(rand.NewSource(cfg.Spawn.Seed))

	count := cfg.Spawn.Count
	if capacity := cfg.Derived.Capacity; capacity < count {
		count = capacity
	}
	particles := make([]components.Particle, 0, count)

	spacing := cfg.Spawn.Spacing
	jitter := float32(cfg.Spawn.Jitter)

	for row := 0; row < cfg.Derived.SpawnRows && len(particles) < count; row++ {
		for col := 0; col < cfg.Derived.SpawnCols && len(particles) < count; col++ {
			particles = append(particles, components.Particle{
				X:  float32(float64(col) * spacing),
				Y:  float32(float64(row) * spacing),
				VX: jitter * float32(rng.Intn(10)-5),
			})
		}
	}

	return particles
}
