package systems

import (
	"slices"
	"testing"

	"github.com/pthm-cable/splash/config"
)

func TestSpawn_Deterministic(t *testing.T) {
	cfg := config.Default()

	a := Spawn(cfg)
	b := Spawn(cfg)

	if len(a) != cfg.Spawn.Count {
		t.Fatalf("spawned %d, want %d", len(a), cfg.Spawn.Count)
	}
	if !slices.Equal(a, b) {
		t.Error("identical configs produced different particles")
	}

	cfg.Spawn.Seed++
	c := Spawn(cfg)
	if slices.Equal(a, c) {
		t.Error("different seeds produced identical jitter")
	}
}

func TestSpawn_GridFill(t *testing.T) {
	cfg := config.Default()
	cfg.Domain.Width = 10
	cfg.Domain.Height = 4
	cfg.Spawn.Count = 25
	cfg.ComputeDerived()

	particles := Spawn(cfg)
	if len(particles) != 25 {
		t.Fatalf("spawned %d, want 25", len(particles))
	}

	for i, p := range particles {
		wantX, wantY := float32(i%10), float32(i/10)
		if p.X != wantX || p.Y != wantY {
			t.Errorf("particle %d at (%v, %v), want (%v, %v)", i, p.X, p.Y, wantX, wantY)
		}
		if p.VY != 0 || p.AX != 0 || p.AY != 0 {
			t.Errorf("particle %d has non-zero initial state: %+v", i, p)
		}
		// jitter * [-5, 4]
		if p.VX < -0.5-1e-6 || p.VX > 0.4+1e-6 {
			t.Errorf("particle %d jitter %v out of range", i, p.VX)
		}
	}
}

func TestSpawn_DomainExhausted(t *testing.T) {
	cfg := config.Default()
	cfg.Domain.Width = 10
	cfg.Domain.Height = 10
	cfg.Spawn.Spacing = 2
	cfg.Spawn.Count = 500
	cfg.ComputeDerived()

	particles := Spawn(cfg)
	if len(particles) != 25 {
		t.Errorf("spawned %d, want 25 (5x5 at spacing 2)", len(particles))
	}
	last := particles[len(particles)-1]
	if last.X != 8 || last.Y != 8 {
		t.Errorf("last particle at (%v, %v), want (8, 8)", last.X, last.Y)
	}
}

func TestSpawn_FillsCapacity(t *testing.T) {
	for _, spacing := range []float64{0.1, 0.3, 0.7, 1.5} {
		cfg := config.Default()
		cfg.Domain.Width = 7
		cfg.Domain.Height = 3
		cfg.Spawn.Spacing = spacing
		cfg.Spawn.Count = 1 << 20
		cfg.ComputeDerived()

		particles := Spawn(cfg)
		if len(particles) != cfg.Derived.Capacity {
			t.Errorf("spacing %v: spawned %d, capacity %d", spacing, len(particles), cfg.Derived.Capacity)
		}
		for i, p := range particles {
			if p.X > 7 || p.Y > 3 {
				t.Errorf("spacing %v: particle %d at (%v, %v) outside the domain", spacing, i, p.X, p.Y)
				break
			}
		}
	}
}
