package systems

import (
	"github.com/pthm-cable/splash/components"
	"github.com/pthm-cable/splash/parallel"
)

// Projector rasterizes particle positions into an occupancy histogram.
//
// In parallel each worker counts into a private full-size histogram and a
// single-threaded reduction sums them, so no cell is ever incremented
// concurrently.
type Projector struct {
	histograms [][]int32
}

// NewProjector creates a projector. Histograms are allocated on first use.
func NewProjector() *Projector {
	return &Projector{}
}

// cellIndex returns the row-major cell for p, or -1 when it is outside the grid.
func cellIndex(p *components.Particle, width, height int) int {
	if !(p.X >= 0 && p.Y >= 0) { // also rejects NaN
		return -1
	}
	xi := int(p.X)
	yi := int(p.Y)
	if xi >= width || yi >= height {
		return -1
	}
	return yi*width + xi
}

// Project overwrites grid with per-cell particle counts, single-threaded.
func Project(store *components.Store, grid []int32, width, height int) {
	clear(grid)
	for i := range store.Particles {
		if idx := cellIndex(&store.Particles[i], width, height); idx >= 0 {
			grid[idx]++
		}
	}
}

// ProjectParallel overwrites grid with per-cell particle counts using exec.
func (pr *Projector) ProjectParallel(store *components.Store, grid []int32, width, height int, exec parallel.Executor) {
	if exec.Workers() <= 1 {
		Project(store, grid, width, height)
		return
	}

	size := width * height
	for len(pr.histograms) < exec.Workers() {
		pr.histograms = append(pr.histograms, nil)
	}

	used := make([]bool, exec.Workers())
	exec.Run(store.Len(), func(worker int, c parallel.Chunk) {
		h := pr.histograms[worker]
		if len(h) != size {
			h = make([]int32, size)
			pr.histograms[worker] = h
		} else {
			clear(h)
		}
		used[worker] = true

		for i := c.Start; i < c.End; i++ {
			if idx := cellIndex(&store.Particles[i], width, height); idx >= 0 {
				h[idx]++
			}
		}
	})

	clear(grid)
	for w, ok := range used {
		if !ok {
			continue
		}
		for idx, count := range pr.histograms[w] {
			if count != 0 {
				grid[idx] += count
			}
		}
	}
}
