package systems

import (
	"math"

	"github.com/pthm-cable/splash/components"
	"github.com/pthm-cable/splash/parallel"
)

// CellKey identifies a spatial hash cell: (floor(x/C), floor(y/C)).
type CellKey struct {
	X, Y int32
}

// SpatialHash buckets particle indices by cell for neighbour queries.
//
// Buckets hold indices into the particle store, in ascending index order.
// The hash is only valid for the tick it was rebuilt in; any position change
// invalidates it.
//
// Queries scan the 3x3 block of cells around a point, so they find every
// particle within one cell width. With a cell size smaller than the smoothing
// radius some true neighbours are missed. That is a tuning parameter, not
// something the hash corrects for.
type SpatialHash struct {
	cellSize float32
	buckets  map[CellKey][]int32

	// Per-worker maps for parallel rebuilds, merged in worker order
	locals []map[CellKey][]int32
}

// NewSpatialHash creates an empty hash with the given cell size.
func NewSpatialHash(cellSize float32) *SpatialHash {
	return &SpatialHash{
		cellSize: cellSize,
		buckets:  make(map[CellKey][]int32),
	}
}

// CellOf returns the key of the cell containing (x, y).
func (g *SpatialHash) CellOf(x, y float32) CellKey {
	return CellKey{
		X: int32(math.Floor(float64(x / g.cellSize))),
		Y: int32(math.Floor(float64(y / g.cellSize))),
	}
}

// Clear empties every bucket. Bucket storage is kept for the next rebuild.
func (g *SpatialHash) Clear() {
	truncate(g.buckets)
}

func truncate(m map[CellKey][]int32) {
	for k, v := range m {
		m[k] = v[:0]
	}
}

// Rebuild clears the hash and inserts every particle in ascending index order.
func (g *SpatialHash) Rebuild(store *components.Store) {
	g.Clear()
	for i := range store.Particles {
		p := &store.Particles[i]
		key := g.CellOf(p.X, p.Y)
		g.buckets[key] = append(g.buckets[key], int32(i))
	}
}

// RebuildParallel produces the same buckets as Rebuild using exec.
//
// Each worker inserts its own contiguous index chunk into a private map, so
// within a cell its entries are ascending. Merging the private maps in worker
// order then yields the global ascending order a sequential rebuild gives.
func (g *SpatialHash) RebuildParallel(store *components.Store, exec parallel.Executor) {
	workers := exec.Workers()
	for len(g.locals) < workers {
		g.locals = append(g.locals, make(map[CellKey][]int32))
	}
	for _, local := range g.locals {
		truncate(local)
	}

	exec.Run(store.Len(), func(worker int, c parallel.Chunk) {
		local := g.locals[worker]
		for i := c.Start; i < c.End; i++ {
			p := &store.Particles[i]
			key := g.CellOf(p.X, p.Y)
			local[key] = append(local[key], int32(i))
		}
	})

	g.Clear()
	for w := 0; w < workers; w++ {
		for key, idx := range g.locals[w] {
			if len(idx) == 0 {
				continue
			}
			g.buckets[key] = append(g.buckets[key], idx...)
		}
	}
}

// Bucket returns the indices stored in one cell. The slice is owned by the hash.
func (g *SpatialHash) Bucket(key CellKey) []int32 {
	return g.buckets[key]
}

// NeighborsInto appends the buckets of the 3x3 cell block around (x, y) to
// dst and returns it. Order is fixed: x offset -1..1 outer, y offset -1..1
// inner, each bucket in ascending index order. Reuse dst across calls to
// avoid allocations.
func (g *SpatialHash) NeighborsInto(dst []int32, x, y float32) []int32 {
	center := g.CellOf(x, y)
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			dst = append(dst, g.buckets[CellKey{X: center.X + dx, Y: center.Y + dy}]...)
		}
	}
	return dst
}

// Count returns the total number of indices across all buckets.
func (g *SpatialHash) Count() int {
	n := 0
	for _, idx := range g.buckets {
		n += len(idx)
	}
	return n
}
