// Package parallel provides the fork-join primitive shared by every
// simulation stage.
//
// Work over [0, n) is split into contiguous chunks in ascending order, and
// chunk w is always handed to fn as worker w. Callers that keep per-worker
// state (local maps, histograms, scratch buffers) can therefore merge it in
// worker order and reproduce a sequential pass exactly. Run returns only after
// every chunk has finished, so each call is a full barrier.
package parallel

import "runtime"

// Chunk is a half-open index range [Start, End).
type Chunk struct {
	Start, End int
}

// Len returns the number of indices in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Func processes one chunk. worker is the chunk's position in the partition.
type Func func(worker int, c Chunk)

// Executor runs a Func over a partition of [0, n) and joins before returning.
type Executor interface {
	// Workers is the maximum number of chunks Run will produce.
	Workers() int
	// Run blocks until fn has been called for every chunk of [0, n).
	Run(n int, fn Func)
	// Close releases any goroutines held by the executor.
	Close()
}

// Partition splits [0, n) into at most workers contiguous chunks of
// ceil(n/workers) indices. Trailing empty chunks are omitted, so the result
// covers [0, n) exactly once with no gaps or overlaps.
func Partition(n, workers int) []Chunk {
	return PartitionInto(nil, n, workers)
}

// PartitionInto is Partition reusing dst's storage.
func PartitionInto(dst []Chunk, n, workers int) []Chunk {
	dst = dst[:0]
	if n <= 0 {
		return dst
	}
	if workers < 1 {
		workers = 1
	}
	chunkSize := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		dst = append(dst, Chunk{Start: start, End: end})
	}
	return dst
}

// ResolveWorkers maps a configured worker count to a concrete one.
// Zero means one worker per available CPU.
func ResolveWorkers(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}

// Sequential runs everything inline as a single chunk.
type Sequential struct{}

// Workers returns 1.
func (Sequential) Workers() int { return 1 }

// Run calls fn once with the whole range.
func (Sequential) Run(n int, fn Func) {
	if n <= 0 {
		return
	}
	fn(0, Chunk{Start: 0, End: n})
}

// Close is a no-op.
func (Sequential) Close() {}
