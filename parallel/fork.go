package parallel

import "sync"

// Fork spawns one goroutine per chunk on every Run and joins them before
// returning. Nothing survives between stages.
type Fork struct {
	numWorkers int
}

// NewFork creates a fork-join executor with the given maximum fan-out.
func NewFork(workers int) *Fork {
	if workers < 1 {
		workers = 1
	}
	return &Fork{numWorkers: workers}
}

// Workers returns the maximum fan-out.
func (f *Fork) Workers() int {
	return f.numWorkers
}

// Run forks one goroutine per chunk of [0, n) and waits for all of them.
func (f *Fork) Run(n int, fn Func) {
	chunks := Partition(n, f.numWorkers)
	if len(chunks) <= 1 {
		for w, c := range chunks {
			fn(w, c)
		}
		return
	}

	var wg sync.WaitGroup
	for w, c := range chunks {
		wg.Go(func() { fn(w, c) })
	}
	wg.Wait()
}

// Close is a no-op; Fork holds no goroutines between calls.
func (f *Fork) Close() {}
