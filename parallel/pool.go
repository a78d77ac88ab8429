package parallel

import "sync"

// task is one chunk of one Run call.
type task struct {
	fn     Func
	worker int
	chunk  Chunk
}

// Pool keeps worker goroutines alive across stages. Each Run dispatches one
// task per chunk and waits for all of them, so a Pool still behaves as a
// per-stage barrier; it only saves goroutine startup on every stage.
//
// Run must not be called concurrently.
type Pool struct {
	numWorkers int
	chunks     []Chunk

	// Worker pool channels
	workChan chan task     // sends work to workers
	doneChan chan struct{} // workers signal completion
	stopChan chan struct{} // signals workers to exit
	wg       sync.WaitGroup
	running  bool
}

// NewPool creates a pool of the given size. Workers start lazily on first Run.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		numWorkers: workers,
		chunks:     make([]Chunk, 0, workers),
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.numWorkers
}

// startWorkers launches persistent worker goroutines.
func (p *Pool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan task, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case t, ok := <-p.workChan:
			if !ok {
				return
			}
			t.fn(t.worker, t.chunk)
			p.doneChan <- struct{}{}
		}
	}
}

// Run dispatches the partition of [0, n) to the workers and waits for all chunks.
func (p *Pool) Run(n int, fn Func) {
	p.chunks = PartitionInto(p.chunks, n, p.numWorkers)
	if len(p.chunks) == 0 {
		return
	}
	if len(p.chunks) == 1 {
		fn(0, p.chunks[0])
		return
	}

	if !p.running {
		p.startWorkers()
	}

	for w, c := range p.chunks {
		p.workChan <- task{fn: fn, worker: w, chunk: c}
	}

	// Wait for all chunks to complete
	for range p.chunks {
		<-p.doneChan
	}
}

// Close signals all workers to exit and waits for them.
func (p *Pool) Close() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}
