package systems

import (
	"runtime"
	"sync"
)

// defaultParallelThreshold is the minimum particle count to use the worker
// pool. Below this, a single goroutine is faster than the dispatch overhead.
const defaultParallelThreshold = 4096

// workChunk is a half-open index range for one worker.
type workChunk struct {
	start, end int
}

// workerPool runs index-partitioned chunks on persistent goroutines. Chunks
// never overlap, so workers write disjoint output slots without locking.
type workerPool struct {
	numWorkers int
	compute    func(start, end int)

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

func newWorkerPool(numWorkers int, compute func(start, end int)) *workerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: numWorkers, compute: compute}
}

// startWorkers launches the worker goroutines.
func (p *workerPool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *workerPool) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.compute(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// run splits [0, n) into one chunk per worker and blocks until every chunk
// is done.
func (p *workerPool) run(n int) {
	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
