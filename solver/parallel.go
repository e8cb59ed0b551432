package solver

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum element count to dispatch to the worker
// pool. Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 256

// chunkTask is one contiguous index range for a worker to process.
type chunkTask struct {
	fn         func(i0, i1 int)
	start, end int
}

// workerPool runs chunked index loops on persistent worker goroutines.
// Loops over particles and grid nodes write only to their own element, so
// chunked dispatch preserves determinism. Scatter loops with write
// contention stay single-threaded and never go through the pool.
type workerPool struct {
	numWorkers int

	taskChan chan chunkTask
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: workers}
}

// start launches the persistent workers.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.taskChan = make(chan chunkTask, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.taskChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case task, ok := <-p.taskChan:
			if !ok {
				return
			}
			task.fn(task.start, task.end)
			p.doneChan <- struct{}{}
		}
	}
}

// parallelFor runs fn over [0, n) in contiguous chunks, one per worker, and
// waits for completion. Small n runs inline.
func (p *workerPool) parallelFor(n int, fn func(i0, i1 int)) {
	if n == 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers <= 1 {
		fn(0, n)
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		p.taskChan <- chunkTask{fn: fn, start: start, end: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
