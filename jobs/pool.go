// Package jobs runs the step's phases on a fixed set of worker goroutines.
package jobs

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// job is one worker's share of a phase: every index i with i%workers == worker.
type job struct {
	n    int
	fn   func(worker, i int)
	done *sync.WaitGroup
}

// Pool owns Workers goroutines. RunPhase is the only way to give them work and it blocks
// until every worker has finished its stride, so consecutive phases never overlap.
// RunPhase must not be called from inside a phase.
type Pool struct {
	workers int
	queues  []chan job
	wg      sync.WaitGroup
	quit    chan struct{}
	once    sync.Once
	closed  atomic.Bool

	phase      sync.Mutex
	activeJobs atomic.Int64
	totalJobs  atomic.Int64
	phases     atomic.Int64
}

// NewPool starts workers goroutines; zero or less means one per CPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers: workers,
		queues:  make([]chan job, workers),
		quit:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan job, 1)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.queues[id]:
			p.activeJobs.Add(1)
			for i := id; i < j.n; i += p.workers {
				j.fn(id, i)
			}
			p.activeJobs.Add(-1)
			p.totalJobs.Add(1)
			j.done.Done()
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) Workers() int { return p.workers }

// RunPhase calls fn(worker, i) for every i in [0, n), worker w taking i = w, w+W, ...
// It returns once all indices are done. A closed pool runs the phase on the caller as
// worker 0.
func (p *Pool) RunPhase(n int, fn func(worker, i int)) {
	if n <= 0 {
		return
	}
	p.phases.Add(1)
	p.phase.Lock()
	defer p.phase.Unlock()
	if p.closed.Load() {
		for i := 0; i < n; i++ {
			fn(0, i)
		}
		return
	}

	var done sync.WaitGroup
	used := min(n, p.workers)
	done.Add(used)
	j := job{n: n, fn: fn, done: &done}
	for w := 0; w < used; w++ {
		p.queues[w] <- j
	}
	done.Wait()
}

// Stats returns the running jobs, the finished jobs and the phases started.
func (p *Pool) Stats() (active, total, phases int64) {
	return p.activeJobs.Load(), p.totalJobs.Load(), p.phases.Load()
}

func (p *Pool) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		p.phase.Lock()
		close(p.quit)
		p.phase.Unlock()
		p.wg.Wait()
	})
}
