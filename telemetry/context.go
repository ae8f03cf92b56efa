// Package telemetry records what each step did and how long its phases took.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

type Phase int

const (
	PhaseForces Phase = iota
	PhaseBroad
	PhaseNarrow
	PhaseSolve
	// PhaseSync covers continuous collision clamping and proxy updates after integration.
	PhaseSync
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseForces:
		return "forces"
	case PhaseBroad:
		return "broadphase"
	case PhaseNarrow:
		return "narrowphase"
	case PhaseSolve:
		return "solve"
	case PhaseSync:
		return "sync"
	}
	return "unknown"
}

// Snapshot is a copy of the counters after one step.
type Snapshot struct {
	Step       uint64
	Bodies     int
	Awake      int
	Sleeping   int
	Pairs      int
	Contacts   int
	Islands    int
	Rows       int
	Iterations int
	// Growths counts row pool and pair buffer doublings since the world was created.
	Growths  int64
	Timings  [phaseCount]time.Duration
	Duration time.Duration
}

func (s Snapshot) Timing(p Phase) time.Duration { return s.Timings[p] }

// Sink receives a snapshot at the end of every step, on the stepping goroutine.
type Sink func(Snapshot)

// SimulationContext is the per-world scratchpad of a step. Counters are written by workers
// with atomics; Begin and End run on the stepping goroutine.
type SimulationContext struct {
	step       atomic.Uint64
	pairs      atomic.Int64
	contacts   atomic.Int64
	islands    atomic.Int64
	rows       atomic.Int64
	iterations atomic.Int64
	growths    atomic.Int64

	started time.Time
	current Snapshot

	mu    sync.Mutex
	last  Snapshot
	sinks []Sink
}

func New() *SimulationContext { return &SimulationContext{} }

// AddSink registers fn for all later steps.
func (c *SimulationContext) AddSink(fn Sink) {
	c.mu.Lock()
	c.sinks = append(c.sinks, fn)
	c.mu.Unlock()
}

// Begin starts step accounting and returns the new step id.
func (c *SimulationContext) Begin() uint64 {
	id := c.step.Add(1)
	c.pairs.Store(0)
	c.contacts.Store(0)
	c.islands.Store(0)
	c.rows.Store(0)
	c.iterations.Store(0)
	c.current = Snapshot{Step: id}
	c.started = time.Now()
	return id
}

func (c *SimulationContext) Step() uint64 { return c.step.Load() }

// Time runs fn and charges its duration to p.
func (c *SimulationContext) Time(p Phase, fn func()) {
	start := time.Now()
	fn()
	c.current.Timings[p] += time.Since(start)
}

func (c *SimulationContext) AddPairs(n int) { c.pairs.Add(int64(n)) }
func (c *SimulationContext) AddContacts(n int) { c.contacts.Add(int64(n)) }
func (c *SimulationContext) AddIslands(n int) { c.islands.Add(int64(n)) }
func (c *SimulationContext) AddRows(n int) { c.rows.Add(int64(n)) }
func (c *SimulationContext) AddIterations(n int) { c.iterations.Add(int64(n)) }
func (c *SimulationContext) AddGrowth() { c.growths.Add(1) }

// End closes the step with the body census and hands the snapshot to the sinks.
func (c *SimulationContext) End(bodies, awake, sleeping int) Snapshot {
	s := c.current
	s.Bodies, s.Awake, s.Sleeping = bodies, awake, sleeping
	s.Pairs = int(c.pairs.Load())
	s.Contacts = int(c.contacts.Load())
	s.Islands = int(c.islands.Load())
	s.Rows = int(c.rows.Load())
	s.Iterations = int(c.iterations.Load())
	s.Growths = c.growths.Load()
	s.Duration = time.Since(c.started)

	c.mu.Lock()
	c.last = s
	sinks := c.sinks
	c.mu.Unlock()
	for _, fn := range sinks {
		fn(s)
	}
	return s
}

// Last returns the snapshot of the most recent finished step. Safe from any goroutine.
func (c *SimulationContext) Last() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
