// Package engine drives a world at a fixed rate and keeps frame statistics.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/shape"
	"github.com/0x5844/physics-3d/telemetry"
	"github.com/0x5844/physics-3d/world"
)

var ErrRunning = errors.New("engine already running")

// Stats summarizes the frames run so far. Frame times are in milliseconds.
type Stats struct {
	FPS          float64
	Frames       int64
	AvgFrameTime float64
	MinFrameTime float64
	MaxFrameTime float64
	Last         telemetry.Snapshot
	WorkerActive int64
	WorkerTotal  int64
}

type Engine struct {
	world     *world.World
	running   atomic.Bool
	targetFPS int
	timeStep  float64

	// mu serializes stepping with anything that reads or edits the world from another
	// goroutine, like a viewer.
	mu           sync.Mutex
	stats        Stats
	lastFrame    time.Time
	frameTimeSum float64
	history      []float64
	historySize  int
}

func New(w *world.World, targetFPS int) *Engine {
	if targetFPS <= 0 {
		targetFPS = 60
	}
	return &Engine{
		world:       w,
		targetFPS:   targetFPS,
		timeStep:    w.Config().TimeStep,
		historySize: 100,
		history:     make([]float64, 0, 100),
	}
}

func (e *Engine) World() *world.World { return e.world }

// View runs fn while no step is in progress.
func (e *Engine) View(fn func(w *world.World)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.world)
}

func (e *Engine) AddSphere(density float64, pos mgl64.Vec3, radius float64) (arena.Handle, error) {
	s, err := shape.NewSphere(radius)
	if err != nil {
		return arena.Nil, err
	}
	return e.add(s, density, pos)
}

// AddBox takes full edge lengths.
func (e *Engine) AddBox(density float64, pos, size mgl64.Vec3) (arena.Handle, error) {
	s, err := shape.NewBox(size.Mul(0.5))
	if err != nil {
		return arena.Nil, err
	}
	return e.add(s, density, pos)
}

func (e *Engine) AddCapsule(density float64, pos mgl64.Vec3, radius, halfHeight float64) (arena.Handle, error) {
	s, err := shape.NewCapsule(radius, halfHeight)
	if err != nil {
		return arena.Nil, err
	}
	return e.add(s, density, pos)
}

// add creates a body; density 0 leaves it static.
func (e *Engine) add(s shape.Convex, density float64, pos mgl64.Vec3) (arena.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.world.CreateBody(s, mgl64.Translate3D(pos[0], pos[1], pos[2]))
	if density > 0 {
		if err := e.world.SetMassFromShape(h, density); err != nil {
			return arena.Nil, err
		}
	}
	return h, nil
}

// Step advances the world by one fixed time step and records the frame.
func (e *Engine) Step() telemetry.Snapshot {
	start := time.Now()
	e.mu.Lock()
	snap := e.world.Advance(e.timeStep)
	e.updateStats(start, snap)
	e.mu.Unlock()
	return snap
}

// Run steps the world on a ticker at the target rate until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	ticker := time.NewTicker(time.Second / time.Duration(e.targetFPS))
	defer ticker.Stop()

	e.mu.Lock()
	e.lastFrame = time.Now()
	e.mu.Unlock()

	for {
		select {
		case <-ticker.C:
			e.Step()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunFor steps as fast as possible until the simulated time reaches duration seconds or ctx
// is done.
func (e *Engine) RunFor(ctx context.Context, duration float64) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	steps := int(duration/e.timeStep + 0.5)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.Step()
	}
	return nil
}

// updateStats must be called with mu held.
func (e *Engine) updateStats(frameStart time.Time, snap telemetry.Snapshot) {
	now := time.Now()
	if !e.lastFrame.IsZero() {
		if dt := now.Sub(e.lastFrame).Seconds(); dt > 0 {
			e.stats.FPS = 1 / dt
		}
	}
	e.lastFrame = now
	current := now.Sub(frameStart).Seconds() * 1000

	e.stats.Frames++
	e.frameTimeSum += current
	e.stats.AvgFrameTime = e.frameTimeSum / float64(e.stats.Frames)
	if e.stats.Frames == 1 || current < e.stats.MinFrameTime {
		e.stats.MinFrameTime = current
	}
	e.stats.MaxFrameTime = max(e.stats.MaxFrameTime, current)
	e.stats.Last = snap

	e.history = append(e.history, current)
	if len(e.history) > e.historySize {
		e.history = e.history[1:]
	}
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := e.stats
	e.mu.Unlock()
	s.WorkerActive, s.WorkerTotal, _ = e.world.WorkerStats()
	return s
}

// FrameHistory returns the most recent frame times in milliseconds, oldest first.
func (e *Engine) FrameHistory() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.history...)
}

func (e *Engine) Close() { e.world.Close() }
