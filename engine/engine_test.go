package engine

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/world"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	w, err := world.New(world.Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	e := New(w, 120)
	t.Cleanup(e.Close)
	return e
}

func TestRunForCountsFrames(t *testing.T) {
	e := newEngine(t)
	if _, err := e.AddBox(0, mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{20, 1, 20}); err != nil {
		t.Fatal(err)
	}
	h, err := e.AddSphere(1, mgl64.Vec3{0, 3, 0}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RunFor(context.Background(), 0.5); err != nil {
		t.Fatal(err)
	}
	s := e.Stats()
	if s.Frames != 30 || s.Last.Step != 30 || s.Last.Bodies != 2 {
		t.Errorf("stats %+v", s)
	}
	if s.MinFrameTime > s.AvgFrameTime || s.AvgFrameTime > s.MaxFrameTime {
		t.Errorf("frame times min %v avg %v max %v", s.MinFrameTime, s.AvgFrameTime, s.MaxFrameTime)
	}
	if n := len(e.FrameHistory()); n != 30 {
		t.Errorf("history holds %d frames", n)
	}
	e.View(func(w *world.World) {
		b, err := w.Body(h)
		if err != nil {
			t.Fatal(err)
		}
		if y := b.Position()[1]; y >= 3 {
			t.Errorf("sphere did not fall: y=%v", y)
		}
	})
}

func TestRunStopsWithContext(t *testing.T) {
	e := newEngine(t)
	if _, err := e.AddCapsule(1, mgl64.Vec3{}, 0.3, 0.5); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	if err := e.RunFor(context.Background(), 1); !errors.Is(err, ErrRunning) {
		t.Errorf("second run: %v", err)
	}
	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("run returned %v", err)
	}
	if e.Stats().Frames == 0 {
		t.Error("no frames ran")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	e := newEngine(t)
	for i := 0; i < 150; i++ {
		e.Step()
	}
	if n := len(e.FrameHistory()); n != 100 {
		t.Errorf("history holds %d frames", n)
	}
}

func TestBadShapes(t *testing.T) {
	e := newEngine(t)
	if _, err := e.AddSphere(1, mgl64.Vec3{}, -1); err == nil {
		t.Error("negative radius accepted")
	}
	if _, err := e.AddBox(1, mgl64.Vec3{}, mgl64.Vec3{1, 0, 1}); err == nil {
		t.Error("flat box accepted")
	}
}
