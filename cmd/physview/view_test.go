package main

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/engine"
	"github.com/0x5844/physics-3d/shape"
	"github.com/0x5844/physics-3d/telemetry"
	"github.com/0x5844/physics-3d/world"
)

func TestProject(t *testing.T) {
	cam := newCamera(80, 24)
	cam.scale = 1
	tests := []struct {
		plane    plane
		p        [3]float64
		col, row int
	}{
		{planeSide, [3]float64{0, 0, 0}, 40, 12},
		{planeSide, [3]float64{1, 2, 0}, 42, 10},
		{planeSide, [3]float64{0, 0, 7}, 40, 12},
		{planeTop, [3]float64{1, 9, 2}, 42, 14},
	}
	for _, tc := range tests {
		cam.plane = tc.plane
		col, row := cam.project(tc.p)
		if col != tc.col || row != tc.row {
			t.Errorf("%v %v -> (%d, %d), want (%d, %d)", tc.plane, tc.p, col, row, tc.col, tc.row)
		}
	}
}

func TestZoomIsClamped(t *testing.T) {
	cam := newCamera(80, 24)
	for i := 0; i < 100; i++ {
		cam.zoom(2)
	}
	if cam.scale != 20 {
		t.Errorf("scale %v", cam.scale)
	}
}

func TestDrawWorld(t *testing.T) {
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	defer s.Fini()
	s.SetSize(80, 24)

	cfg := config.Default()
	cfg.Workers = 1
	w, err := world.New(world.Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	sphere, _ := shape.NewSphere(0.5)
	h := w.CreateBody(sphere, mgl64.Ident4())
	if err := w.SetMassFromShape(h, 1); err != nil {
		t.Fatal(err)
	}

	cam := newCamera(80, 24)
	cam.scale = 1
	drawWorld(s, cam, w)
	if r, _, _, _ := s.GetContent(40, 12); r != 'o' {
		t.Errorf("cell at the origin holds %q", r)
	}
	if r, _, _, _ := s.GetContent(0, 0); r == 'o' {
		t.Error("sphere drawn in the corner")
	}
}

func TestStatusLine(t *testing.T) {
	line := statusLine(telemetry.Snapshot{Step: 7, Bodies: 3}, engine.Stats{}, newCamera(10, 10), true)
	if !strings.Contains(line, "paused") || !strings.Contains(line, "step 7") || !strings.Contains(line, "side") {
		t.Errorf("status %q", line)
	}
}
