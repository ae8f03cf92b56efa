package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/engine"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/shape"
	"github.com/0x5844/physics-3d/telemetry"
	"github.com/0x5844/physics-3d/world"
)

// plane selects the two world axes drawn on screen.
type plane int

const (
	planeSide plane = iota // X right, Y up
	planeTop               // X right, Z down
)

func (p plane) String() string {
	if p == planeTop {
		return "top (x-z)"
	}
	return "side (x-y)"
}

// camera maps world coordinates to terminal cells. A cell is about twice as tall as it is
// wide, so horizontal distances get twice the columns.
type camera struct {
	plane  plane
	center [2]float64
	scale  float64 // rows per world unit
	width  int
	height int
}

func newCamera(w, h int) camera {
	return camera{scale: 0.5, width: w, height: h}
}

func (c camera) axes() (int, int) {
	if c.plane == planeTop {
		return 0, 2
	}
	return 0, 1
}

// project returns the cell of a world point. The second axis grows upwards in side view.
func (c camera) project(p [3]float64) (int, int) {
	u, v := c.axes()
	col := float64(c.width)/2 + (p[u]-c.center[0])*c.scale*2
	row := float64(c.height)/2 - (p[v]-c.center[1])*c.scale
	if c.plane == planeTop {
		row = float64(c.height)/2 + (p[v]-c.center[1])*c.scale
	}
	return int(math.Floor(col)), int(math.Floor(row))
}

func (c *camera) pan(du, dv float64) {
	step := 4 / c.scale
	c.center[0] += du * step
	c.center[1] += dv * step
}

func (c *camera) zoom(f float64) {
	c.scale = geom.Clamp(c.scale*f, 0.01, 20)
}

func glyph(b *body.Body) rune {
	if b.Shape() == nil {
		return ' '
	}
	switch b.Shape().Kind() {
	case shape.KindSphere:
		return 'o'
	case shape.KindCapsule:
		return '0'
	}
	if b.IsStatic() {
		return '#'
	}
	return '@'
}

func styleOf(b *body.Body) tcell.Style {
	switch {
	case b.IsFrozen():
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	case b.IsStatic():
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	case b.IsSleeping():
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorGreen)
}

// drawWorld paints every body's box, clipped to the screen. Static bodies go first so moving
// ones stay visible on top.
func drawWorld(s tcell.Screen, cam camera, w *world.World) {
	for _, statics := range []bool{true, false} {
		w.Each(func(b *body.Body) bool {
			if b.IsStatic() == statics {
				drawBody(s, cam, b)
			}
			return true
		})
	}
}

func drawBody(s tcell.Screen, cam camera, b *body.Body) {
	box := b.AABB()
	c0, r0 := cam.project(box.Min)
	c1, r1 := cam.project(box.Max)
	c0, c1 = min(c0, c1), max(c0, c1)
	r0, r1 = min(r0, r1), max(r0, r1)
	c0, r0 = max(c0, 0), max(r0, 0)
	c1, r1 = min(c1, cam.width-1), min(r1, cam.height-2)
	ch, st := glyph(b), styleOf(b)
	for y := r0; y <= r1; y++ {
		for x := c0; x <= c1; x++ {
			s.SetContent(x, y, ch, nil, st)
		}
	}
}

func drawText(s tcell.Screen, x, y int, st tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, st)
		x++
	}
}

func statusLine(snap telemetry.Snapshot, st engine.Stats, cam camera, paused bool) string {
	state := "running"
	if paused {
		state = "paused"
	}
	return fmt.Sprintf(" %s | %s | step %d | bodies %d awake %d sleeping %d | contacts %d islands %d | %.2f ms | q quit, space pause, v view, +/- zoom, arrows pan",
		state, cam.plane, snap.Step, snap.Bodies, snap.Awake, snap.Sleeping, snap.Contacts, snap.Islands, st.AvgFrameTime)
}
