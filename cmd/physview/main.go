// Command physview runs a scene and draws it in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/engine"
	"github.com/0x5844/physics-3d/scene"
	"github.com/0x5844/physics-3d/world"
)

type viewer struct {
	screen tcell.Screen
	eng    *engine.Engine
	cam    camera
	paused bool
}

func main() {
	sceneFile := flag.String("scene", "", "scene file to load (.json, .yaml)")
	sceneType := flag.String("scene-type", "pyramid", "generated scene type")
	bodies := flag.Int("bodies", 30, "number of bodies for generated scenes")
	configFile := flag.String("config", "", "engine configuration file")
	seed := flag.Int64("seed", 1, "random seed for generated scenes")
	flag.Parse()

	if err := run(*configFile, *sceneFile, *sceneType, *bodies, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "physview: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, sceneFile, sceneType string, bodies int, seed int64) error {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
	}
	var sc *scene.Scene
	var err error
	if sceneFile != "" {
		sc, err = scene.Load(sceneFile)
	} else {
		sc, err = scene.Generate(sceneType, bodies, rand.New(rand.NewSource(seed)))
	}
	if err != nil {
		return err
	}

	w, err := world.New(world.Options{Config: cfg})
	if err != nil {
		return err
	}
	eng := engine.New(w, 60)
	defer eng.Close()
	if _, err := scene.Build(w, sc); err != nil {
		return errors.Wrap(err, "build scene")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	width, height := screen.Size()
	v := &viewer{screen: screen, eng: eng, cam: newCamera(width, height)}
	v.cam.center = [2]float64{0, 10}

	g, ctx := errgroup.WithContext(context.Background())
	events := make(chan tcell.Event, 100)
	g.Go(func() error {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return nil
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		defer screen.Fini()
		return v.loop(ctx, events)
	})
	return g.Wait()
}

func (v *viewer) loop(ctx context.Context, events <-chan tcell.Event) error {
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			if !v.handle(ev) {
				return nil
			}
		case <-ticker.C:
			if !v.paused {
				v.eng.Step()
			}
			v.draw()
		case <-ctx.Done():
			return nil
		}
	}
}

// handle reacts to one terminal event and reports whether the viewer keeps running.
func (v *viewer) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			v.cam.pan(-1, 0)
		case tcell.KeyRight:
			v.cam.pan(1, 0)
		case tcell.KeyUp:
			v.cam.pan(0, 1)
		case tcell.KeyDown:
			v.cam.pan(0, -1)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				v.paused = !v.paused
			case 'v':
				v.cam.plane = (v.cam.plane + 1) % 2
			case '+', '=':
				v.cam.zoom(1.25)
			case '-':
				v.cam.zoom(0.8)
			case 's':
				if v.paused {
					v.eng.Step()
				}
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
		v.cam.width, v.cam.height = v.screen.Size()
	}
	return true
}

func (v *viewer) draw() {
	v.screen.Clear()
	stats := v.eng.Stats()
	v.eng.View(func(w *world.World) { drawWorld(v.screen, v.cam, w) })
	drawText(v.screen, 0, v.cam.height-1, tcell.StyleDefault.Reverse(true),
		statusLine(stats.Last, stats, v.cam, v.paused))
	v.screen.Show()
}
