package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/engine"
	"github.com/0x5844/physics-3d/scene"
	"github.com/0x5844/physics-3d/world"
)

// Build information (set by build script)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("%v", err)
	}
	if opts.ShowVersion {
		fmt.Printf("Physics3D version %s\n", Version)
		fmt.Printf("Built: %s\n", BuildTime)
		fmt.Printf("Go: %s\n", GoVersion)
		return
	}

	// Set up logging
	if opts.Quiet {
		log.SetOutput(io.Discard)
	} else if opts.Verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	// Set up profiling
	if opts.ProfileCPU != "" {
		f, err := os.Create(opts.ProfileCPU)
		if err != nil {
			log.Fatal("Could not create CPU profile:", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("Could not start CPU profile:", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := run(opts); err != nil {
		log.Printf("Engine error: %v", err)
		pprof.StopCPUProfile()
		os.Exit(1)
	}

	// Memory profiling
	if opts.ProfileMem != "" {
		writeHeapProfile(opts.ProfileMem)
	}
}

func run(opts *options) error {
	cfg, err := engineConfig(opts)
	if err != nil {
		return err
	}

	log.Printf("Starting Physics3D Engine v%s", Version)
	log.Printf("CPU Cores: %d, Workers: %d", runtime.NumCPU(), cfg.Workers)

	w, err := world.New(world.Options{
		Config:  cfg,
		Logger:  log.Default(),
		Verbose: opts.Verbose,
		LeaveWorld: func(b *body.Body) {
			log.Printf("Body %v left the world", b.Handle())
		},
	})
	if err != nil {
		return err
	}
	eng := engine.New(w, opts.MaxFPS)
	defer eng.Close()

	// Load or generate scene
	duration := opts.Duration
	var sc *scene.Scene
	if opts.SceneFile != "" {
		if sc, err = scene.Load(opts.SceneFile); err != nil {
			return errors.Wrap(err, "failed to load scene")
		}
		if sc.Duration > 0 && !opts.set["duration"] {
			duration = sc.Duration
		}
		log.Printf("Loaded scene from %s", opts.SceneFile)
	} else {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		if sc, err = scene.Generate(opts.SceneType, opts.BodiesCount, rand.New(rand.NewSource(seed))); err != nil {
			return err
		}
		log.Printf("Generated %s scene with %d bodies (seed %d)", opts.SceneType, len(sc.Bodies), seed)
	}
	if opts.Fast && duration == 0 {
		return errors.New("fast mode needs a duration")
	}
	if _, err := scene.Build(w, sc); err != nil {
		return errors.Wrap(err, "failed to set up scene")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 && !opts.Fast {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(duration*float64(time.Second)))
		defer cancel()
	}

	log.Printf("Physics simulation started (FPS: %d, Workers: %d)", opts.MaxFPS, w.Workers())
	if duration > 0 {
		log.Printf("Simulation duration: %.2f seconds", duration)
	} else {
		log.Println("Press Ctrl+C to stop")
	}

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	simDone := make(chan struct{})
	g.Go(func() error {
		defer close(simDone)
		var err error
		if opts.Fast {
			err = eng.RunFor(gctx, duration)
		} else {
			err = eng.Run(gctx)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	if !opts.Quiet {
		g.Go(func() error {
			reportStats(gctx, simDone, eng, opts.StatsInterval, opts.Verbose)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Println("Shutting down gracefully...")
	}

	// Final statistics
	s := eng.Stats()
	elapsed := time.Since(started).Seconds()
	log.Printf("Simulation completed:")
	log.Printf("  Final FPS: %.1f", s.FPS)
	log.Printf("  Bodies: %d", s.Last.Bodies)
	log.Printf("  Steps: %d", s.Last.Step)
	log.Printf("  Frames: %d", s.Frames)
	if s.Frames > 0 && elapsed > 0 {
		log.Printf("  Average steps/second: %.1f", float64(s.Frames)/elapsed)
	}

	if opts.Dump {
		eng.View(func(w *world.World) { dumpBodies(os.Stdout, w) })
	}
	return nil
}

// bodyState is the part of a body -dump prints.
type bodyState struct {
	Handle   string
	Position [3]float64
	Velocity [3]float64
	Omega    [3]float64
	Flags    string
}

func dumpBodies(out io.Writer, w *world.World) {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	w.Each(func(b *body.Body) bool {
		cfg.Fdump(out, bodyState{
			Handle:   b.Handle().String(),
			Position: b.Position(),
			Velocity: b.Velocity(),
			Omega:    b.Omega(),
			Flags:    b.Flags().String(),
		})
		return true
	})
}

func reportStats(ctx context.Context, done <-chan struct{}, eng *engine.Engine, interval float64, verbose bool) {
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := eng.Stats()
			last := s.Last
			if verbose {
				log.Printf("FPS: %.1f | Bodies: %d (Awake: %d, Sleeping: %d) | Contacts: %d | Islands: %d | "+
					"Frame: %.2f/%.2f/%.2f ms | Workers: %d/%d",
					s.FPS, last.Bodies, last.Awake, last.Sleeping, last.Contacts, last.Islands,
					s.AvgFrameTime, s.MinFrameTime, s.MaxFrameTime,
					s.WorkerActive, s.WorkerTotal)
			} else {
				log.Printf("FPS: %.1f | Bodies: %d | Awake: %d | Contacts: %d",
					s.FPS, last.Bodies, last.Awake, last.Contacts)
			}

		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("Could not create memory profile: %v", err)
		return
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("Could not write memory profile: %v", err)
	}
}
