package solver

import (
	"math"

	"github.com/0x5844/physics-3d/config"
)

// sleepEntry returns the index of the first table entry the peaks satisfy, or -1.
func sleepEntry(table []config.SleepEntry, accel, alpha, veloc, omega float64) int {
	for i, e := range table {
		if accel <= e.MaxAccel && alpha <= e.MaxAlpha && veloc <= e.MaxVeloc && omega <= e.MaxOmega {
			return i
		}
	}
	return -1
}

// evaluateSleep compares the island's peak motion against the sleep table. A quiet island
// is in equilibrium and counts towards sleep; once every body has been quiet for the entry's
// step count the whole island sleeps. Any body without auto-sleep keeps the island awake.
func (s *Solver) evaluateSleep(isl *Island) {
	if !s.cfg.Sleep.Enabled {
		return
	}
	var accel, alpha, veloc, omega float64
	auto := true
	for _, b := range isl.Bodies {
		accel = math.Max(accel, b.Acceleration().Len())
		alpha = math.Max(alpha, b.AngularAccel().Len())
		veloc = math.Max(veloc, b.Velocity().Len())
		omega = math.Max(omega, b.Omega().Len())
		auto = auto && b.AutoSleep()
	}

	e := sleepEntry(s.cfg.Sleep.Table, accel, alpha, veloc, omega)
	if e < 0 {
		for _, b := range isl.Bodies {
			b.SetEquilibrium(false)
		}
		return
	}
	quiet := math.MaxInt
	for _, b := range isl.Bodies {
		b.SetEquilibrium(true)
		quiet = min(quiet, b.IncrementSleep())
	}
	if auto && quiet >= s.cfg.Sleep.Table[e].Steps {
		for _, b := range isl.Bodies {
			b.SetSleeping(true)
		}
	}
}
