package controller

import (
	"time"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
)

// FaultScheduler samples per-cycle wait times for the controller's
// per-replica fault-injection loops. Wait times are drawn from a
// Gamma(shape=3, scale=2) distribution, clamped to 10, then linearly
// rescaled into [0, 1] seconds while the replica is down, or [0, 20]
// seconds while it is up; the shape was picked for a wait-time
// distribution with a plausible skew rather than for any protocol
// reason.
type FaultScheduler struct {
	rng randsrc.Source
}

// NewFaultScheduler builds a FaultScheduler using rng for sampling.
func NewFaultScheduler(rng randsrc.Source) *FaultScheduler {
	return &FaultScheduler{rng: rng}
}

const (
	gammaShape  = 3
	gammaScale  = 2
	waitClamp   = 10
	upRescale   = 20
	downRescale = 1
)

// WaitTime samples the next cycle's sleep duration, per the isDown
// rescaling rule above.
func (f *FaultScheduler) WaitTime(isDown bool) time.Duration {
	wait := randsrc.Gamma(f.rng, gammaShape, gammaScale)
	if wait > waitClamp {
		wait = waitClamp
	}
	target := upRescale
	if isDown {
		target = downRescale
	}
	rescaled := interp(wait, 0, waitClamp, 0, float64(target))
	return time.Duration(rescaled * float64(time.Second))
}

// BernoulliByzantine samples a single Byzantine-activation draw with
// parameter p. Once a replica has been sampled Byzantine it stays
// that way, so callers should only call this while not yet Byzantine.
func (f *FaultScheduler) BernoulliByzantine(p float64) bool {
	return f.rng.Float64() < p
}

// interp linearly maps x from [inMin, inMax] to [outMin, outMax],
// mirroring numpy.interp for this scheduler's scalar, non-decreasing
// use case.
func interp(x, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	t := (x - inMin) / (inMax - inMin)
	return outMin + t*(outMax-outMin)
}
