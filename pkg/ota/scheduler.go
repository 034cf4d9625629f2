package ota

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultInterval is the time between two update checks.
const DefaultInterval = 5 * time.Minute

// DefaultLoopDelay is the time between two iterations of the main loop.
const DefaultLoopDelay = time.Second

// Scheduler runs a check once at boot and then whenever the interval elapsed
// since the previous attempt. Missed intervals are not queued.
type Scheduler struct {
	Checker   Checker
	Network   Connectivity
	Interval  time.Duration
	LoopDelay time.Duration
	Clock     clockz.Clock
}

// NewScheduler creates a new scheduler for the specified checker.
func NewScheduler(checker Checker, network Connectivity) *Scheduler {
	return &Scheduler{
		Checker:   checker,
		Network:   network,
		Interval:  DefaultInterval,
		LoopDelay: DefaultLoopDelay,
		Clock:     clockz.RealClock,
	}
}

// Due returns whether a check should run now.
func (s *Scheduler) Due(state *State) bool {
	// the boot check waits for the network
	if !state.Checked {
		return s.Network == nil || s.Network.Connected()
	}

	return s.Clock.Since(state.LastCheck) >= s.Interval
}

// Tick runs a check if one is due and returns whether it did.
func (s *Scheduler) Tick(ctx context.Context, state *State) bool {
	// check if due
	if !s.Due(state) {
		return false
	}

	// record attempt
	state.Checked = true
	state.LastCheck = s.Clock.Now()

	// run check, failures are recorded in the state
	_ = s.Checker.CheckAndApply(ctx, state)

	return true
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, state *State) error {
	for {
		// tick
		s.Tick(ctx, state)

		// wait
		timer := s.Clock.NewTimer(s.LoopDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C():
		}
	}
}
