package ota

import "time"

// Outcome describes the result of the last update check.
type Outcome int

// The available outcomes.
const (
	OutcomeNone Outcome = iota
	OutcomeSkipped
	OutcomeUpToDate
	OutcomeUpdated
	OutcomeFailed
)

// String returns the name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeUpdated:
		return "updated"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State holds the mutable state of the update engine. It is owned by the main
// loop and passed to the scheduler and orchestrator.
type State struct {
	// Version is the version of the running firmware.
	Version string

	// Checked is set once the boot time check has been attempted and LastCheck
	// holds the time of the most recent attempt.
	Checked   bool
	LastCheck time.Time

	// Checks, Updates and Failures count the attempted checks, committed
	// updates and failed attempts.
	Checks   int
	Updates  int
	Failures int

	// Latest is the most recently fetched version token.
	Latest string

	// LastOutcome and LastError describe the most recent check.
	LastOutcome Outcome
	LastError   error
}

// NewState creates a new state for the specified running version.
func NewState(version string) *State {
	return &State{
		Version: version,
	}
}

func (s *State) fail(err error) error {
	s.Failures++
	s.LastOutcome = OutcomeFailed
	s.LastError = err
	return err
}
