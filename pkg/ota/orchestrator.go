package ota

import (
	"context"
	"io"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/zoobzio/clockz"

	"github.com/256dpi/ota/pkg/storage"
	"github.com/256dpi/ota/pkg/utils"
)

// DefaultRestartDelay is the time waited before a restart is requested.
const DefaultRestartDelay = 2 * time.Second

// Orchestrator checks for new firmware and applies it.
type Orchestrator struct {
	// The collaborators.
	Network   Connectivity
	Oracle    Fetcher
	Transfer  Opener
	Region    storage.Region
	Restarter Restarter

	// Out receives diagnostic messages if set.
	Out io.Writer

	// Clock is used by sessions and to delay the restart.
	Clock clockz.Clock

	// RestartDelay is waited after a successful update so that pending
	// diagnostic output can be flushed. The wait yields like a session.
	RestartDelay time.Duration

	// The session parameters.
	ChunkSize    int
	StallTimeout time.Duration
	Yield        func()
	Progress     func(percent int)
}

// CheckAndApply checks for a new firmware version and applies it. On success a
// restart is requested. The call is a no-op if the network is unavailable or
// the running firmware is up to date. Failures leave the running firmware
// untouched and are recorded in the state.
func (o *Orchestrator) CheckAndApply(ctx context.Context, state *State) error {
	utils.Log(o.Out, "Checking for firmware update...")

	// check network
	if o.Network != nil && !o.Network.Connected() {
		utils.Log(o.Out, "Network not connected")
		state.LastOutcome = OutcomeSkipped
		state.LastError = nil
		return ErrConnectivityUnavailable
	}

	// increment counter
	state.Checks++

	// fetch latest version
	latest := o.Oracle.Fetch(ctx)
	if latest == "" {
		utils.Log(o.Out, "Failed to fetch latest version")
		return state.fail(ErrVersionFetchFailed)
	}

	// set latest
	state.Latest = latest

	utils.Logf(o.Out, "Current Firmware Version: %s", state.Version)
	utils.Logf(o.Out, "Latest Firmware Version: %s", latest)

	// compare versions
	if latest == state.Version {
		utils.Log(o.Out, "Device is up to date.")
		state.LastOutcome = OutcomeUpToDate
		state.LastError = nil
		return nil
	}

	utils.Log(o.Out, "New firmware available. Starting OTA update...")

	// apply update
	err := o.apply(ctx, latest)
	if err != nil {
		utils.Logf(o.Out, "OTA update failed: %s", err)
		return state.fail(err)
	}

	// update state
	state.Updates++
	state.LastOutcome = OutcomeUpdated
	state.LastError = nil

	utils.Log(o.Out, "OTA update successful, restarting...")

	// allow output to flush
	clock := o.clock()
	start := clock.Now()
	for clock.Since(start) < o.RestartDelay {
		o.yield()
	}

	// restart device
	o.Restarter.Restart()

	return nil
}

func (o *Orchestrator) apply(ctx context.Context, version string) error {
	// open artifact
	artifact, err := o.Transfer.Open(ctx)
	if err != nil {
		return err
	}
	defer artifact.Close()

	// check size
	size := artifact.Size()
	if size <= 0 {
		utils.Log(o.Out, "Invalid firmware size")
		return ErrInvalidArtifactSize
	}

	utils.Logf(o.Out, "Firmware size: %d bytes (%s)", size, bytefmt.ByteSize(uint64(size)))

	// prepare session
	session := NewSession(o.Region, o.Out)
	session.Clock = o.clock()
	session.Progress = o.Progress
	session.Version = version
	if o.ChunkSize > 0 {
		session.ChunkSize = o.ChunkSize
	}
	if o.StallTimeout > 0 {
		session.StallTimeout = o.StallTimeout
	}
	if o.Yield != nil {
		session.Yield = o.Yield
	}

	// begin session
	err = session.Begin(size)
	if err != nil {
		return err
	}

	// stream artifact
	return session.Stream(artifact)
}

func (o *Orchestrator) yield() {
	if o.Yield != nil {
		o.Yield()
		return
	}
	defaultYield()
}

func (o *Orchestrator) clock() clockz.Clock {
	if o.Clock == nil {
		return clockz.RealClock
	}
	return o.Clock
}
