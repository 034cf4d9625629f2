package ota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zoobzio/clockz"
)

func TestSchedulerInterval(t *testing.T) {
	clock := clockz.NewFakeClock()
	checker := &fakeChecker{clock: clock}

	scheduler := NewScheduler(checker, fakeNetwork(true))
	scheduler.Clock = clock

	state := NewState("1.5")
	start := clock.Now()

	assert.True(t, scheduler.Tick(context.Background(), state))

	clock.Advance(100 * time.Second)
	assert.False(t, scheduler.Tick(context.Background(), state))

	clock.Advance(201 * time.Second)
	assert.True(t, scheduler.Tick(context.Background(), state))

	assert.Len(t, checker.calls, 2)
	assert.Equal(t, time.Duration(0), checker.calls[0].Sub(start))
	assert.Equal(t, 301*time.Second, checker.calls[1].Sub(start))
}

func TestSchedulerNoQueue(t *testing.T) {
	clock := clockz.NewFakeClock()
	checker := &fakeChecker{clock: clock}

	scheduler := NewScheduler(checker, nil)
	scheduler.Clock = clock

	state := NewState("1.5")
	assert.True(t, scheduler.Tick(context.Background(), state))

	// busy for more than three intervals
	clock.Advance(16 * time.Minute)
	assert.True(t, scheduler.Tick(context.Background(), state))
	assert.False(t, scheduler.Tick(context.Background(), state))
	assert.Len(t, checker.calls, 2)

	clock.Advance(5 * time.Minute)
	assert.True(t, scheduler.Tick(context.Background(), state))
	assert.Len(t, checker.calls, 3)
}

func TestSchedulerBootWaitsForNetwork(t *testing.T) {
	clock := clockz.NewFakeClock()
	checker := &fakeChecker{clock: clock}

	scheduler := NewScheduler(checker, fakeNetwork(false))
	scheduler.Clock = clock

	state := NewState("1.5")
	assert.False(t, scheduler.Tick(context.Background(), state))
	assert.False(t, state.Checked)

	scheduler.Network = fakeNetwork(true)
	assert.True(t, scheduler.Tick(context.Background(), state))
	assert.True(t, state.Checked)
	assert.Len(t, checker.calls, 1)
}

func TestSchedulerRun(t *testing.T) {
	checker := &fakeChecker{clock: clockz.RealClock}

	scheduler := NewScheduler(checker, nil)
	scheduler.LoopDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	state := NewState("1.5")
	err := scheduler.Run(ctx, state)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Len(t, checker.calls, 1)
	assert.True(t, state.Checked)
}
