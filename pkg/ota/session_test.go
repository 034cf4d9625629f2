package ota

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zoobzio/clockz"

	"github.com/256dpi/ota/pkg/storage"
)

func newTestSession(region storage.Region, out io.Writer) (*Session, *clockz.FakeClock) {
	clock := clockz.NewFakeClock()
	session := NewSession(region, out)
	session.Clock = clock
	session.Yield = func() {
		clock.Advance(time.Second)
	}
	return session, clock
}

func TestSessionCommit(t *testing.T) {
	image := makeImage(1000)
	region := storage.NewMemory(4096, []byte("old"))

	var out bytes.Buffer
	session, _ := newTestSession(region, &out)

	var percents []int
	session.Progress = func(percent int) {
		percents = append(percents, percent)
	}

	err := session.Begin(1000)
	assert.NoError(t, err)
	assert.Equal(t, Writing, session.Status())

	err = session.Stream(newFakeSource(image, 128))
	assert.NoError(t, err)
	assert.Equal(t, Committed, session.Status())
	assert.Equal(t, int64(1000), session.Written())
	assert.Equal(t, image, region.Boot())
	assert.NoError(t, session.Err())

	assert.Equal(t, []int{12, 25, 38, 51, 64, 76, 89, 100}, percents)
	assert.Equal(t, 8, strings.Count(out.String(), "Writing Progress"))
	assert.Contains(t, out.String(), "Update successfully completed")
}

func TestSessionProgressOncePerPercent(t *testing.T) {
	region := storage.NewMemory(4096, nil)

	var out bytes.Buffer
	session, _ := newTestSession(region, &out)

	var percents []int
	session.Progress = func(percent int) {
		percents = append(percents, percent)
	}

	err := session.Begin(1000)
	assert.NoError(t, err)

	err = session.Stream(newFakeSource(makeImage(1000), 1))
	assert.NoError(t, err)
	assert.Len(t, percents, 100)
	assert.Equal(t, 100, strings.Count(out.String(), "Writing Progress"))
}

func TestSessionStallTimeout(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))

	var out bytes.Buffer
	session, clock := newTestSession(region, &out)

	err := session.Begin(1000)
	assert.NoError(t, err)

	start := clock.Now()
	err = session.Stream(newFakeSource(makeImage(500), 128))
	assert.True(t, errors.Is(err, ErrStallTimeout))
	assert.Equal(t, Aborted, session.Status())
	assert.Equal(t, int64(500), session.Written())
	assert.True(t, clock.Since(start) > DefaultStallTimeout)
	assert.Equal(t, []byte("old"), region.Boot())
	assert.False(t, region.Busy())

	_, commits, discards := region.Counts()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, discards)

	assert.Contains(t, out.String(), "Timeout: No data received for too long")
}

func TestSessionStallWithoutData(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))
	session, _ := newTestSession(region, nil)

	err := session.Begin(1000)
	assert.NoError(t, err)

	err = session.Stream(&fakeSource{})
	assert.Equal(t, ErrStallTimeout, err)
	assert.Equal(t, int64(0), session.Written())
	assert.Equal(t, []byte("old"), region.Boot())
}

func TestSessionStallBoundary(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))
	session, clock := newTestSession(region, nil)

	err := session.Begin(1000)
	assert.NoError(t, err)

	start := clock.Now()
	err = session.Stream(&fakeSource{})
	assert.Equal(t, ErrStallTimeout, err)
	assert.Equal(t, DefaultStallTimeout, clock.Since(start))
}

func TestSessionGapsAtTimeout(t *testing.T) {
	for _, item := range []struct {
		gaps int
		err  error
	}{
		{gaps: 119},
		{gaps: 120, err: ErrStallTimeout},
	} {
		region := storage.NewMemory(4096, []byte("old"))
		session, _ := newTestSession(region, nil)

		err := session.Begin(1000)
		assert.NoError(t, err)

		src := newFakeSource(makeImage(1000), 500)
		src.gaps = item.gaps

		err = session.Stream(src)
		assert.Equal(t, item.err, err, item.gaps)
		if item.err == nil {
			assert.Equal(t, Committed, session.Status())
		} else {
			assert.Equal(t, Aborted, session.Status())
			assert.Equal(t, int64(500), session.Written())
		}
	}
}

func TestSessionGapsBelowTimeout(t *testing.T) {
	image := makeImage(1000)
	region := storage.NewMemory(4096, []byte("old"))
	session, clock := newTestSession(region, nil)

	err := session.Begin(1000)
	assert.NoError(t, err)

	src := newFakeSource(image, 128)
	src.gaps = 110

	start := clock.Now()
	err = session.Stream(src)
	assert.NoError(t, err)
	assert.Equal(t, Committed, session.Status())
	assert.Equal(t, image, region.Boot())

	// the total time exceeds the timeout, the individual gaps do not
	assert.True(t, clock.Since(start) > DefaultStallTimeout)
}

func TestSessionIncompleteTransfer(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))
	session, _ := newTestSession(region, nil)

	err := session.Begin(1000)
	assert.NoError(t, err)

	src := newFakeSource(makeImage(999), 128)
	src.eof = true

	err = session.Stream(src)
	assert.Equal(t, ErrIncompleteTransfer, err)
	assert.Equal(t, Aborted, session.Status())
	assert.Equal(t, int64(999), session.Written())
	assert.Equal(t, []byte("old"), region.Boot())
}

func TestSessionOversizedSource(t *testing.T) {
	image := makeImage(1200)
	region := storage.NewMemory(4096, nil)
	session, _ := newTestSession(region, nil)

	err := session.Begin(1000)
	assert.NoError(t, err)

	err = session.Stream(newFakeSource(image, 128))
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), session.Written())
	assert.Equal(t, image[:1000], region.Boot())
}

func TestSessionReserveFailed(t *testing.T) {
	region := storage.NewMemory(512, []byte("old"))

	var out bytes.Buffer
	session, _ := newTestSession(region, &out)

	err := session.Begin(1000)
	assert.True(t, errors.Is(err, ErrStorageReserveFailed))
	assert.True(t, errors.Is(err, storage.ErrInsufficient))
	assert.Equal(t, Idle, session.Status())
	assert.Contains(t, out.String(), "Update begin failed")

	err = session.Stream(newFakeSource(makeImage(1000), 128))
	assert.Equal(t, ErrSessionClosed, err)
}

func TestSessionInvalidSize(t *testing.T) {
	region := storage.NewMemory(512, nil)
	session, _ := newTestSession(region, nil)

	assert.Equal(t, ErrInvalidArtifactSize, session.Begin(0))
	assert.Equal(t, ErrInvalidArtifactSize, session.Begin(-1))
	assert.Equal(t, Idle, session.Status())

	reserves, _, _ := region.Counts()
	assert.Equal(t, 0, reserves)
}

func TestSessionWriteFailed(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))
	region.FailAppend = errors.New("flash error")
	session, _ := newTestSession(region, nil)

	err := session.Begin(1000)
	assert.NoError(t, err)

	err = session.Stream(newFakeSource(makeImage(1000), 128))
	assert.True(t, errors.Is(err, ErrStorageWriteFailed))
	assert.Equal(t, Aborted, session.Status())
	assert.Equal(t, []byte("old"), region.Boot())
	assert.False(t, region.Busy())
}

func TestSessionCommitFailed(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))
	region.FailCommit = errors.New("verify failed")

	var out bytes.Buffer
	session, _ := newTestSession(region, &out)

	err := session.Begin(1000)
	assert.NoError(t, err)

	err = session.Stream(newFakeSource(makeImage(1000), 128))
	assert.True(t, errors.Is(err, ErrCommitFailed))
	assert.Equal(t, Aborted, session.Status())
	assert.Equal(t, int64(1000), session.Written())
	assert.Equal(t, []byte("old"), region.Boot())
	assert.False(t, region.Busy())
	assert.Contains(t, out.String(), "Update end failed")
}

func TestSessionEndIncomplete(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))
	session, _ := newTestSession(region, nil)

	err := session.Begin(10)
	assert.NoError(t, err)

	err = session.Write([]byte("12345"))
	assert.NoError(t, err)

	err = session.End()
	assert.Equal(t, ErrIncompleteTransfer, err)
	assert.Equal(t, Aborted, session.Status())

	_, commits, _ := region.Counts()
	assert.Equal(t, 0, commits)
}

func TestSessionTerminal(t *testing.T) {
	region := storage.NewMemory(4096, []byte("old"))
	session, _ := newTestSession(region, nil)

	err := session.Begin(3)
	assert.NoError(t, err)
	assert.NoError(t, session.Write([]byte("new")))
	assert.NoError(t, session.End())

	assert.Equal(t, ErrSessionClosed, session.Begin(3))
	assert.Equal(t, ErrSessionClosed, session.Write([]byte("x")))
	assert.Equal(t, ErrSessionClosed, session.End())

	session.Abort()
	assert.Equal(t, Committed, session.Status())
	assert.Equal(t, []byte("new"), region.Boot())

	session, _ = newTestSession(region, nil)
	assert.NoError(t, session.Begin(3))
	session.Abort()
	assert.Equal(t, Aborted, session.Status())
	assert.Equal(t, ErrAborted, session.Err())
	assert.Equal(t, ErrSessionClosed, session.Begin(3))
	assert.Equal(t, []byte("new"), region.Boot())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "writing", Writing.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "aborted", Aborted.String())
}
