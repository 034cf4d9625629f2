package ota

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/256dpi/ota/pkg/storage"
	"github.com/256dpi/ota/pkg/utils"
)

// DefaultChunkSize is the maximum number of bytes moved per loop iteration.
const DefaultChunkSize = 128

// DefaultStallTimeout is the maximum time without received bytes. A session
// aborts as soon as the silence reaches the timeout.
const DefaultStallTimeout = 120 * time.Second

// Status is the state of a session.
type Status int

// The available session states.
const (
	Idle Status = iota
	Writing
	Committed
	Aborted
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Writing:
		return "writing"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Session streams a single firmware image into a storage region. A session
// moves from Idle to Writing on Begin and ends in either Committed or Aborted.
// Both end states are final.
type Session struct {
	// ChunkSize is the maximum number of bytes read per iteration.
	ChunkSize int

	// StallTimeout is the maximum time without received bytes. Reaching it
	// aborts the session.
	StallTimeout time.Duration

	// Clock is used to detect stalls.
	Clock clockz.Clock

	// Yield is called on every iteration of the streaming loop.
	Yield func()

	// Progress is called with every new integer percentage.
	Progress func(percent int)

	// Version labels the image if the region supports it.
	Version string

	region   storage.Region
	out      io.Writer
	handle   storage.Handle
	status   Status
	expected int64
	written  int64
	percent  int
	last     time.Time
	err      error
}

// NewSession creates a new idle session for the specified region. If out is
// not nil, it will be used to report progress and failures.
func NewSession(region storage.Region, out io.Writer) *Session {
	return &Session{
		ChunkSize:    DefaultChunkSize,
		StallTimeout: DefaultStallTimeout,
		Clock:        clockz.RealClock,
		Yield:        defaultYield,
		region:       region,
		out:          out,
	}
}

// Status returns the current status.
func (s *Session) Status() Status {
	return s.status
}

// Expected returns the expected number of bytes.
func (s *Session) Expected() int64 {
	return s.expected
}

// Written returns the number of bytes written so far.
func (s *Session) Written() int64 {
	return s.written
}

// Err returns the error that aborted the session.
func (s *Session) Err() error {
	return s.err
}

// Begin reserves the storage region for an image of the specified size. On
// failure the session stays idle.
func (s *Session) Begin(size int64) error {
	// check state
	if s.status != Idle {
		return ErrSessionClosed
	}

	// check size
	if size <= 0 {
		return ErrInvalidArtifactSize
	}

	// reserve region
	utils.Log(s.out, "Initializing update...")
	handle, err := s.region.Reserve(size)
	if err != nil {
		utils.Logf(s.out, "Update begin failed: %s", err)
		return fmt.Errorf("%w: %w", ErrStorageReserveFailed, err)
	}

	// label image
	if labeler, ok := handle.(storage.Labeler); ok && s.Version != "" {
		labeler.Label(s.Version)
	}

	// set state
	s.handle = handle
	s.expected = size
	s.written = 0
	s.percent = 0
	s.last = s.Clock.Now()
	s.status = Writing

	return nil
}

// Write appends a chunk to the region. Bytes beyond the expected size are
// ignored.
func (s *Session) Write(chunk []byte) error {
	// check state
	if s.status != Writing {
		return ErrSessionClosed
	}

	// limit chunk
	remaining := s.expected - s.written
	if int64(len(chunk)) > remaining {
		chunk = chunk[:remaining]
	}

	// skip empty chunks
	if len(chunk) == 0 {
		return nil
	}

	// append chunk
	err := s.handle.Append(chunk)
	if err != nil {
		utils.Logf(s.out, "Error: Write failed: %s", err)
		return s.abort(fmt.Errorf("%w: %w", ErrStorageWriteFailed, err))
	}

	// advance counter and progress timestamp
	s.written += int64(len(chunk))
	s.last = s.Clock.Now()

	// report progress on change
	percent := int(s.written * 100 / s.expected)
	if percent != s.percent {
		s.percent = percent
		utils.Logf(s.out, "Writing Progress: %d%%", percent)
		if s.Progress != nil {
			s.Progress(percent)
		}
	}

	return nil
}

// Stream pulls bytes from the source until the expected size has been written
// and then ends the session. The session is aborted if the source delivers no
// bytes for the stall timeout or more, or is drained early.
func (s *Session) Stream(src Source) error {
	// check state
	if s.status != Writing {
		return ErrSessionClosed
	}

	// prepare buffer
	size := s.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)

	utils.Log(s.out, "Writing firmware...")

	for s.written < s.expected {
		// check source
		n, err := src.Available()
		if n > 0 {
			// read chunk
			n, err = src.Read(buf[:min(int64(len(buf)), s.expected-s.written)])
			if n > 0 {
				werr := s.Write(buf[:n])
				if werr != nil {
					return werr
				}
			}
		}

		// handle drained or failed source
		if err != nil && s.written < s.expected {
			utils.Logf(s.out, "Error: Write incomplete. Expected %d but got %d bytes", s.expected, s.written)
			if errors.Is(err, io.EOF) {
				return s.abort(ErrIncompleteTransfer)
			}
			return s.abort(fmt.Errorf("%w: %w", ErrIncompleteTransfer, err))
		}

		// check stall
		if s.written < s.expected && s.Clock.Since(s.last) >= s.StallTimeout {
			utils.Log(s.out, "Timeout: No data received for too long. Aborting update...")
			return s.abort(ErrStallTimeout)
		}

		// yield
		if s.Yield != nil {
			s.Yield()
		}
	}

	utils.Log(s.out, "Writing complete")

	return s.End()
}

// End commits the written image. The session is aborted if the image is
// incomplete or the region fails to commit.
func (s *Session) End() error {
	// check state
	if s.status != Writing {
		return ErrSessionClosed
	}

	// check counter
	if s.written != s.expected {
		utils.Logf(s.out, "Error: Write incomplete. Expected %d but got %d bytes", s.expected, s.written)
		return s.abort(ErrIncompleteTransfer)
	}

	// commit image
	err := s.handle.Commit()
	if err != nil {
		utils.Logf(s.out, "Error: Update end failed: %s", err)
		return s.abort(fmt.Errorf("%w: %w", ErrCommitFailed, err))
	}

	// set state
	s.status = Committed

	utils.Log(s.out, "Update successfully completed")

	return nil
}

// Abort discards the written data. It has no effect on finished sessions.
func (s *Session) Abort() {
	if s.status == Idle || s.status == Writing {
		_ = s.abort(ErrAborted)
	}
}

func (s *Session) abort(err error) error {
	// discard data
	if s.handle != nil {
		s.handle.Discard()
	}

	// set state
	s.status = Aborted
	s.err = err

	return err
}

func defaultYield() {
	time.Sleep(time.Millisecond)
}
