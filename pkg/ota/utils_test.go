package ota

import (
	"context"
	"io"
	"time"

	"github.com/zoobzio/clockz"
)

type fakeSource struct {
	chunks [][]byte
	gaps   int
	eof    bool
	wait   int
	polls  int
}

func newFakeSource(data []byte, size int) *fakeSource {
	src := &fakeSource{}
	for len(data) > 0 {
		n := min(size, len(data))
		src.chunks = append(src.chunks, data[:n])
		data = data[n:]
	}
	return src
}

func (s *fakeSource) Available() (int, error) {
	s.polls++

	// withhold bytes between chunks
	if s.wait > 0 {
		s.wait--
		return 0, nil
	}

	if len(s.chunks) > 0 {
		return len(s.chunks[0]), nil
	}
	if s.eof {
		return 0, io.EOF
	}

	return 0, nil
}

func (s *fakeSource) Read(p []byte) (int, error) {
	n, err := s.Available()
	if n == 0 {
		return 0, err
	}

	n = copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if len(s.chunks[0]) == 0 {
		s.chunks = s.chunks[1:]
		s.wait = s.gaps
	}

	return n, nil
}

type fakeArtifact struct {
	*fakeSource
	size   int64
	closed bool
}

func (a *fakeArtifact) Size() int64 {
	return a.size
}

func (a *fakeArtifact) Close() error {
	a.closed = true
	return nil
}

type fakeOpener struct {
	artifact *fakeArtifact
	err      error
	opened   int
}

func (o *fakeOpener) Open(context.Context) (Artifact, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.artifact, nil
}

type fakeOracle struct {
	token   string
	fetches int
}

func (o *fakeOracle) Fetch(context.Context) string {
	o.fetches++
	return o.token
}

type fakeNetwork bool

func (n fakeNetwork) Connected() bool {
	return bool(n)
}

type fakeRestarter struct {
	restarts int
}

func (r *fakeRestarter) Restart() {
	r.restarts++
}

type restarterFunc func()

func (f restarterFunc) Restart() {
	f()
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

type fakeChecker struct {
	clock clockz.Clock
	calls []time.Time
}

func (c *fakeChecker) CheckAndApply(context.Context, *State) error {
	c.calls = append(c.calls, c.clock.Now())
	return nil
}

func makeImage(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}
