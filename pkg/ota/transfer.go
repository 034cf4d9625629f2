package ota

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/256dpi/ota/pkg/utils"
)

// pumpSize is the size of the blocks read from the connection.
const pumpSize = 1024

// pumpDepth is the number of blocks buffered ahead of the reader.
const pumpDepth = 16

// Transfer opens streaming connections to the firmware artifact.
type Transfer struct {
	URL    string
	Client *http.Client
	Out    io.Writer
}

// NewTransfer creates a new transfer for the specified URL. Redirects are
// followed. If out is not nil, it will be used to report the response.
func NewTransfer(url string, out io.Writer) *Transfer {
	return &Transfer{
		URL:    url,
		Client: http.DefaultClient,
		Out:    out,
	}
}

// Open implements the Opener interface.
func (t *Transfer) Open(ctx context.Context) (Artifact, error) {
	return t.Stream(ctx)
}

// Stream performs the request and returns the response as a stream.
func (t *Transfer) Stream(ctx context.Context) (*Stream, error) {
	// prepare context
	ctx, cancel := context.WithCancel(ctx)

	// prepare request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrArtifactFetchFailed, err)
	}

	// get client
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	// perform request
	res, err := client.Do(req)
	if err != nil {
		cancel()
		utils.Logf(t.Out, "Failed to fetch firmware: %s", err)
		return nil, fmt.Errorf("%w: %w", ErrArtifactFetchFailed, err)
	}

	utils.Logf(t.Out, "HTTP GET code: %d", res.StatusCode)

	// check status
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		cancel()
		utils.Logf(t.Out, "Failed to fetch firmware. HTTP code: %d", res.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrArtifactFetchFailed, res.StatusCode)
	}

	// create stream
	s := &Stream{
		size:   res.ContentLength,
		body:   res.Body,
		cancel: cancel,
		done:   ctx.Done(),
		blocks: make(chan []byte, pumpDepth),
	}

	// run pump
	go s.pump()

	return s, nil
}

// Stream is an open artifact connection. The body is read ahead by a background
// goroutine so that the available bytes can be polled without blocking.
type Stream struct {
	size    int64
	body    io.ReadCloser
	cancel  context.CancelFunc
	done    <-chan struct{}
	blocks  chan []byte
	pending []byte
	drained bool
	err     error
}

// Size implements the Artifact interface.
func (s *Stream) Size() int64 {
	return s.size
}

// Available implements the Source interface.
func (s *Stream) Available() (int, error) {
	// refill pending bytes
	if len(s.pending) == 0 && !s.drained {
		select {
		case block, ok := <-s.blocks:
			if ok {
				s.pending = block
			} else {
				s.drained = true
			}
		default:
		}
	}

	// return pending bytes
	if len(s.pending) > 0 {
		return len(s.pending), nil
	}

	// return terminal error
	if s.drained {
		return 0, s.err
	}

	return 0, nil
}

// Read implements the Source interface.
func (s *Stream) Read(p []byte) (int, error) {
	// check available bytes
	n, err := s.Available()
	if n == 0 {
		return 0, err
	}

	// copy bytes
	n = copy(p, s.pending)
	s.pending = s.pending[n:]

	return n, nil
}

// Close implements the Artifact interface.
func (s *Stream) Close() error {
	// stop pump
	s.cancel()
	err := s.body.Close()

	// wait for pump to exit
	for range s.blocks {
	}
	s.drained = true

	return err
}

func (s *Stream) pump() {
	// close blocks when done
	defer close(s.blocks)

	for {
		// read block
		block := make([]byte, pumpSize)
		n, err := s.body.Read(block)
		if n > 0 {
			select {
			case s.blocks <- block[:n]:
			case <-s.done:
				s.err = context.Canceled
				return
			}
		}

		// handle end or failure
		if err != nil {
			s.err = err
			return
		}
	}
}
