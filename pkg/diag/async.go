package diag

import (
	"io"
	"sync"
)

// DefaultQueueSize is the number of writes buffered per sink.
const DefaultQueueSize = 64

// Async decouples a sink from the writer. Writes are queued and drained by a
// background goroutine. If the queue is full, the write is dropped.
type Async struct {
	sink    io.Writer
	queue   chan []byte
	done    chan struct{}
	dropped int
	closed  bool
	mutex   sync.Mutex
}

// NewAsync creates a new Async writer for the sink with the specified queue
// size.
func NewAsync(sink io.Writer, size int) *Async {
	// check size
	if size <= 0 {
		size = DefaultQueueSize
	}

	// create writer
	a := &Async{
		sink:  sink,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}

	// run drain
	go a.drain()

	return a
}

// Write implements the io.Writer interface. It never blocks and never fails.
func (a *Async) Write(p []byte) (int, error) {
	// acquire mutex
	a.mutex.Lock()
	defer a.mutex.Unlock()

	// check state
	if a.closed {
		a.dropped++
		return len(p), nil
	}

	// queue copy
	select {
	case a.queue <- append([]byte(nil), p...):
	default:
		a.dropped++
	}

	return len(p), nil
}

// Dropped returns the number of dropped writes.
func (a *Async) Dropped() int {
	// acquire mutex
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.dropped
}

// Close stops accepting writes, waits until the queue is drained and closes
// the sink if it is an io.Closer.
func (a *Async) Close() error {
	// set flag
	a.mutex.Lock()
	if a.closed {
		a.mutex.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mutex.Unlock()

	// await drain
	<-a.done

	// close sink
	if closer, ok := a.sink.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

func (a *Async) drain() {
	defer close(a.done)

	for data := range a.queue {
		_, _ = a.sink.Write(data)
	}
}
