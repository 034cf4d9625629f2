// Package diag provides the diagnostic channel of the update agent.
package diag

import (
	"errors"
	"io"

	"github.com/samber/lo"
)

// Channel fans out diagnostic output to multiple sinks.
type Channel struct {
	sinks []io.Writer
}

// NewChannel creates a new channel for the provided sinks. Nil sinks are
// ignored.
func NewChannel(sinks ...io.Writer) *Channel {
	return &Channel{
		sinks: lo.Filter(sinks, func(sink io.Writer, _ int) bool {
			return sink != nil
		}),
	}
}

// Len returns the number of sinks.
func (c *Channel) Len() int {
	return len(c.sinks)
}

// Write implements the io.Writer interface. Sink failures are ignored.
func (c *Channel) Write(p []byte) (int, error) {
	for _, sink := range c.sinks {
		_, _ = sink.Write(p)
	}

	return len(p), nil
}

// Close closes all sinks that implement io.Closer.
func (c *Channel) Close() error {
	// collect closers
	closers := lo.FilterMap(c.sinks, func(sink io.Writer, _ int) (io.Closer, bool) {
		closer, ok := sink.(io.Closer)
		return closer, ok
	})

	// close sinks
	var errs []error
	for _, closer := range closers {
		errs = append(errs, closer.Close())
	}

	return errors.Join(errs...)
}
