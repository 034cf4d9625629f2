// Package ota implements the firmware update engine of a device. It checks a
// remote endpoint for a new version token and streams the firmware artifact
// into the inactive program storage region before requesting a restart.
package ota

import "context"

// Connectivity reports whether the network is available.
type Connectivity interface {
	Connected() bool
}

// Restarter restarts the device. Restart is not expected to return.
type Restarter interface {
	Restart()
}

// Source is a sequential byte source that can be polled without blocking.
type Source interface {
	// Available returns the number of bytes that can be read without blocking.
	// Once the source is drained it returns the terminal error, which is
	// io.EOF for a regular end.
	Available() (int, error)

	// Read reads up to len(p) of the available bytes.
	Read(p []byte) (int, error)
}

// Artifact is an opened firmware artifact.
type Artifact interface {
	Source

	// Size returns the declared size of the artifact or -1 if unknown.
	Size() int64

	// Close releases the underlying connection.
	Close() error
}

// Fetcher fetches the latest version token.
type Fetcher interface {
	Fetch(ctx context.Context) string
}

// Opener opens the firmware artifact.
type Opener interface {
	Open(ctx context.Context) (Artifact, error)
}

// Checker runs a single update check.
type Checker interface {
	CheckAndApply(ctx context.Context, state *State) error
}
