package ota

import "errors"

// The available update errors.
var (
	ErrConnectivityUnavailable = errors.New("connectivity unavailable")
	ErrVersionFetchFailed      = errors.New("version fetch failed")
	ErrArtifactFetchFailed     = errors.New("artifact fetch failed")
	ErrInvalidArtifactSize     = errors.New("invalid firmware size")
	ErrStorageReserveFailed    = errors.New("storage reserve failed")
	ErrStorageWriteFailed      = errors.New("storage write failed")
	ErrStallTimeout            = errors.New("timeout: no data")
	ErrIncompleteTransfer      = errors.New("incomplete write")
	ErrCommitFailed            = errors.New("commit failed")
	ErrAborted                 = errors.New("session aborted")
	ErrSessionClosed           = errors.New("session closed")
)
