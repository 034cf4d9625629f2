// Package storage provides program storage regions that firmware images can be
// streamed into. A region hands out at most one handle at a time and only a
// committed handle changes the image that is booted next.
package storage

import "errors"

// The available storage errors.
var (
	ErrBusy         = errors.New("region busy")
	ErrInsufficient = errors.New("insufficient space")
	ErrOverflow     = errors.New("write exceeds reservation")
	ErrMismatch     = errors.New("size mismatch")
	ErrFinished     = errors.New("handle finished")
)

// Region represents the inactive program storage area of a device.
type Region interface {
	// Reserve prepares the region to receive an image of the specified size.
	Reserve(size int64) (Handle, error)
}

// Handle represents an exclusive write session on a region.
type Handle interface {
	// Append writes the next part of the image.
	Append(data []byte) error

	// Commit finalizes the image and makes it the next boot target. The
	// reservation must be filled completely.
	Commit() error

	// Discard drops all written data. The boot target remains unchanged.
	Discard()
}

// Labeler is implemented by handles that can record the version of the image
// they receive. The label becomes visible once the handle is committed.
type Labeler interface {
	Label(version string)
}
