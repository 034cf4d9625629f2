package storage

import (
	"bytes"
	"sync"
)

// Memory is an in-memory region that keeps the boot image and the staged image
// in separate slots. It supports fault injection and is mainly used in tests.
type Memory struct {
	// Capacity is the maximum image size accepted by Reserve.
	Capacity int64

	// FailAppend and FailCommit are returned by the respective handle methods
	// when set.
	FailAppend error
	FailCommit error

	boot     []byte
	version  string
	staged   *bytes.Buffer
	reserved int64
	reserves int
	commits  int
	discards int
	mutex    sync.Mutex
}

// NewMemory creates a new memory region with the specified capacity that boots
// the provided image.
func NewMemory(capacity int64, image []byte) *Memory {
	return &Memory{
		Capacity: capacity,
		boot:     bytes.Clone(image),
	}
}

// Reserve implements the Region interface.
func (m *Memory) Reserve(size int64) (Handle, error) {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// check state
	if m.staged != nil {
		return nil, ErrBusy
	}

	// check size
	if size <= 0 || size > m.Capacity {
		return nil, ErrInsufficient
	}

	// prepare slot
	m.staged = bytes.NewBuffer(make([]byte, 0, size))
	m.reserved = size
	m.reserves++

	return &memoryHandle{region: m}, nil
}

// Boot returns a copy of the image that is booted next.
func (m *Memory) Boot() []byte {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return bytes.Clone(m.boot)
}

// Version returns the label of the image that is booted next.
func (m *Memory) Version() string {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.version
}

// Busy returns whether a handle is currently open.
func (m *Memory) Busy() bool {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.staged != nil
}

// Counts returns the number of reservations, commits and discards.
func (m *Memory) Counts() (reserves, commits, discards int) {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.reserves, m.commits, m.discards
}

type memoryHandle struct {
	region  *Memory
	version string
	done    bool
}

func (h *memoryHandle) Label(version string) {
	h.version = version
}

func (h *memoryHandle) Append(data []byte) error {
	// acquire mutex
	h.region.mutex.Lock()
	defer h.region.mutex.Unlock()

	// check state
	if h.done {
		return ErrFinished
	}

	// check injected fault
	if h.region.FailAppend != nil {
		return h.region.FailAppend
	}

	// check reservation
	if int64(h.region.staged.Len()+len(data)) > h.region.reserved {
		return ErrOverflow
	}

	// write data
	h.region.staged.Write(data)

	return nil
}

func (h *memoryHandle) Commit() error {
	// acquire mutex
	h.region.mutex.Lock()
	defer h.region.mutex.Unlock()

	// check state
	if h.done {
		return ErrFinished
	}

	// check injected fault
	if h.region.FailCommit != nil {
		return h.region.FailCommit
	}

	// check size
	if int64(h.region.staged.Len()) != h.region.reserved {
		return ErrMismatch
	}

	// swap boot image
	h.region.boot = bytes.Clone(h.region.staged.Bytes())
	h.region.version = h.version
	h.region.staged = nil
	h.region.commits++
	h.done = true

	return nil
}

func (h *memoryHandle) Discard() {
	// acquire mutex
	h.region.mutex.Lock()
	defer h.region.mutex.Unlock()

	// check state
	if h.done {
		return
	}

	// drop staged image
	h.region.staged = nil
	h.region.discards++
	h.done = true
}
