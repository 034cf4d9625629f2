package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/256dpi/ota/pkg/utils"
)

// The available slots of a file region.
const (
	SlotA = "a"
	SlotB = "b"
)

// Status describes the state of a file region.
type Status struct {
	Active   string
	Size     int64
	Inactive string
	Staged   int64
}

// File is a region that stores two image slots in a directory. A pointer file
// names the slot that is booted next. Committing writes the inactive slot and
// then atomically swaps the pointer.
type File struct {
	dir      string
	capacity int64
	busy     bool
	mutex    sync.Mutex
}

// OpenFile opens or initializes a file region in the specified directory.
func OpenFile(dir string, capacity int64) (*File, error) {
	// ensure directory
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}

	// create region
	f := &File{
		dir:      dir,
		capacity: capacity,
	}

	// ensure boot pointer
	ok, err := utils.Exists(f.pointer())
	if err != nil {
		return nil, err
	}
	if !ok {
		err = utils.WriteAtomic(f.pointer(), []byte(SlotA))
		if err != nil {
			return nil, err
		}
	}

	// remove stale partial writes
	for _, slot := range []string{SlotA, SlotB} {
		err = os.Remove(f.partial(slot))
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	return f, nil
}

// Active returns the slot that is booted next.
func (f *File) Active() (string, error) {
	// read pointer
	data, err := os.ReadFile(f.pointer())
	if err != nil {
		return "", err
	}

	// check slot
	slot := strings.TrimSpace(string(data))
	if slot != SlotA && slot != SlotB {
		return "", fmt.Errorf("invalid boot slot %q", slot)
	}

	return slot, nil
}

// Version returns the label of the image in the active slot or an empty string
// if the image has not been labeled.
func (f *File) Version() (string, error) {
	// get active slot
	slot, err := f.Active()
	if err != nil {
		return "", err
	}

	// read label
	data, err := os.ReadFile(f.label(slot))
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// Image returns the path of the image in the active slot.
func (f *File) Image() (string, error) {
	// get active slot
	slot, err := f.Active()
	if err != nil {
		return "", err
	}

	return f.image(slot), nil
}

// Status returns the current status of the region.
func (f *File) Status() (Status, error) {
	// get active slot
	active, err := f.Active()
	if err != nil {
		return Status{}, err
	}

	// prepare status
	status := Status{
		Active:   active,
		Inactive: other(active),
	}

	// get image size
	info, err := os.Stat(f.image(active))
	if err == nil {
		status.Size = info.Size()
	} else if !os.IsNotExist(err) {
		return Status{}, err
	}

	// get staged size
	info, err = os.Stat(f.partial(status.Inactive))
	if err == nil {
		status.Staged = info.Size()
	} else if !os.IsNotExist(err) {
		return Status{}, err
	}

	return status, nil
}

// Reserve implements the Region interface.
func (f *File) Reserve(size int64) (Handle, error) {
	// acquire mutex
	f.mutex.Lock()
	defer f.mutex.Unlock()

	// check state
	if f.busy {
		return nil, ErrBusy
	}

	// check size
	if size <= 0 || (f.capacity > 0 && size > f.capacity) {
		return nil, ErrInsufficient
	}

	// get inactive slot
	active, err := f.Active()
	if err != nil {
		return nil, err
	}
	slot := other(active)

	// create partial file
	file, err := os.OpenFile(f.partial(slot), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	// set flag
	f.busy = true

	return &fileHandle{
		region: f,
		slot:   slot,
		file:   file,
		size:   size,
	}, nil
}

func (f *File) pointer() string {
	return filepath.Join(f.dir, "boot")
}

func (f *File) image(slot string) string {
	return filepath.Join(f.dir, "slot-"+slot+".bin")
}

func (f *File) label(slot string) string {
	return filepath.Join(f.dir, "slot-"+slot+".version")
}

func (f *File) partial(slot string) string {
	return filepath.Join(f.dir, "slot-"+slot+".part")
}

func (f *File) release() {
	// acquire mutex
	f.mutex.Lock()
	defer f.mutex.Unlock()

	// clear flag
	f.busy = false
}

type fileHandle struct {
	region  *File
	slot    string
	file    *os.File
	size    int64
	written int64
	version string
	done    bool
}

// Label implements the Labeler interface.
func (h *fileHandle) Label(version string) {
	h.version = version
}

func (h *fileHandle) Append(data []byte) error {
	// check state
	if h.done {
		return ErrFinished
	}

	// check reservation
	if h.written+int64(len(data)) > h.size {
		return ErrOverflow
	}

	// write data
	n, err := h.file.Write(data)
	h.written += int64(n)
	if err != nil {
		return err
	}

	return nil
}

func (h *fileHandle) Commit() error {
	// check state
	if h.done {
		return ErrFinished
	}

	// check size
	if h.written != h.size {
		return ErrMismatch
	}

	// flush and close image
	err := h.file.Sync()
	if err != nil {
		return err
	}
	err = h.file.Close()
	if err != nil {
		return err
	}

	// move image into slot
	err = os.Rename(h.region.partial(h.slot), h.region.image(h.slot))
	if err != nil {
		return err
	}

	// write or clear label
	if h.version != "" {
		err = utils.WriteAtomic(h.region.label(h.slot), []byte(h.version+"\n"))
	} else {
		err = os.Remove(h.region.label(h.slot))
		if os.IsNotExist(err) {
			err = nil
		}
	}
	if err != nil {
		return err
	}

	// swap boot pointer
	err = utils.WriteAtomic(h.region.pointer(), []byte(h.slot))
	if err != nil {
		return err
	}

	// finish
	h.done = true
	h.region.release()

	return nil
}

func (h *fileHandle) Discard() {
	// check state
	if h.done {
		return
	}

	// remove partial image
	_ = h.file.Close()
	_ = os.Remove(h.region.partial(h.slot))

	// finish
	h.done = true
	h.region.release()
}

func other(slot string) string {
	if slot == SlotA {
		return SlotB
	}
	return SlotA
}
