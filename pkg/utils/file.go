package utils

import (
	"os"
	"path/filepath"
)

// Exists will check if the provided file or directory exists.
func Exists(path string) (bool, error) {
	// get file info
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}

	// check for known error
	if os.IsNotExist(err) {
		return false, nil
	}

	return true, err
}

// WriteAtomic will write the provided data to a temporary file next to path
// and then rename it into place. Readers either see the old or the new content.
func WriteAtomic(path string, data []byte) error {
	// create temporary file
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	// ensure cleanup on failure
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	// write data
	_, err = tmp.Write(data)
	if err != nil {
		return err
	}

	// flush to disk
	err = tmp.Sync()
	if err != nil {
		return err
	}

	// close file
	err = tmp.Close()
	if err != nil {
		return err
	}

	// move into place
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return err
	}

	// set flag
	ok = true

	return nil
}
