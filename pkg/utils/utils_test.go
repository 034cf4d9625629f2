package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	Log(&buf, "hello")
	Logf(&buf, "size: %d", 42)
	assert.Equal(t, "==> hello\n==> size: 42\n", buf.String())

	assert.NotPanics(t, func() {
		Log(nil, "ignored")
		Logf(nil, "ignored %d", 1)
	})
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot")

	ok, err := Exists(path)
	assert.NoError(t, err)
	assert.False(t, ok)

	err = WriteAtomic(path, []byte("a"))
	assert.NoError(t, err)

	err = WriteAtomic(path, []byte("b"))
	assert.NoError(t, err)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "b", string(data))

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}
