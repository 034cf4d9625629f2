package main

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/256dpi/ota/pkg/config"
)

func TestCommandRestarter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip()
	}

	var out bytes.Buffer
	var flushes, resumes int
	restarter := newRestarter(config.Restart{
		Command: []string{"echo", "restarting"},
	}, &out, func() {
		flushes++
	}, func() {
		resumes++
	})

	restarter.Restart()
	assert.Equal(t, "==> echo restarting\nrestarting\n", out.String())
	assert.Equal(t, 0, flushes)
	assert.Equal(t, 1, resumes)

	out.Reset()
	restarter = newRestarter(config.Restart{
		Command: []string{"/nonexistent/restart"},
	}, &out, func() {
		flushes++
	}, func() {
		resumes++
	})

	restarter.Restart()
	assert.Contains(t, out.String(), "Restart failed")
	assert.Equal(t, 0, flushes)
	assert.Equal(t, 2, resumes)
}
