// Package utils provides some small utility functions.
package utils

import (
	"fmt"
	"io"
)

// Log will format and write the provided message to out if available.
func Log(out io.Writer, msg string) {
	if out != nil {
		_, _ = fmt.Fprintf(out, "==> %s\n", msg)
	}
}

// Logf will format the message using the provided arguments and write it to
// out if available.
func Logf(out io.Writer, format string, args ...any) {
	if out != nil {
		Log(out, fmt.Sprintf(format, args...))
	}
}
