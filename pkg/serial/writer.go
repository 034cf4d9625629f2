package serial

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate used if none is specified.
const DefaultBaudRate = 115200

// OpenWriter opens the first known serial port matching the pattern for
// writing diagnostic output.
func OpenWriter(pattern string, baudRate int) (io.WriteCloser, error) {
	// find port
	path := FindPort(pattern)
	if path == "" {
		return nil, fmt.Errorf("no serial port matching %q found", pattern)
	}

	// get baud rate
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	// open port
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
	})
	if err != nil {
		return nil, err
	}

	return port, nil
}
