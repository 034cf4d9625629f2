package serial

import (
	"sort"
	"strings"

	"github.com/ryanuber/go-glob"
	"go.bug.st/serial"
)

var knownPrefixes = []string{"cu.SLAB", "cu.usbserial", "cu.usbmodem", "ttyUSB", "ttyACM"}

// ListPorts will return a list of all known serial ports.
func ListPorts() ([]string, error) {
	// get list
	list, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	return filterPorts(list), nil
}

// MatchPorts will return all known serial ports that match the provided glob
// pattern. An empty pattern matches all ports.
func MatchPorts(pattern string) ([]string, error) {
	// list ports
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}

	return matchPorts(ports, pattern), nil
}

// FindPort will return the fist known serial port matching the pattern or an
// empty string.
func FindPort(pattern string) string {
	// match ports
	ports, err := MatchPorts(pattern)
	if err != nil || len(ports) == 0 {
		return ""
	}

	return ports[0]
}

func filterPorts(list []string) []string {
	// sort in reverse to list combined ports with their serial port first
	sort.Sort(sort.Reverse(sort.StringSlice(list)))

	// check names and prefixes
	ports := make([]string, 0)
	for _, name := range list {
		for _, prefix := range knownPrefixes {
			if strings.Contains(name, prefix) {
				ports = append(ports, name)
				break
			}
		}
	}

	return ports
}

func matchPorts(ports []string, pattern string) []string {
	// check pattern
	if pattern == "" {
		return ports
	}

	// match ports
	list := make([]string, 0)
	for _, port := range ports {
		if glob.Glob(pattern, port) {
			list = append(list, port)
		}
	}

	return list
}
