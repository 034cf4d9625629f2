package main

import (
	"time"

	"github.com/docopt/docopt-go"
)

var usage = `otad - the firmware update agent

Usage:
  otad run [--config=<path>]
  otad check [--config=<path>]
  otad status [--config=<path>]
  otad init [--config=<path> --force]
  otad serve <dir> [--addr=<addr> --announce]
  otad publish <dir> <version> <image>
  otad discover [--duration=<d>]
  otad ports [<pattern>]
  otad version

Options:
  -c --config=<path>    The configuration file [default: ota.yaml].
  -f --force            Overwrite an existing configuration file.
  -a --addr=<addr>      The server address [default: :8080].
  -n --announce         Announce the server on the local network.
  -d --duration=<d>     The discovery duration [default: 2s].
  -h --help             Show this screen.
`

type command struct {
	// commands
	cRun      bool
	cCheck    bool
	cStatus   bool
	cInit     bool
	cServe    bool
	cPublish  bool
	cDiscover bool
	cPorts    bool
	cVersion  bool

	// arguments
	aDir     string
	aVersion string
	aImage   string
	aPattern string

	// options
	oConfig   string
	oForce    bool
	oAddr     string
	oAnnounce bool
	oDuration time.Duration
}

func parseCommand() *command {
	a, err := docopt.Parse(usage, nil, true, version, false)
	exitIfSet(err)

	return &command{
		// commands
		cRun:      getBool(a["run"]),
		cCheck:    getBool(a["check"]),
		cStatus:   getBool(a["status"]),
		cInit:     getBool(a["init"]),
		cServe:    getBool(a["serve"]),
		cPublish:  getBool(a["publish"]),
		cDiscover: getBool(a["discover"]),
		cPorts:    getBool(a["ports"]),
		cVersion:  getBool(a["version"]),

		// arguments
		aDir:     getString(a["<dir>"]),
		aVersion: getString(a["<version>"]),
		aImage:   getString(a["<image>"]),
		aPattern: getString(a["<pattern>"]),

		// options
		oConfig:   getString(a["--config"]),
		oForce:    getBool(a["--force"]),
		oAddr:     getString(a["--addr"]),
		oAnnounce: getBool(a["--announce"]),
		oDuration: getDuration(a["--duration"]),
	}
}

func getBool(field interface{}) bool {
	val, _ := field.(bool)
	return val
}

func getString(field interface{}) string {
	str, _ := field.(string)
	return str
}

func getDuration(field interface{}) time.Duration {
	d, _ := time.ParseDuration(getString(field))
	return d
}
