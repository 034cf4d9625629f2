// Package config handles the agent configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"

	"github.com/256dpi/ota/pkg/ota"
)

// Storage configures the file backed storage region.
type Storage struct {
	Dir      string `yaml:"dir"`
	Capacity string `yaml:"capacity"`
}

// Restart configures how a restart is performed. If a command is configured,
// it is run, otherwise the process exits with the exit code.
type Restart struct {
	Command  []string `yaml:"command,omitempty"`
	ExitCode int      `yaml:"exit_code"`
}

// Network configures the connectivity probe. Without a probe address the
// network is assumed to be connected.
type Network struct {
	Probe   string        `yaml:"probe,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// Serial configures the serial diagnostic sink.
type Serial struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MQTT configures the MQTT diagnostic sink.
type MQTT struct {
	Broker    string `yaml:"broker"`
	BaseTopic string `yaml:"base_topic"`
	ClientID  string `yaml:"client_id,omitempty"`
}

// Diagnostics configures the diagnostic sinks.
type Diagnostics struct {
	Console bool    `yaml:"console"`
	Serial  *Serial `yaml:"serial,omitempty"`
	MQTT    *MQTT   `yaml:"mqtt,omitempty"`
}

// A Config represents the contents of the configuration file.
type Config struct {
	Version       string        `yaml:"version,omitempty"`
	VersionURL    string        `yaml:"version_url"`
	FirmwareURL   string        `yaml:"firmware_url"`
	CheckInterval time.Duration `yaml:"check_interval"`
	StallTimeout  time.Duration `yaml:"stall_timeout"`
	RestartDelay  time.Duration `yaml:"restart_delay"`
	StartupDelay  time.Duration `yaml:"startup_delay"`
	LoopDelay     time.Duration `yaml:"loop_delay"`
	ChunkSize     int           `yaml:"chunk_size"`
	Storage       Storage       `yaml:"storage"`
	Restart       Restart       `yaml:"restart"`
	Network       Network       `yaml:"network"`
	Diagnostics   Diagnostics   `yaml:"diagnostics"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		VersionURL:    "http://localhost:8080/version.txt",
		FirmwareURL:   "http://localhost:8080/firmware.bin",
		CheckInterval: ota.DefaultInterval,
		StallTimeout:  ota.DefaultStallTimeout,
		RestartDelay:  ota.DefaultRestartDelay,
		LoopDelay:     ota.DefaultLoopDelay,
		ChunkSize:     ota.DefaultChunkSize,
		Storage: Storage{
			Dir:      "firmware",
			Capacity: "16M",
		},
		Network: Network{
			Timeout: 5 * time.Second,
		},
		Diagnostics: Diagnostics{
			Console: true,
		},
	}
}

// Read will attempt to read the configuration file at the specified path.
// Missing fields are filled with default values.
func Read(path string) (*Config, error) {
	// prepare config
	cfg := New()

	// read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// decode data
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	// validate config
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save will write the configuration file to the specified path.
func (c *Config) Save(path string) error {
	// encode data
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// write config
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return err
	}

	return nil
}

// Validate will check the configuration for errors.
func (c *Config) Validate() error {
	// check urls
	for _, u := range []string{c.VersionURL, c.FirmwareURL} {
		if u == "" {
			return errors.New("missing url")
		}
		pu, err := url.Parse(u)
		if err != nil {
			return err
		} else if pu.Scheme != "http" && pu.Scheme != "https" {
			return fmt.Errorf("invalid url: %s", u)
		}
	}

	// check durations
	if c.CheckInterval <= 0 {
		return errors.New("invalid check interval")
	} else if c.StallTimeout <= 0 {
		return errors.New("invalid stall timeout")
	} else if c.RestartDelay < 0 || c.StartupDelay < 0 || c.LoopDelay < 0 {
		return errors.New("invalid delay")
	}

	// check chunk size
	if c.ChunkSize <= 0 {
		return errors.New("invalid chunk size")
	}

	// check storage
	if c.Storage.Dir == "" {
		return errors.New("missing storage directory")
	}
	_, err := c.Capacity()
	if err != nil {
		return err
	}

	// check diagnostics
	if c.Diagnostics.MQTT != nil && c.Diagnostics.MQTT.Broker == "" {
		return errors.New("missing mqtt broker")
	}

	return nil
}

// Capacity returns the parsed storage capacity in bytes.
func (c *Config) Capacity() (int64, error) {
	// parse capacity
	capacity, err := bytefmt.ToBytes(c.Storage.Capacity)
	if err != nil {
		return 0, fmt.Errorf("invalid storage capacity: %w", err)
	}

	return int64(capacity), nil
}
