package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/256dpi/ota/pkg/config"
	"github.com/256dpi/ota/pkg/mqtt"
	"github.com/256dpi/ota/pkg/serial"
)

// LogTopic is the sub topic diagnostic output is published to.
const LogTopic = "ota/log"

// Publisher publishes messages to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// MQTT is a sink that publishes every write as a message.
type MQTT struct {
	Publisher Publisher
	Topic     string
}

// Write implements the io.Writer interface.
func (m *MQTT) Write(p []byte) (int, error) {
	// publish message
	err := m.Publisher.Publish(m.Topic, p)
	if err != nil {
		return 0, err
	}

	return len(p), nil
}

// Close implements the io.Closer interface.
func (m *MQTT) Close() error {
	return m.Publisher.Close()
}

// Open creates a channel with all configured sinks. Every sink is wrapped in
// an Async writer.
func Open(cfg config.Diagnostics, clientID string) (*Channel, error) {
	// prepare sinks
	var sinks []io.Writer

	// add console
	if cfg.Console {
		sinks = append(sinks, NewAsync(console{os.Stdout}, 0))
	}

	// add serial
	if cfg.Serial != nil {
		port, err := serial.OpenWriter(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err != nil {
			closeAll(sinks)
			return nil, fmt.Errorf("serial sink: %w", err)
		}
		sinks = append(sinks, NewAsync(port, 0))
	}

	// add mqtt
	if cfg.MQTT != nil {
		// get client id
		cid := cfg.MQTT.ClientID
		if cid == "" {
			cid = clientID
		}

		// connect publisher
		pub, err := mqtt.Connect(cfg.MQTT.Broker, cid, cfg.MQTT.BaseTopic, 0)
		if err != nil {
			closeAll(sinks)
			return nil, fmt.Errorf("mqtt sink: %w", err)
		}
		sinks = append(sinks, NewAsync(&MQTT{Publisher: pub, Topic: LogTopic}, 0))
	}

	return NewChannel(sinks...), nil
}

// console hides the Close method of the standard output.
type console struct {
	io.Writer
}

func closeAll(sinks []io.Writer) {
	_ = NewChannel(sinks...).Close()
}
