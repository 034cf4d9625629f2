package mqtt

import (
	"errors"
	"sync"
	"time"

	"github.com/256dpi/gomqtt/client"
	"github.com/256dpi/gomqtt/packet"
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("publisher closed")

// Publisher provides a connected MQTT client that publishes messages below a
// base topic.
type Publisher struct {
	client *client.Client
	base   string
	qos    packet.QOS
	closed bool
	mutex  sync.Mutex
}

// Connect creates a new Publisher connected to the given MQTT broker URL
// using the provided client ID and QOS level. If the base topic is empty, the
// path of the broker URL is used instead.
func Connect(url, cid, base string, qos packet.QOS) (*Publisher, error) {
	// check QOS
	if !qos.Successful() {
		return nil, errors.New("invalid QOS")
	}

	// get base topic
	if base == "" {
		base = urlPath(url)
	}

	// create client
	c := client.New()

	// connect to the broker using the provided url
	cf, err := c.Connect(client.NewConfigWithClientID(url, cid))
	if err != nil {
		return nil, err
	}
	err = cf.Wait(5 * time.Second)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	// create publisher
	p := &Publisher{
		client: c,
		base:   base,
		qos:    qos,
	}

	// set handler
	c.Callback = func(msg *packet.Message, err error) error {
		// mark closed on errors
		if err != nil {
			p.mutex.Lock()
			p.closed = true
			p.mutex.Unlock()
		}

		return err
	}

	return p, nil
}

// Topic returns the full topic for the given sub topic.
func (p *Publisher) Topic(topic string) string {
	return joinTopic(p.base, topic)
}

// Publish publishes the given payload to the specified sub topic.
func (p *Publisher) Publish(topic string, payload []byte) error {
	// check state
	p.mutex.Lock()
	closed := p.closed
	p.mutex.Unlock()
	if closed {
		return ErrClosed
	}

	// publish message
	pf, err := p.client.Publish(p.Topic(topic), payload, p.qos, false)
	if err != nil {
		return err
	}
	err = pf.Wait(5 * time.Second)
	if err != nil {
		return err
	}

	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() error {
	// check and set flag
	p.mutex.Lock()
	closed := p.closed
	p.closed = true
	p.mutex.Unlock()
	if closed {
		return nil
	}

	// disconnect client
	err := p.client.Disconnect()
	if err != nil {
		return err
	}

	return nil
}
