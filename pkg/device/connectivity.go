package device

import (
	"net"
	"time"
)

// Static reports a fixed connectivity state.
type Static bool

// Connected implements the ota.Connectivity interface.
func (s Static) Connected() bool {
	return bool(s)
}

// DialProbe reports the network as connected if a TCP connection to the
// configured address can be established.
type DialProbe struct {
	Address string
	Timeout time.Duration
}

// Connected implements the ota.Connectivity interface.
func (p *DialProbe) Connected() bool {
	// get timeout
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	// dial address
	conn, err := net.DialTimeout("tcp", p.Address, timeout)
	if err != nil {
		return false
	}

	// close connection
	_ = conn.Close()

	return true
}
