// Package mdns announces and discovers update servers on the local network.
package mdns

import (
	"context"
	"time"

	"github.com/grandcat/zeroconf"
)

// Service is the service type used by update servers.
const Service = "_ota._tcp"

// Domain is the domain used for announcements and lookups.
const Domain = "local."

// Location represents a discovered update server.
type Location struct {
	Instance string
	Hostname string
	Address  string
	Port     int
	Text     []string
}

// Discover searches for all update servers with the specified service type.
func Discover(service string, duration time.Duration) ([]Location, error) {
	// create resolver
	resolver, err := zeroconf.NewResolver(zeroconf.SelectIPTraffic(zeroconf.IPv4))
	if err != nil {
		return nil, err
	}

	// prepare context
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	// prepare channels
	done := make(chan struct{})
	entries := make(chan *zeroconf.ServiceEntry, 8)

	// collect addresses
	var locations []Location
	go func() {
		for entry := range entries {
			// skip entries without address
			if len(entry.AddrIPv4) == 0 {
				continue
			}

			locations = append(locations, Location{
				Instance: entry.Instance,
				Hostname: entry.HostName,
				Address:  entry.AddrIPv4[0].String(),
				Port:     entry.Port,
				Text:     entry.Text,
			})
		}
		close(done)
	}()

	// perform lookup
	err = resolver.Browse(ctx, service, Domain, entries)
	if err != nil {
		return nil, err
	}

	// wait for done
	<-done

	return locations, nil
}

// Announcement is a running service announcement.
type Announcement struct {
	server *zeroconf.Server
}

// Announce registers the specified instance and port with the service type.
// The announcement runs until it is stopped.
func Announce(instance, service string, port int, text []string) (*Announcement, error) {
	// register service
	server, err := zeroconf.Register(instance, service, Domain, port, text, nil)
	if err != nil {
		return nil, err
	}

	return &Announcement{
		server: server,
	}, nil
}

// Stop will stop the announcement.
func (a *Announcement) Stop() {
	a.server.Shutdown()
}
