// Package mdns advertises the device's web interface on the local network.
package mdns

import (
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	log "github.com/sirupsen/logrus"
)

const (
	serviceType = "_http._tcp"
	domain      = "local."
)

// Advertiser registers the HTTP service under the device hostname.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser returns an idle advertiser.
func NewAdvertiser() *Advertiser {
	return &Advertiser{}
}

// Advertise publishes hostname as an HTTP service on port, replacing any
// previous registration.
func (a *Advertiser) Advertise(hostname string, port int) error {
	if hostname == "" {
		return fmt.Errorf("mdns: empty hostname")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("mdns: invalid port %d", port)
	}

	a.Shutdown()

	server, err := zeroconf.Register(hostname, serviceType, domain, port, []string{"path=/"}, nil)
	if err != nil {
		return fmt.Errorf("mdns: register %s: %w", hostname, err)
	}

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	log.WithFields(log.Fields{"hostname": hostname + ".local", "port": port}).Info("mdns: started")
	return nil
}

// Shutdown withdraws the registration, if any.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
}
