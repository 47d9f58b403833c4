package wifi

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	simAPAddress      = "192.168.4.1"
	simStationAddress = "192.168.1.50"
)

// Sim is an in-memory radio for development and tests. Networks maps SSID to
// password; joining a known network with the right password comes up after JoinDelay.
type Sim struct {
	mu        sync.Mutex
	networks  map[string]string
	joinDelay time.Duration

	joining  string
	password string
	joinedAt time.Time
	apSSID   string

	joins    int
	apStarts int
}

// NewSim returns a simulated radio that knows networks.
func NewSim(networks map[string]string, joinDelay time.Duration) *Sim {
	known := make(map[string]string, len(networks))
	for k, v := range networks {
		known[k] = v
	}
	return &Sim{networks: known, joinDelay: joinDelay}
}

func (s *Sim) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joining, s.password = "", ""
	s.apSSID = ""
	return nil
}

func (s *Sim) Join(_ context.Context, ssid, password, _ string) error {
	if ssid == "" {
		return errors.New("sim: empty ssid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apSSID = ""
	s.joining, s.password = ssid, password
	s.joinedAt = time.Now()
	s.joins++
	return nil
}

func (s *Sim) Status(_ context.Context) (LinkStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joining == "" {
		return LinkDown, nil
	}
	pw, ok := s.networks[s.joining]
	if !ok || pw != s.password {
		return LinkConnecting, nil
	}
	if time.Since(s.joinedAt) < s.joinDelay {
		return LinkConnecting, nil
	}
	return LinkUp, nil
}

func (s *Sim) LocalIP(ctx context.Context) (string, error) {
	st, _ := s.Status(ctx)
	if st != LinkUp {
		return "", errors.New("sim: not connected")
	}
	return simStationAddress, nil
}

func (s *Sim) StartAP(_ context.Context, ssid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joining, s.password = "", ""
	s.apSSID = ssid
	s.apStarts++
	return simAPAddress, nil
}

func (s *Sim) StopAP(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apSSID = ""
	return nil
}

// DropLink simulates losing the station association.
func (s *Sim) DropLink() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joining, s.password = "", ""
}

// SetNetwork adds or changes a known network.
func (s *Sim) SetNetwork(ssid, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[ssid] = password
}

// Forget removes a known network so joins to it never complete.
func (s *Sim) Forget(ssid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.networks, ssid)
}

// APActive returns the broadcast SSID, empty when the AP is down.
func (s *Sim) APActive() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apSSID
}

// Counts returns how many joins and AP starts were requested.
func (s *Sim) Counts() (joins, apStarts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joins, s.apStarts
}
