package wifi

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/electionneedle/needle/internal/captive"
	"github.com/electionneedle/needle/internal/model"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultSettleDelay  = time.Second
)

// Result is the outcome of a connection attempt.
type Result int

const (
	TimedOut Result = iota
	Connected
)

func (r Result) String() string {
	if r == Connected {
		return "connected"
	}
	return "timed_out"
}

// Config tunes the Manager.
type Config struct {
	APSSID       string
	Hostname     string
	PollInterval time.Duration
	SettleDelay  time.Duration
	DNSAddr      string
}

// Manager switches the radio between station and access-point mode.
// It is not safe for concurrent use; the device controller's loop is its only caller.
type Manager struct {
	radio Radio
	cfg   Config
	dns   *captive.Server
	apIP  string
}

// NewManager wraps radio with the connection policy in cfg.
func NewManager(radio Radio, cfg Config) *Manager {
	if cfg.APSSID == "" {
		cfg.APSSID = model.DefaultAPSSID
	}
	if cfg.Hostname == "" {
		cfg.Hostname = model.DefaultHostname
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.DNSAddr == "" {
		cfg.DNSAddr = captive.DefaultAddr
	}
	return &Manager{radio: radio, cfg: cfg}
}

// TryConnect associates with creds and waits until the link is up or timeout
// elapses. Any existing association or access point is torn down first.
func (m *Manager) TryConnect(ctx context.Context, creds model.Credentials, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = model.DefaultConnectTimeout
	}
	logger := log.WithFields(log.Fields{"ssid": creds.SSID, "timeout": timeout})

	m.stopDNS()
	m.apIP = ""
	if err := m.radio.Disconnect(ctx); err != nil {
		logger.WithError(err).Debug("wifi: disconnect before join")
	}
	if !sleepCtx(ctx, m.cfg.SettleDelay) {
		return TimedOut
	}

	logger.Info("wifi: connecting")
	if err := m.radio.Join(ctx, creds.SSID, creds.Password, m.cfg.Hostname); err != nil {
		logger.WithError(fmt.Errorf("wifi: %w: %w", model.ErrConnect, err)).Warn("wifi: join failed")
		return TimedOut
	}

	deadline := time.Now().Add(timeout)
	for {
		st, err := m.radio.Status(ctx)
		if err != nil {
			logger.WithError(err).Debug("wifi: status")
		}
		if st == LinkUp {
			logger.Info("wifi: connected")
			return Connected
		}
		if !time.Now().Before(deadline) {
			logger.WithError(model.ErrConnect).Warn("wifi: connect timed out")
			return TimedOut
		}
		if !sleepCtx(ctx, min(m.cfg.PollInterval, time.Until(deadline))) {
			return TimedOut
		}
	}
}

// StartAccessPoint brings up the open configuration network and the captive
// DNS responder that resolves every name to the device.
func (m *Manager) StartAccessPoint(ctx context.Context) error {
	m.stopDNS()
	if err := m.radio.Disconnect(ctx); err != nil {
		log.WithError(err).Debug("wifi: disconnect before ap")
	}
	if !sleepCtx(ctx, m.cfg.SettleDelay) {
		return ctx.Err()
	}

	ip, err := m.radio.StartAP(ctx, m.cfg.APSSID)
	if err != nil {
		return fmt.Errorf("wifi: start ap %q: %w", m.cfg.APSSID, err)
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return fmt.Errorf("wifi: ap address %q is not an IP", ip)
	}
	m.apIP = ip

	m.dns = captive.NewServer(m.cfg.DNSAddr, parsed)
	if err := m.dns.Start(); err != nil {
		m.dns = nil
		return fmt.Errorf("wifi: captive dns: %w", err)
	}
	log.WithFields(log.Fields{"ssid": m.cfg.APSSID, "ip": ip}).Info("wifi: access point active with captive portal")
	return nil
}

// StopAccessPoint tears down the captive DNS responder and the access point.
func (m *Manager) StopAccessPoint(ctx context.Context) {
	m.stopDNS()
	if m.apIP == "" {
		return
	}
	if err := m.radio.StopAP(ctx); err != nil {
		log.WithError(err).Warn("wifi: stop ap")
	}
	m.apIP = ""
}

// LinkUp reports whether the station link is currently associated.
func (m *Manager) LinkUp(ctx context.Context) bool {
	st, err := m.radio.Status(ctx)
	if err != nil {
		log.WithError(err).Debug("wifi: status")
		return false
	}
	return st == LinkUp
}

// LocalIP returns the station address, empty when unknown.
func (m *Manager) LocalIP(ctx context.Context) string {
	ip, err := m.radio.LocalIP(ctx)
	if err != nil {
		log.WithError(err).Debug("wifi: local ip")
		return ""
	}
	return ip
}

// APAddress returns the access point address while the AP is up.
func (m *Manager) APAddress() string {
	return m.apIP
}

// DNSAddr returns the captive responder's bound address, empty when stopped.
func (m *Manager) DNSAddr() string {
	if m.dns == nil || !m.dns.Running() {
		return ""
	}
	return m.dns.Addr()
}

func (m *Manager) stopDNS() {
	if m.dns != nil {
		m.dns.Stop()
		m.dns = nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
