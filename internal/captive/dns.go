// Package captive runs the wildcard DNS responder of the configuration portal.
package captive

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultAddr is the standard DNS port on all interfaces.
	DefaultAddr = ":53"
	answerTTL   = 60
)

// Server answers every A query with a single fixed address so that any
// hostname a client looks up lands on the device.
type Server struct {
	addr string
	ip   net.IP

	mu      sync.Mutex
	srv     *dns.Server
	conn    net.PacketConn
	stopped chan struct{}
}

// NewServer creates a responder that will bind addr and resolve names to ip.
func NewServer(addr string, ip net.IP) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{addr: addr, ip: ip.To4()}
}

// Start binds the UDP socket and begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil
	}
	if s.ip == nil {
		return fmt.Errorf("captive: no IPv4 address to answer with")
	}

	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("captive: listen %s: %w", s.addr, err)
	}

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        conn,
		Handler:           dns.HandlerFunc(s.handle),
		NotifyStartedFunc: func() { close(started) },
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := srv.ActivateAndServe(); err != nil {
			log.WithError(err).Warn("captive: dns server exited")
		}
	}()

	select {
	case <-started:
	case <-stopped:
		_ = conn.Close()
		return fmt.Errorf("captive: dns server failed to start on %s", s.addr)
	case <-time.After(2 * time.Second):
		_ = srv.Shutdown()
		return fmt.Errorf("captive: dns server start timed out on %s", s.addr)
	}

	s.srv, s.conn, s.stopped = srv, conn, stopped
	log.WithFields(log.Fields{"addr": conn.LocalAddr().String(), "answer": s.ip.String()}).Info("captive: dns responder started")
	return nil
}

// Stop shuts the responder down. It is safe to call when not running.
func (s *Server) Stop() {
	s.mu.Lock()
	srv, stopped := s.srv, s.stopped
	s.srv, s.conn, s.stopped = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return
	}
	if err := srv.Shutdown(); err != nil {
		log.WithError(err).Debug("captive: dns shutdown")
	}
	<-stopped
	log.Info("captive: dns responder stopped")
}

// Running reports whether the responder is serving.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.addr
}

func (s *Server) handle(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	for _, q := range r.Question {
		if q.Qclass != dns.ClassINET || (q.Qtype != dns.TypeA && q.Qtype != dns.TypeANY) {
			continue
		}
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: answerTTL},
			A:   s.ip,
		})
	}

	if err := w.WriteMsg(m); err != nil {
		log.WithError(err).Debug("captive: write reply")
	}
}
