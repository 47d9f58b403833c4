package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/electionneedle/needle/internal/model"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner (64 KB).
	scannerInitBufSize = 64 * 1024
	// scannerMaxTokenSize is the maximum request line the scanner will accept (1 MB).
	scannerMaxTokenSize = 1024 * 1024
)

// Device is the controller contract exposed over the socket.
type Device interface {
	Status(ctx context.Context) (model.Status, error)
	UpdateSlug(ctx context.Context, slug string) (model.SlugResult, error)
}

// Server exposes a Device over a Unix domain socket using JSON-RPC 2.0.
type Server struct {
	socketPath string
	device     Device
	listener   net.Listener
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates a new socket RPC server.
func NewServer(socketPath string, dev Device) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		device:     dev,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// Remove a stale socket left by a crashed process.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			_ = os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.WithField("socket", s.socketPath).Info("socketrpc: listening")
	return nil
}

// Stop closes the listener, waits for connections to drain, and removes the socket file.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("socketrpc: accept")
			time.Sleep(50 * time.Millisecond)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		if s.ctx.Err() != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = encoder.Encode(Response{JSONRPC: "2.0", Error: &RPCError{Code: codeParse, Message: "parse error"}})
			continue
		}

		if err := encoder.Encode(s.dispatch(s.ctx, req)); err != nil {
			return
		}
	}
}

// handler runs one method against the device.
type handler func(ctx context.Context, dev Device, params json.RawMessage) (any, error)

// errInvalidParams marks a params payload that did not decode.
var errInvalidParams = errors.New("invalid params")

var methods = map[string]handler{
	"Status": func(ctx context.Context, dev Device, _ json.RawMessage) (any, error) {
		return dev.Status(ctx)
	},
	"UpdateSlug": func(ctx context.Context, dev Device, params json.RawMessage) (any, error) {
		var p updateSlugParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		return dev.UpdateSlug(ctx, p.Slug)
	},
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	h, ok := methods[req.Method]
	if !ok {
		resp.Error = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}

	result, err := h(ctx, s.device, req.Params)
	switch {
	case errors.Is(err, errInvalidParams):
		resp.Error = &RPCError{Code: codeInvalidParams, Message: err.Error()}
		return resp
	case err != nil:
		log.WithError(err).WithField("method", req.Method).Debug("socketrpc: call failed")
		resp.Error = &RPCError{Code: codeApplication, Message: err.Error()}
		return resp
	}

	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = &RPCError{Code: codeInternal, Message: err.Error()}
		return resp
	}
	resp.Result = data
	return resp
}
