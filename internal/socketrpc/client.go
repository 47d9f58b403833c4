package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/electionneedle/needle/internal/model"
)

const (
	dialTimeout = 5 * time.Second
	// callTimeout bounds one round trip. UpdateSlug waits on a market lookup.
	callTimeout = 30 * time.Second
)

// session is one live connection to needled.
type session struct {
	conn    net.Conn
	lines   *bufio.Scanner
	encoder *json.Encoder
}

func openSession(path string) (*session, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	lines := bufio.NewScanner(conn)
	lines.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &session{conn: conn, lines: lines, encoder: json.NewEncoder(conn)}, nil
}

func (s *session) roundTrip(req Request) (Response, error) {
	var resp Response
	_ = s.conn.SetDeadline(time.Now().Add(callTimeout))
	defer s.conn.SetDeadline(time.Time{})

	if err := s.encoder.Encode(req); err != nil {
		return resp, fmt.Errorf("socketrpc: send: %w", err)
	}
	if !s.lines.Scan() {
		if err := s.lines.Err(); err != nil {
			return resp, fmt.Errorf("socketrpc: read: %w", err)
		}
		return resp, errConnClosed
	}
	if err := json.Unmarshal(s.lines.Bytes(), &resp); err != nil {
		return resp, fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != req.ID {
		return resp, fmt.Errorf("socketrpc: response id %d, want %d", resp.ID, req.ID)
	}
	return resp, nil
}

var errConnClosed = errors.New("socketrpc: connection closed")

// Client talks to a running needled over its Unix socket. needled replaces its
// socket server on every reboot, so a broken connection is redialed on the
// next call.
type Client struct {
	path   string
	mu     sync.Mutex
	sess   *session
	nextID int
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	sess, err := openSession(socketPath)
	if err != nil {
		return nil, err
	}
	return &Client{path: socketPath, sess: sess}, nil
}

// Close closes the current connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	err := c.sess.conn.Close()
	c.sess = nil
	return err
}

// call performs a JSON-RPC call and unmarshals the result into dest. A call
// that fails on a reused connection is retried once on a fresh one.
func (c *Client) call(method string, params any, dest any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var resp Response
	for attempt := 0; ; attempt++ {
		reused := c.sess != nil
		if c.sess == nil {
			if c.sess, err = openSession(c.path); err != nil {
				return err
			}
		}

		c.nextID++
		resp, err = c.sess.roundTrip(Request{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: raw})
		if err == nil {
			break
		}
		_ = c.sess.conn.Close()
		c.sess = nil
		if !reused || attempt > 0 {
			return err
		}
	}

	if resp.Error != nil {
		return resp.Error
	}
	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// Status returns the device snapshot.
func (c *Client) Status() (model.Status, error) {
	var st model.Status
	err := c.call("Status", struct{}{}, &st)
	return st, err
}

// UpdateSlug asks the device to switch markets.
func (c *Client) UpdateSlug(slug string) (model.SlugResult, error) {
	var res model.SlugResult
	err := c.call("UpdateSlug", updateSlugParams{Slug: slug}, &res)
	return res, err
}
