package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the device controller to local tools such as
// the dashboard. One JSON object per line in each direction.
//
//   Method        Params             Result
//   ──────────    ───────────────    ─────────────────
//   Status        (none)             model.Status
//   UpdateSlug    {Slug: string}     model.SlugResult
//
// A rejected slug is a successful call whose result has success=false.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (controller stopped)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// updateSlugParams are the UpdateSlug params.
type updateSlugParams struct {
	Slug string
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

const (
	codeParse          = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeApplication    = -32000
)

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/needle/needle.sock, falling back to
// ~/.local/state/needle/needle.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "needle", "needle.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/needle.sock"
	}
	return filepath.Join(home, ".local", "state", "needle", "needle.sock")
}
