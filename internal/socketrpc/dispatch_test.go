package socketrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/electionneedle/needle/internal/model"
)

// stubDevice returns fixed values for dispatch unit testing.
type stubDevice struct {
	err error
}

func (d *stubDevice) Status(context.Context) (model.Status, error) {
	return model.Status{Probability: 0.73, Angle: 49, Slug: "my-market", IP: "192.168.1.50", Mode: model.ModePolling}, d.err
}

func (d *stubDevice) UpdateSlug(_ context.Context, slug string) (model.SlugResult, error) {
	if slug == "" {
		return model.SlugResult{Message: "Missing slug"}, d.err
	}
	return model.SlugResult{Success: true, Message: "Market updated successfully"}, d.err
}

func newTestDispatcher(err error) *Server {
	return &Server{device: &stubDevice{err: err}}
}

func TestDispatch_AllMethods(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher(nil)

	tests := []struct {
		method string
		params string
	}{
		{"Status", `{}`},
		{"Status", ``},
		{"UpdateSlug", `{"Slug":"fed-cuts-rates"}`},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()
			req := Request{
				JSONRPC: "2.0",
				ID:      1,
				Method:  tt.method,
				Params:  json.RawMessage(tt.params),
			}
			resp := srv.dispatch(context.Background(), req)
			if resp.Error != nil {
				t.Fatalf("dispatch(%s) error: %s", tt.method, resp.Error.Message)
			}
			if resp.Result == nil {
				t.Fatalf("dispatch(%s) returned nil result", tt.method)
			}
			if resp.JSONRPC != "2.0" {
				t.Errorf("JSONRPC = %q, want 2.0", resp.JSONRPC)
			}
			if resp.ID != 1 {
				t.Errorf("ID = %d, want 1", resp.ID)
			}
		})
	}
}

func TestDispatch_StatusPayload(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher(nil)

	resp := srv.dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 3, Method: "Status"})
	if resp.Error != nil {
		t.Fatalf("dispatch error: %s", resp.Error.Message)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(resp.Result, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["mode"] != "polling" || body["slug"] != "my-market" {
		t.Errorf("status payload = %v", body)
	}
}

func TestDispatch_RejectedSlugIsAResult(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher(nil)

	resp := srv.dispatch(context.Background(), Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "UpdateSlug",
		Params:  json.RawMessage(`{"Slug":""}`),
	})
	if resp.Error != nil {
		t.Fatalf("dispatch error: %s", resp.Error.Message)
	}
	var res model.SlugResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Success {
		t.Errorf("result = %+v, want failure", res)
	}
}

func TestDispatch_MethodNotFound(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher(nil)

	resp := srv.dispatch(context.Background(), Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "Configure",
		Params:  json.RawMessage(`{}`),
	})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != codeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, codeMethodNotFound)
	}
}

func TestDispatch_InvalidParams(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher(nil)

	for _, params := range []string{`not json`, ``} {
		resp := srv.dispatch(context.Background(), Request{
			JSONRPC: "2.0",
			ID:      2,
			Method:  "UpdateSlug",
			Params:  json.RawMessage(params),
		})
		if resp.Error == nil {
			t.Fatalf("params %q: expected error", params)
		}
		if resp.Error.Code != codeInvalidParams {
			t.Errorf("params %q: error code = %d, want %d", params, resp.Error.Code, codeInvalidParams)
		}
	}
}

func TestDispatch_ControllerStopped(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher(errors.New("device: controller stopped"))

	resp := srv.dispatch(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "Status"})
	if resp.Error == nil {
		t.Fatal("expected application error")
	}
	if resp.Error.Code != codeApplication {
		t.Errorf("error code = %d, want %d", resp.Error.Code, codeApplication)
	}
}

func TestDispatch_PreservesRequestID(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher(nil)

	for _, id := range []int{0, 1, 42, 9999} {
		resp := srv.dispatch(context.Background(), Request{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "Status",
		})
		if resp.ID != id {
			t.Errorf("request ID %d: response ID = %d", id, resp.ID)
		}
	}
}
