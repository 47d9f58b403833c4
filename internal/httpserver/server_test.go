package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/electionneedle/needle/internal/device"
	"github.com/electionneedle/needle/internal/market"
	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/prefs"
	"github.com/electionneedle/needle/internal/wifi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDevice struct {
	mu        sync.Mutex
	status    model.Status
	err       error
	configure model.ConfigureResult
	slug      model.SlugResult
	gotSSID   string
	gotPass   string
	gotSlug   string
}

func (f *fakeDevice) Status(context.Context) (model.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

func (f *fakeDevice) Configure(_ context.Context, ssid, password string) (model.ConfigureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotSSID, f.gotPass = ssid, password
	return f.configure, f.err
}

func (f *fakeDevice) UpdateSlug(_ context.Context, slug string) (model.SlugResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotSlug = slug
	return f.slug, f.err
}

func newTestRouter(t *testing.T, dev Device) *gin.Engine {
	t.Helper()
	r, err := NewServer("", dev).router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return r
}

func configDevice() *fakeDevice {
	return &fakeDevice{status: model.Status{
		Probability: 0.5,
		Angle:       90,
		Slug:        model.DefaultSlug,
		Mode:        model.ModeConfig,
		APAddress:   "192.168.4.1",
	}}
}

func pollingDevice() *fakeDevice {
	return &fakeDevice{status: model.Status{
		Probability: 0.73,
		Angle:       49,
		Slug:        "my-market",
		IP:          "192.168.1.50",
		Mode:        model.ModePolling,
	}}
}

func do(r http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIndexServesConfigPageInConfigMode(t *testing.T) {
	r := newTestRouter(t, configDevice())

	w := do(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `id="wifiForm"`) {
		t.Errorf("config page missing wifi form: %s", w.Body.String())
	}
}

func TestIndexServesStatusPageInPollingMode(t *testing.T) {
	r := newTestRouter(t, pollingDevice())

	w := do(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"my-market", "73.0%", ">49<"} {
		if !strings.Contains(body, want) {
			t.Errorf("status page missing %q", want)
		}
	}
}

func TestCaptiveRedirectInConfigMode(t *testing.T) {
	r := newTestRouter(t, configDevice())

	for _, path := range []string{"/generate_204", "/hotspot-detect.html", "/status"} {
		w := do(r, http.MethodGet, path, nil)
		if w.Code != http.StatusFound {
			t.Errorf("GET %s status = %d, want 302", path, w.Code)
			continue
		}
		if loc := w.Header().Get("Location"); loc != "http://192.168.4.1/" {
			t.Errorf("GET %s Location = %q", path, loc)
		}
	}
}

func TestUnknownPathNotFoundInPollingMode(t *testing.T) {
	r := newTestRouter(t, pollingDevice())

	for _, path := range []string{"/generate_204", "/nope"} {
		if w := do(r, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
	}
	form := url.Values{"ssid": {"x"}}
	if w := do(r, http.MethodPost, "/configure", form); w.Code != http.StatusNotFound {
		t.Errorf("POST /configure in polling mode = %d, want 404", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	r := newTestRouter(t, pollingDevice())

	w := do(r, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if len(body) != 4 {
		t.Errorf("status fields = %v, want probability/angle/slug/ip", body)
	}
	if body["probability"] != 0.73 || body["angle"] != float64(49) || body["slug"] != "my-market" || body["ip"] != "192.168.1.50" {
		t.Errorf("status body = %v", body)
	}
}

func TestConfigureForwardsForm(t *testing.T) {
	dev := configDevice()
	dev.configure = model.ConfigureResult{Success: true, IP: "192.168.1.50", Hostname: "electionneedle.local"}
	r := newTestRouter(t, dev)

	w := do(r, http.MethodPost, "/configure", url.Values{"ssid": {"home"}, "password": {"secret"}})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /configure = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if dev.gotSSID != "home" || dev.gotPass != "secret" {
		t.Errorf("forwarded ssid/password = %q/%q", dev.gotSSID, dev.gotPass)
	}

	var res model.ConfigureResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res != dev.configure {
		t.Errorf("result = %+v, want %+v", res, dev.configure)
	}
}

func TestConfigureFailureIsBadRequest(t *testing.T) {
	dev := configDevice()
	dev.configure = model.ConfigureResult{Message: device.MsgMissingSSID}
	r := newTestRouter(t, dev)

	w := do(r, http.MethodPost, "/configure", url.Values{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /configure = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), device.MsgMissingSSID) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestUpdateSlugResults(t *testing.T) {
	tests := []struct {
		name     string
		result   model.SlugResult
		wantCode int
	}{
		{"accepted", model.SlugResult{Success: true, Message: device.MsgSlugUpdated}, http.StatusOK},
		{"rejected", model.SlugResult{Message: device.MsgInvalidSlug}, http.StatusBadRequest},
		{"missing", model.SlugResult{Message: device.MsgMissingSlug}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := pollingDevice()
			dev.slug = tt.result
			r := newTestRouter(t, dev)

			w := do(r, http.MethodPost, "/update-slug", url.Values{"slug": {"fed-cuts-rates"}})
			if w.Code != tt.wantCode {
				t.Fatalf("POST /update-slug = %d, want %d", w.Code, tt.wantCode)
			}
			if dev.gotSlug != "fed-cuts-rates" {
				t.Errorf("forwarded slug = %q", dev.gotSlug)
			}
		})
	}
}

func TestStoppedDeviceIsUnavailable(t *testing.T) {
	dev := pollingDevice()
	dev.err = device.ErrStopped
	r := newTestRouter(t, dev)

	if w := do(r, http.MethodGet, "/status", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, configDevice())

	w := do(r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Errorf("metrics body missing default collectors")
	}
}

func TestStartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", pollingDevice())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

// The remaining tests drive a real controller through the router, with the
// simulated radio and a local quote API.

type endToEnd struct {
	router *gin.Engine
	ctrl   *device.Controller
	ns     *prefs.Namespace
	sim    *wifi.Sim
	errc   chan error
}

func newEndToEnd(t *testing.T, creds *model.Credentials, quotes map[string]string) *endToEnd {
	t.Helper()

	api := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := quotes[strings.TrimPrefix(r.URL.Path, "/v0/slug/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(api.Close)

	store, err := prefs.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ns := prefs.NewNamespace(store, model.DefaultPrefsNamespace)
	if creds != nil {
		if err := ns.SaveCredentials(*creds); err != nil {
			t.Fatalf("SaveCredentials: %v", err)
		}
	}

	sim := wifi.NewSim(map[string]string{"home": "secret"}, 0)
	conn := wifi.NewManager(sim, wifi.Config{PollInterval: time.Millisecond, DNSAddr: "127.0.0.1:0"})

	ctrl := device.New(device.Config{
		UpdateInterval:    time.Hour,
		ConnectTimeout:    30 * time.Millisecond,
		LinkCheckInterval: time.Hour,
		TickInterval:      5 * time.Millisecond,
	}, device.Deps{
		Store:   ns,
		Fetcher: market.NewClient(market.Config{BaseURL: api.URL + "/v0/slug/", InsecureTLS: true}),
		Conn:    conn,
	})

	ctx, cancel := context.WithCancel(context.Background())
	e := &endToEnd{ctrl: ctrl, ns: ns, sim: sim, errc: make(chan error, 1)}
	stopped := make(chan struct{})
	go func() {
		e.errc <- ctrl.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
		}
	})

	e.router = newTestRouter(t, ctrl)
	return e
}

func TestEndToEndFirstBootPortal(t *testing.T) {
	e := newEndToEnd(t, nil, nil)

	if w := do(e.router, http.MethodGet, "/", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "wifiForm") {
		t.Fatalf("GET / = %d, want config page", w.Code)
	}
	if w := do(e.router, http.MethodGet, "/connecttest.txt", nil); w.Code != http.StatusFound {
		t.Fatalf("captive probe = %d, want 302", w.Code)
	}
	if e.sim.APActive() != model.DefaultAPSSID {
		t.Fatalf("AP ssid = %q", e.sim.APActive())
	}
}

func TestEndToEndWrongPassword(t *testing.T) {
	e := newEndToEnd(t, nil, nil)

	w := do(e.router, http.MethodPost, "/configure", url.Values{"ssid": {"home"}, "password": {"wrong"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /configure = %d, want 400", w.Code)
	}
	var res model.ConfigureResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Success || res.Message != device.MsgConnectFailed {
		t.Fatalf("result = %+v", res)
	}
	if w := do(e.router, http.MethodGet, "/", nil); !strings.Contains(w.Body.String(), "wifiForm") {
		t.Fatal("portal not served after failed configure")
	}
}

func TestEndToEndPollingAndSlugChange(t *testing.T) {
	quotes := map[string]string{
		model.DefaultSlug: `{"probability":0.5}`,
		"fed-cuts-rates":  `{"probability":0.8}`,
	}
	e := newEndToEnd(t, &model.Credentials{SSID: "home", Password: "secret"}, quotes)

	w := do(e.router, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", w.Code)
	}
	var st statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := statusResponse{Probability: 0.5, Angle: 90, Slug: model.DefaultSlug, IP: "192.168.1.50"}
	if st != want {
		t.Fatalf("status = %+v, want %+v", st, want)
	}

	w = do(e.router, http.MethodPost, "/update-slug", url.Values{"slug": {"no-such-market"}})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), device.MsgInvalidSlug) {
		t.Fatalf("invalid slug = %d %s", w.Code, w.Body.String())
	}

	w = do(e.router, http.MethodPost, "/update-slug", url.Values{"slug": {"fed-cuts-rates"}})
	if w.Code != http.StatusOK {
		t.Fatalf("valid slug = %d %s", w.Code, w.Body.String())
	}

	w = do(e.router, http.MethodGet, "/status", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want = statusResponse{Probability: 0.8, Angle: 36, Slug: "fed-cuts-rates", IP: "192.168.1.50"}
	if st != want {
		t.Fatalf("status after slug change = %+v, want %+v", st, want)
	}

	rec, err := e.ns.Load(model.DefaultSlug)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Slug != "fed-cuts-rates" {
		t.Fatalf("persisted slug = %q", rec.Slug)
	}
}

func TestEndToEndConfigureRestarts(t *testing.T) {
	e := newEndToEnd(t, nil, nil)

	w := do(e.router, http.MethodPost, "/configure", url.Values{"ssid": {"home"}, "password": {"secret"}})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /configure = %d %s", w.Code, w.Body.String())
	}

	select {
	case err := <-e.errc:
		if err != device.ErrRestart {
			t.Fatalf("Run = %v, want ErrRestart", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not restart")
	}

	if w := do(e.router, http.MethodGet, "/status", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /status after restart = %d, want 503", w.Code)
	}
}
