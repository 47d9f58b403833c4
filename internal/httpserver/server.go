package httpserver

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/electionneedle/needle/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Status page auto-refresh period.
const statusRefresh = 5 * time.Second

// Device is the controller contract required by the HTTP surface.
type Device interface {
	Status(ctx context.Context) (model.Status, error)
	Configure(ctx context.Context, ssid, password string) (model.ConfigureResult, error)
	UpdateSlug(ctx context.Context, slug string) (model.SlugResult, error)
}

// statusResponse is the /status payload.
type statusResponse struct {
	Probability float64 `json:"probability"`
	Angle       int     `json:"angle"`
	Slug        string  `json:"slug"`
	IP          string  `json:"ip"`
}

// Server serves the configuration portal and the status page.
type Server struct {
	addr     string
	device   Device
	server   *http.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewServer creates a new HTTP server for dev.
func NewServer(addr string, dev Device) *Server {
	if addr == "" {
		addr = ":80"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		device: dev,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r, err := s.router()
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// POST /configure can block for the whole WiFi connect timeout.
		WriteTimeout: 60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("httpserver: serve")
		}
	}()
	log.WithField("addr", listener.Addr().String()).Info("httpserver: listening")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server. In-flight replies are flushed.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if s.server == nil {
			s.cancel()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.server.Shutdown(ctx)
		s.cancel()
	})
	return err
}

func (s *Server) router() (*gin.Engine, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("httpserver: parse templates: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.handleIndex)
	r.POST("/configure", s.handleConfigure)
	r.GET("/status", s.handleStatus)
	r.POST("/update-slug", s.handleUpdateSlug)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(s.handleNotFound)

	return r, nil
}

// currentStatus fetches the device snapshot, replying 503 when the controller
// is not serving requests.
func (s *Server) currentStatus(c *gin.Context) (model.Status, bool) {
	st, err := s.device.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "device unavailable"})
		return st, false
	}
	return st, true
}

// wrongMode answers a route that belongs to the other mode: the captive
// redirect while configuring, 404 otherwise.
func (s *Server) wrongMode(c *gin.Context, st model.Status) {
	if st.Mode == model.ModeConfig {
		target := "http://" + st.APAddress + "/"
		if st.APAddress == "" {
			target = "/"
		}
		c.Redirect(http.StatusFound, target)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
}

func (s *Server) handleIndex(c *gin.Context) {
	st, ok := s.currentStatus(c)
	if !ok {
		return
	}

	if st.Mode == model.ModeConfig {
		c.HTML(http.StatusOK, "config.html", nil)
		return
	}
	c.HTML(http.StatusOK, "status.html", gin.H{
		"Slug":          st.Slug,
		"Percent":       fmt.Sprintf("%.1f%%", st.Probability*100),
		"Angle":         st.Angle,
		"ExampleSlug":   model.DefaultSlug,
		"RefreshMillis": statusRefresh.Milliseconds(),
	})
}

func (s *Server) handleConfigure(c *gin.Context) {
	st, ok := s.currentStatus(c)
	if !ok {
		return
	}
	if st.Mode != model.ModeConfig {
		s.wrongMode(c, st)
		return
	}

	res, err := s.device.Configure(c.Request.Context(), c.PostForm("ssid"), c.PostForm("password"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "device unavailable"})
		return
	}
	if !res.Success {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleStatus(c *gin.Context) {
	st, ok := s.currentStatus(c)
	if !ok {
		return
	}
	if st.Mode != model.ModePolling {
		s.wrongMode(c, st)
		return
	}

	c.JSON(http.StatusOK, statusResponse{
		Probability: st.Probability,
		Angle:       st.Angle,
		Slug:        st.Slug,
		IP:          st.IP,
	})
}

func (s *Server) handleUpdateSlug(c *gin.Context) {
	st, ok := s.currentStatus(c)
	if !ok {
		return
	}
	if st.Mode != model.ModePolling {
		s.wrongMode(c, st)
		return
	}

	res, err := s.device.UpdateSlug(c.Request.Context(), c.PostForm("slug"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "device unavailable"})
		return
	}
	if !res.Success {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleNotFound(c *gin.Context) {
	st, ok := s.currentStatus(c)
	if !ok {
		return
	}
	s.wrongMode(c, st)
}
