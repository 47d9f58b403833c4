// Package device implements the needle's mode state machine.
//
// A Controller owns the DeviceState and mutates it only from the goroutine
// running Run. Transports (HTTP, socket RPC) hand work to that goroutine and
// wait for the reply, so handler invocations and timer ticks are strictly
// serialized and the state needs no locking.
package device

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/electionneedle/needle/internal/actuator"
	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/needle"
	"github.com/electionneedle/needle/internal/prefs"
	"github.com/electionneedle/needle/internal/wifi"
)

var (
	// ErrRestart is returned by Run after accepted credentials; the caller
	// tears everything down and runs the boot sequence again.
	ErrRestart = errors.New("device: restart requested")
	// ErrStopped is returned to callers once the run loop has exited.
	ErrStopped = errors.New("device: controller stopped")
)

const (
	defaultTickInterval      = 100 * time.Millisecond
	defaultLinkCheckInterval = time.Second
	defaultRestartDelay      = time.Second
	defaultHTTPPort          = 80

	// Deltas within this distance of the threshold count as equal to it.
	thresholdEpsilon = 1e-9
)

// Store persists the credentials and market slug.
type Store interface {
	Load(defaultSlug string) (prefs.Record, error)
	SaveCredentials(c model.Credentials) error
	SaveSlug(slug string) error
}

// Fetcher reads the current market probability.
type Fetcher interface {
	FetchProbability(ctx context.Context, slug string) (float64, error)
}

// Connectivity is the WiFi side of the device.
type Connectivity interface {
	TryConnect(ctx context.Context, creds model.Credentials, timeout time.Duration) wifi.Result
	StartAccessPoint(ctx context.Context) error
	StopAccessPoint(ctx context.Context)
	LinkUp(ctx context.Context) bool
	LocalIP(ctx context.Context) string
	APAddress() string
}

// Advertiser publishes the web interface on the local network.
type Advertiser interface {
	Advertise(hostname string, port int) error
	Shutdown()
}

// Config holds the controller's timing and presentation constants.
type Config struct {
	DefaultSlug       string
	UpdateInterval    time.Duration
	ChangeThreshold   float64
	ConnectTimeout    time.Duration
	LinkCheckInterval time.Duration
	TickInterval      time.Duration
	RestartDelay      time.Duration
	Hostname          string
	HTTPPort          int
	DefaultAngle      int
	Mapper            needle.Mapper
	Logger            *log.Entry
}

// Deps are the collaborators a Controller drives. Advertiser may be nil.
type Deps struct {
	Store      Store
	Fetcher    Fetcher
	Conn       Connectivity
	Actuator   actuator.Actuator
	Advertiser Advertiser
}

type request struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

// Controller is the device state machine.
type Controller struct {
	cfg  Config
	deps Deps
	log  *log.Entry
	now  func() time.Time

	// Owned by the run loop.
	state         model.DeviceState
	ip            string
	lastLinkCheck time.Time
	restart       bool
	pollNow       bool

	requests chan request
	done     chan struct{}
}

// New builds a controller. Zero config values fall back to the device defaults.
func New(cfg Config, deps Deps) *Controller {
	if cfg.DefaultSlug == "" {
		cfg.DefaultSlug = model.DefaultSlug
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = model.DefaultUpdateInterval
	}
	if cfg.ChangeThreshold <= 0 {
		cfg.ChangeThreshold = model.DefaultChangeThreshold
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = model.DefaultConnectTimeout
	}
	if cfg.LinkCheckInterval <= 0 {
		cfg.LinkCheckInterval = defaultLinkCheckInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.RestartDelay < 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.Hostname == "" {
		cfg.Hostname = model.DefaultHostname
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultHTTPPort
	}
	if cfg.Mapper == (needle.Mapper{}) {
		cfg.Mapper = needle.DefaultMapper()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	if deps.Actuator == nil {
		deps.Actuator = actuator.NewLogActuator()
	}

	return &Controller{
		cfg:      cfg,
		deps:     deps,
		log:      logger,
		now:      time.Now,
		state:    model.NewDeviceState(),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
}

// Run executes the boot sequence and then services requests and timers until
// ctx is cancelled or a restart is required. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	if err := c.boot(ctx); err != nil {
		return err
	}
	defer c.teardown()

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.tick(ctx, c.now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-c.requests:
			req.fn(ctx)
			close(req.done)

			if c.restart {
				c.log.WithField("delay", c.cfg.RestartDelay).Info("device: credentials accepted, restarting")
				sleepCtx(ctx, c.cfg.RestartDelay)
				return ErrRestart
			}
			if c.pollNow {
				c.pollNow = false
				c.poll(ctx)
			}

		case now := <-ticker.C:
			c.tick(ctx, now)
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func(ctx context.Context)) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case c.requests <- req:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

func (c *Controller) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.deps.Advertiser != nil {
		c.deps.Advertiser.Shutdown()
	}
	c.deps.Conn.StopAccessPoint(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
