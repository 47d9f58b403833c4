package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/electionneedle/needle/internal/metrics"
	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/wifi"
)

// boot loads the persisted record and picks the initial mode. Re-running it
// against the same store reproduces the same connect attempt.
func (c *Controller) boot(ctx context.Context) error {
	rec, err := c.deps.Store.Load(c.cfg.DefaultSlug)
	if err != nil {
		return fmt.Errorf("device: load preferences: %w", err)
	}

	c.state = model.NewDeviceState()
	c.state.Slug = rec.Slug
	c.state.Credentials = rec.Credentials()
	metrics.SetProbability(c.state.Probability)
	c.moveNeedle(c.cfg.DefaultAngle)

	c.log.WithFields(log.Fields{
		"slug":        c.state.Slug,
		"credentials": c.state.Credentials != nil,
	}).Info("device: booting")

	if c.state.Credentials != nil && c.connect(ctx, *c.state.Credentials) == wifi.Connected {
		c.enterPolling(ctx)
		return nil
	}
	c.enterConfig(ctx)
	return nil
}

func (c *Controller) connect(ctx context.Context, creds model.Credentials) wifi.Result {
	res := c.deps.Conn.TryConnect(ctx, creds, c.cfg.ConnectTimeout)
	metrics.IncConnect(res.String())
	return res
}

func (c *Controller) enterPolling(ctx context.Context) {
	c.state.Mode = model.ModePolling
	c.state.LastPoll = time.Time{}
	c.lastLinkCheck = c.now()
	c.ip = c.deps.Conn.LocalIP(ctx)
	metrics.SetMode(c.state.Mode.String())

	c.log.WithFields(log.Fields{"mode": c.state.Mode, "ip": c.ip}).Info("device: wifi connected")

	if c.deps.Advertiser != nil {
		if err := c.deps.Advertiser.Advertise(c.cfg.Hostname, c.cfg.HTTPPort); err != nil {
			c.log.WithError(err).Warn("device: mdns failed to start")
		}
	}
}

func (c *Controller) enterConfig(ctx context.Context) {
	c.state.Mode = model.ModeConfig
	c.ip = ""
	metrics.SetMode(c.state.Mode.String())

	if c.deps.Advertiser != nil {
		c.deps.Advertiser.Shutdown()
	}
	c.armAccessPoint(ctx)
	c.log.WithField("mode", c.state.Mode).Info("device: configuration portal active")
}

func (c *Controller) armAccessPoint(ctx context.Context) {
	if err := c.deps.Conn.StartAccessPoint(ctx); err != nil {
		c.log.WithError(err).Error("device: access point failed to start")
	}
}

// tick runs the periodic work of POLLING mode: link supervision, then polling.
func (c *Controller) tick(ctx context.Context, now time.Time) {
	if c.state.Mode != model.ModePolling {
		return
	}

	if now.Sub(c.lastLinkCheck) >= c.cfg.LinkCheckInterval {
		c.lastLinkCheck = now
		if !c.deps.Conn.LinkUp(ctx) {
			c.recoverLink(ctx)
			if c.state.Mode != model.ModePolling {
				return
			}
		}
	}

	if c.state.LastPoll.IsZero() || now.Sub(c.state.LastPoll) >= c.cfg.UpdateInterval {
		c.poll(ctx)
	}
}

// recoverLink makes one reconnect attempt with the stored credentials and
// falls back to the configuration portal when it fails.
func (c *Controller) recoverLink(ctx context.Context) {
	c.log.Warn("device: wifi disconnected, attempting reconnection")

	if c.state.Credentials != nil && c.connect(ctx, *c.state.Credentials) == wifi.Connected {
		c.ip = c.deps.Conn.LocalIP(ctx)
		c.lastLinkCheck = c.now()
		c.log.WithField("ip", c.ip).Info("device: wifi reconnected")
		return
	}

	c.log.Warn("device: reconnection failed, switching to config mode")
	c.enterConfig(ctx)
}

// poll fetches the probability once. Failures leave the state untouched.
func (c *Controller) poll(ctx context.Context) {
	p, err := c.deps.Fetcher.FetchProbability(ctx, c.state.Slug)
	c.state.LastPoll = c.now()

	if err == nil && (math.IsNaN(p) || p < 0 || p > 1) {
		err = fmt.Errorf("device: %w: probability %v out of range", model.ErrParse, p)
	}
	if err != nil {
		result := "network_error"
		if errors.Is(err, model.ErrParse) {
			result = "parse_error"
		}
		metrics.IncPoll(result)
		c.log.WithError(err).WithField("slug", c.state.Slug).Debug("device: poll skipped")
		return
	}

	if !c.significant(p) {
		metrics.IncPoll("unchanged")
		return
	}

	c.state.Probability = p
	metrics.IncPoll("updated")
	metrics.SetProbability(p)
	c.moveNeedle(c.cfg.Mapper.Angle(p))
	c.log.WithFields(log.Fields{"slug": c.state.Slug, "probability": p}).Info("device: updated probability")
}

// significant reports whether p differs from the current value by strictly
// more than the change threshold.
func (c *Controller) significant(p float64) bool {
	return math.Abs(p-c.state.Probability) > c.cfg.ChangeThreshold+thresholdEpsilon
}

func (c *Controller) moveNeedle(angle int) {
	if err := c.deps.Actuator.SetAngle(angle); err != nil {
		c.log.WithError(err).WithField("angle", angle).Warn("device: actuator write failed")
		return
	}
	metrics.SetAngle(angle)
}
