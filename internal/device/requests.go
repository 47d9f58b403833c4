package device

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/electionneedle/needle/internal/metrics"
	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/wifi"
)

// Messages returned to the portal and status page.
const (
	MsgMissingSSID    = "Missing SSID"
	MsgConnectFailed  = "Could not connect to WiFi. Please check credentials."
	MsgNotInConfig    = "Device is already connected to WiFi."
	MsgSaveFailed     = "Could not save settings."
	MsgMissingSlug    = "Missing slug"
	MsgInvalidSlug    = "Invalid market slug. Please check the URL and try again."
	MsgNotPolling     = "Device is not connected to WiFi."
	MsgSlugUpdated    = "Market updated successfully"
	mdnsHostnameLocal = ".local"
)

// Status returns a snapshot of the device for the status endpoint.
func (c *Controller) Status(ctx context.Context) (model.Status, error) {
	var st model.Status
	err := c.do(ctx, func(context.Context) {
		st = c.snapshot()
	})
	return st, err
}

func (c *Controller) snapshot() model.Status {
	st := model.Status{
		Probability: c.state.Probability,
		Angle:       c.cfg.Mapper.Angle(c.state.Probability),
		Slug:        c.state.Slug,
		IP:          c.ip,
		Mode:        c.state.Mode,
		Hostname:    c.cfg.Hostname + mdnsHostnameLocal,
	}
	if c.state.Mode == model.ModeConfig {
		st.APAddress = c.deps.Conn.APAddress()
	}
	return st
}

// Configure tries the submitted credentials. On success they are persisted and
// the controller restarts once the reply has been delivered. On failure the
// access point is re-armed and nothing is stored.
func (c *Controller) Configure(ctx context.Context, ssid, password string) (model.ConfigureResult, error) {
	var res model.ConfigureResult
	err := c.do(ctx, func(ctx context.Context) {
		res = c.configure(ctx, ssid, password)
	})
	return res, err
}

func (c *Controller) configure(ctx context.Context, ssid, password string) model.ConfigureResult {
	if strings.TrimSpace(ssid) == "" {
		return model.ConfigureResult{Message: MsgMissingSSID}
	}
	if c.state.Mode != model.ModeConfig {
		return model.ConfigureResult{Message: MsgNotInConfig}
	}

	logger := c.log.WithField("ssid", ssid)
	creds := model.Credentials{SSID: ssid, Password: password}

	if c.connect(ctx, creds) != wifi.Connected {
		logger.Warn("device: submitted credentials failed to connect")
		c.armAccessPoint(ctx)
		return model.ConfigureResult{Message: MsgConnectFailed}
	}

	if err := c.deps.Store.SaveCredentials(creds); err != nil {
		logger.WithError(err).Error("device: persist credentials")
		c.armAccessPoint(ctx)
		return model.ConfigureResult{Message: MsgSaveFailed}
	}

	c.state.Credentials = &creds
	c.ip = c.deps.Conn.LocalIP(ctx)
	c.restart = true
	metrics.IncRestart()

	logger.WithField("ip", c.ip).Info("device: credentials accepted")
	return model.ConfigureResult{
		Success:  true,
		IP:       c.ip,
		Hostname: c.cfg.Hostname + mdnsHostnameLocal,
	}
}

// UpdateSlug validates slug against the market API and, if it resolves,
// persists it and schedules an immediate poll after the reply.
func (c *Controller) UpdateSlug(ctx context.Context, slug string) (model.SlugResult, error) {
	var res model.SlugResult
	err := c.do(ctx, func(ctx context.Context) {
		res = c.updateSlug(ctx, slug)
	})
	return res, err
}

func (c *Controller) updateSlug(ctx context.Context, slug string) model.SlugResult {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return model.SlugResult{Message: MsgMissingSlug}
	}
	if c.state.Mode != model.ModePolling {
		return model.SlugResult{Message: MsgNotPolling}
	}

	logger := c.log.WithFields(log.Fields{"slug": slug, "previous": c.state.Slug})

	if _, err := c.deps.Fetcher.FetchProbability(ctx, slug); err != nil {
		metrics.IncSlugChange("rejected")
		logger.WithError(err).Warn("device: market slug rejected")
		return model.SlugResult{Message: MsgInvalidSlug}
	}

	if err := c.deps.Store.SaveSlug(slug); err != nil {
		metrics.IncSlugChange("error")
		logger.WithError(err).Error("device: persist slug")
		return model.SlugResult{Message: MsgSaveFailed}
	}

	c.state.Slug = slug
	c.pollNow = true
	metrics.IncSlugChange("accepted")
	logger.Info("device: market slug updated")
	return model.SlugResult{Success: true, Message: MsgSlugUpdated}
}
