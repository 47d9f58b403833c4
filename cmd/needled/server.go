package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/electionneedle/needle/internal/actuator"
	"github.com/electionneedle/needle/internal/device"
	"github.com/electionneedle/needle/internal/httpserver"
	"github.com/electionneedle/needle/internal/market"
	"github.com/electionneedle/needle/internal/mdns"
	"github.com/electionneedle/needle/internal/needle"
	"github.com/electionneedle/needle/internal/prefs"
	"github.com/electionneedle/needle/internal/socketrpc"
	"github.com/electionneedle/needle/internal/wifi"
)

// daemon bundles the long-lived collaborators shared by every boot cycle.
type daemon struct {
	cfg        appConfig
	store      *prefs.Namespace
	fetcher    *market.Client
	conn       *wifi.Manager
	actuator   actuator.Actuator
	advertiser device.Advertiser
}

// runServer brings up the device and re-runs the boot sequence whenever the
// controller asks for a restart.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger(cfg)
	defer cleanupLogger()

	store, err := prefs.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}
	defer store.Close()

	act, err := openActuator(cfg)
	if err != nil {
		return fmt.Errorf("failed to open servo: %w", err)
	}
	defer act.Close()

	radio, err := openRadio(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize wifi: %w", err)
	}

	rt := &daemon{
		cfg:   cfg,
		store: prefs.NewNamespace(store, cfg.PrefsNamespace),
		fetcher: market.NewClient(market.Config{
			BaseURL:     cfg.APIBaseURL,
			Timeout:     cfg.APITimeout,
			InsecureTLS: cfg.InsecureTLS,
			UserAgent:   "needled/" + version,
		}),
		conn: wifi.NewManager(radio, wifi.Config{
			APSSID:       cfg.APSSID,
			Hostname:     cfg.Hostname,
			PollInterval: cfg.WiFiPollInterval,
			SettleDelay:  cfg.WiFiSettleDelay,
			DNSAddr:      cfg.DNSAddr,
		}),
		actuator: act,
	}
	// Left nil when disabled so the controller skips advertising.
	if cfg.MDNSEnabled {
		rt.advertiser = mdns.NewAdvertiser()
	}

	// Set up context and signal handling before the boot loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg)

	for {
		err := rt.runOnce(ctx)
		if errors.Is(err, device.ErrRestart) {
			continue
		}
		signal.Stop(sigCh)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// runOnce performs one boot cycle: controller, HTTP portal and socket RPC,
// all torn down together when the controller returns.
func (rt *daemon) runOnce(ctx context.Context) error {
	cfg := rt.cfg
	logger := log.WithField("boot", uuid.NewString())

	port, err := httpPort(cfg.HTTPAddr)
	if err != nil {
		return err
	}

	ctrl := device.New(device.Config{
		DefaultSlug:       cfg.DefaultSlug,
		UpdateInterval:    cfg.UpdateInterval,
		ChangeThreshold:   cfg.ChangeThreshold,
		ConnectTimeout:    cfg.WiFiTimeout,
		LinkCheckInterval: cfg.LinkCheckInterval,
		RestartDelay:      cfg.RestartDelay,
		Hostname:          cfg.Hostname,
		HTTPPort:          port,
		DefaultAngle:      cfg.DefaultAngle,
		Mapper:            needle.Mapper{MinAngle: cfg.MinAngle, MaxAngle: cfg.MaxAngle},
		Logger:            logger,
	}, device.Deps{
		Store:      rt.store,
		Fetcher:    rt.fetcher,
		Conn:       rt.conn,
		Actuator:   rt.actuator,
		Advertiser: rt.advertiser,
	})

	apiServer := httpserver.NewServer(cfg.HTTPAddr, ctrl)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	defer apiServer.Stop()

	// Socket RPC is a convenience for the dashboard; the device runs without it.
	sockServer := socketrpc.NewServer(cfg.SocketPath, ctrl)
	if err := sockServer.Start(); err != nil {
		logger.WithError(err).Warn("needled: socket server disabled")
	} else {
		defer sockServer.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	err = g.Wait()
	if errors.Is(err, device.ErrRestart) {
		logger.Info("needled: rebooting")
	}
	return err
}

func openActuator(cfg appConfig) (actuator.Actuator, error) {
	if cfg.ServoPort == "" {
		log.Info("needled: no servo-port configured, logging needle moves only")
		return actuator.NewLogActuator(), nil
	}
	return actuator.OpenSerialServo(actuator.SerialConfig{
		Port:     cfg.ServoPort,
		BaudRate: cfg.ServoBaud,
		Channel:  cfg.ServoChannel,
		MinPulse: cfg.ServoMinPulse,
		MaxPulse: cfg.ServoMaxPulse,
	})
}

func openRadio(cfg appConfig) (wifi.Radio, error) {
	if cfg.WiFiDriver == "sim" {
		log.WithField("networks", len(cfg.SimNetworks)).Info("needled: using simulated radio")
		return wifi.NewSim(cfg.SimNetworks, cfg.SimJoinDelay), nil
	}
	return wifi.NewNMCLI(cfg.WiFiInterface)
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger(cfg appConfig) func() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000000"})

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	logPath := cfg.LogFile
	if logPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.SetOutput(os.Stderr)
			return func() {}
		}
		logPath = filepath.Join(home, ".local", "state", "needle", "needle.log")
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╗╔╔═╗╔═╗╔╦╗╦  ╔═╗
    ║║║║╣ ║╣  ║║║  ║╣
    ╝╚╝╚═╝╚═╝═╩╝╩═╝╚═╝`)

	separator := dim.Render("    ─────────────────────────────────")
	row := func(mark, label, value string) string {
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Network"), "")
	lines = append(lines, row(check, "Web Portal", cyan.Render(cfg.HTTPAddr)))
	lines = append(lines, row(check, "Captive DNS", cyan.Render(cfg.DNSAddr)))
	if cfg.MDNSEnabled {
		lines = append(lines, row(check, "mDNS", cyan.Render(cfg.Hostname+".local")))
	} else {
		lines = append(lines, row(dot, "mDNS", dim.Render("disabled")))
	}
	lines = append(lines, row(check, "Unix Socket", cyan.Render(shortenPath(cfg.SocketPath))))
	lines = append(lines, row(check, "WiFi", dim.Render(cfg.WiFiDriver+" ("+cfg.APSSID+")")))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Needle"), "")
	if cfg.ServoPort != "" {
		lines = append(lines, row(check, "Servo", dim.Render(cfg.ServoPort)))
	} else {
		lines = append(lines, row(dot, "Servo", dim.Render("log only")))
	}
	lines = append(lines, row(check, "Market", dim.Render(cfg.DefaultSlug)))
	lines = append(lines, row(check, "Preferences", dim.Render(shortenPath(cfg.DBPath))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(dot, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
