package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/socketrpc"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool
	var printConfig bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/needle/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("Election Needle - Device Daemon\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDBPath := filepath.Join(home, ".local", "share", "needle", "prefs.duckdb")

	v := viper.New()
	v.SetEnvPrefix("NEEDLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("prefs-namespace", model.DefaultPrefsNamespace)
	v.SetDefault("default-slug", model.DefaultSlug)
	v.SetDefault("api-base-url", model.DefaultAPIBaseURL)
	v.SetDefault("api-timeout", defaultAPITimeout)
	v.SetDefault("insecure-tls", true)
	v.SetDefault("update-interval", defaultUpdateInterval)
	v.SetDefault("change-threshold", defaultChangeThreshold)
	v.SetDefault("wifi-timeout", defaultConnectTimeout)
	v.SetDefault("wifi-poll-interval", defaultWiFiPollInterval)
	v.SetDefault("wifi-settle-delay", defaultWiFiSettleDelay)
	v.SetDefault("link-check-interval", defaultLinkCheckInterval)
	v.SetDefault("restart-delay", defaultRestartDelay)
	v.SetDefault("hostname", model.DefaultHostname)
	v.SetDefault("ap-ssid", model.DefaultAPSSID)
	v.SetDefault("wifi-driver", defaultWiFiDriver)
	v.SetDefault("wifi-interface", defaultWiFiInterface)
	v.SetDefault("sim-join-delay", 0)
	v.SetDefault("http-addr", defaultHTTPAddr)
	v.SetDefault("dns-addr", defaultDNSAddr)
	v.SetDefault("mdns-enabled", true)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("servo-port", "")
	v.SetDefault("servo-baud", defaultServoBaud)
	v.SetDefault("servo-channel", 0)
	v.SetDefault("servo-min-pulse", defaultServoMinPulse)
	v.SetDefault("servo-max-pulse", defaultServoMaxPulse)
	v.SetDefault("min-angle", model.DefaultMinAngle)
	v.SetDefault("max-angle", model.DefaultMaxAngle)
	v.SetDefault("default-angle", model.DefaultAngle)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "needle", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			cfg.ConfigPath = ""
		}
	}

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}

	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.SocketPath = expandHome(home, cfg.SocketPath)
	cfg.LogFile = expandHome(home, cfg.LogFile)

	return cfg, nil
}

func validateConfig(cfg appConfig) error {
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("invalid update-interval: %s", cfg.UpdateInterval)
	}
	if cfg.ChangeThreshold < 0 || cfg.ChangeThreshold >= 1 {
		return fmt.Errorf("invalid change-threshold: %v", cfg.ChangeThreshold)
	}
	if cfg.WiFiTimeout <= 0 {
		return fmt.Errorf("invalid wifi-timeout: %s", cfg.WiFiTimeout)
	}
	for name, angle := range map[string]int{"min-angle": cfg.MinAngle, "max-angle": cfg.MaxAngle, "default-angle": cfg.DefaultAngle} {
		if angle < 0 || angle > 180 {
			return fmt.Errorf("invalid %s: %d", name, angle)
		}
	}
	if cfg.ServoChannel < 0 || cfg.ServoChannel > 23 {
		return fmt.Errorf("invalid servo-channel: %d", cfg.ServoChannel)
	}
	if _, err := httpPort(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("invalid http-addr %q: %w", cfg.HTTPAddr, err)
	}
	switch cfg.WiFiDriver {
	case "nmcli", "sim":
	default:
		return fmt.Errorf("invalid wifi-driver: %q (want nmcli or sim)", cfg.WiFiDriver)
	}
	return nil
}

// httpPort extracts the numeric port from a listen address like ":80".
func httpPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
