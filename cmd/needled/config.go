package main

import (
	"time"

	"github.com/electionneedle/needle/internal/model"
)

const (
	defaultUpdateInterval    = model.DefaultUpdateInterval
	defaultChangeThreshold   = model.DefaultChangeThreshold
	defaultConnectTimeout    = model.DefaultConnectTimeout
	defaultAPITimeout        = 10 * time.Second
	defaultWiFiPollInterval  = 500 * time.Millisecond
	defaultWiFiSettleDelay   = time.Second
	defaultLinkCheckInterval = time.Second
	defaultRestartDelay      = time.Second
	defaultHTTPAddr          = ":80"
	defaultDNSAddr           = ":53"
	defaultWiFiDriver        = "nmcli"
	defaultWiFiInterface     = "wlan0"
	defaultServoBaud         = 9600
	defaultServoMinPulse     = 500 * time.Microsecond
	defaultServoMaxPulse     = 2400 * time.Microsecond
	defaultLogLevel          = "info"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the daemon entrypoint.
type appConfig struct {
	DBPath          string        `mapstructure:"db-path" yaml:"db-path"`
	PrefsNamespace  string        `mapstructure:"prefs-namespace" yaml:"prefs-namespace"`
	DefaultSlug     string        `mapstructure:"default-slug" yaml:"default-slug"`
	APIBaseURL      string        `mapstructure:"api-base-url" yaml:"api-base-url"`
	APITimeout      time.Duration `mapstructure:"api-timeout" yaml:"api-timeout"`
	InsecureTLS     bool          `mapstructure:"insecure-tls" yaml:"insecure-tls"`
	UpdateInterval  time.Duration `mapstructure:"update-interval" yaml:"update-interval"`
	ChangeThreshold float64       `mapstructure:"change-threshold" yaml:"change-threshold"`

	WiFiTimeout       time.Duration     `mapstructure:"wifi-timeout" yaml:"wifi-timeout"`
	WiFiPollInterval  time.Duration     `mapstructure:"wifi-poll-interval" yaml:"wifi-poll-interval"`
	WiFiSettleDelay   time.Duration     `mapstructure:"wifi-settle-delay" yaml:"wifi-settle-delay"`
	LinkCheckInterval time.Duration     `mapstructure:"link-check-interval" yaml:"link-check-interval"`
	RestartDelay      time.Duration     `mapstructure:"restart-delay" yaml:"restart-delay"`
	Hostname          string            `mapstructure:"hostname" yaml:"hostname"`
	APSSID            string            `mapstructure:"ap-ssid" yaml:"ap-ssid"`
	WiFiDriver        string            `mapstructure:"wifi-driver" yaml:"wifi-driver"`
	WiFiInterface     string            `mapstructure:"wifi-interface" yaml:"wifi-interface"`
	SimNetworks       map[string]string `mapstructure:"sim-networks" yaml:"sim-networks,omitempty"`
	SimJoinDelay      time.Duration     `mapstructure:"sim-join-delay" yaml:"sim-join-delay"`

	HTTPAddr    string `mapstructure:"http-addr" yaml:"http-addr"`
	DNSAddr     string `mapstructure:"dns-addr" yaml:"dns-addr"`
	MDNSEnabled bool   `mapstructure:"mdns-enabled" yaml:"mdns-enabled"`
	SocketPath  string `mapstructure:"socket-path" yaml:"socket-path"`

	ServoPort     string        `mapstructure:"servo-port" yaml:"servo-port"`
	ServoBaud     int           `mapstructure:"servo-baud" yaml:"servo-baud"`
	ServoChannel  int           `mapstructure:"servo-channel" yaml:"servo-channel"`
	ServoMinPulse time.Duration `mapstructure:"servo-min-pulse" yaml:"servo-min-pulse"`
	ServoMaxPulse time.Duration `mapstructure:"servo-max-pulse" yaml:"servo-max-pulse"`
	MinAngle      int           `mapstructure:"min-angle" yaml:"min-angle"`
	MaxAngle      int           `mapstructure:"max-angle" yaml:"max-angle"`
	DefaultAngle  int           `mapstructure:"default-angle" yaml:"default-angle"`

	LogLevel   string `mapstructure:"log-level" yaml:"log-level"`
	LogFile    string `mapstructure:"log-file" yaml:"log-file"`
	ConfigPath string `mapstructure:"-" yaml:"-"` // not from config file
}
