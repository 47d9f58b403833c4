package model

import "time"

// Shared defaults used by both the daemon and the dashboard binaries.
const (
	DefaultSlug             = "will-trump-win-the-2024-election"
	DefaultProbability      = 0.5
	DefaultUpdateInterval   = 5 * time.Second
	DefaultChangeThreshold  = 0.01
	DefaultConnectTimeout   = 20 * time.Second
	DefaultHostname         = "electionneedle"
	DefaultAPSSID           = "ElectionNeedleConfig"
	DefaultAPIBaseURL       = "https://api.manifold.markets/v0/slug/"
	DefaultPrefsNamespace   = "wifi-config"
	DefaultMinAngle         = 180
	DefaultMaxAngle         = 0
	DefaultAngle            = 90
	DefaultDashboardRefresh = 2 * time.Second
)
