package model

import "time"

// Mode is the device's top-level operating mode.
type Mode int

const (
	// ModeConfig serves the captive configuration portal from the device's own access point.
	ModeConfig Mode = iota
	// ModePolling is associated with a client network and tracks the market.
	ModePolling
)

func (m Mode) String() string {
	switch m {
	case ModeConfig:
		return "config"
	case ModePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// MarshalText lets Mode travel as "config"/"polling" in JSON payloads.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses the textual mode form.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "polling":
		*m = ModePolling
	default:
		*m = ModeConfig
	}
	return nil
}

// Credentials is a WiFi network name and its secret.
type Credentials struct {
	SSID     string
	Password string
}

// DeviceState is the single mutable record owned by the device controller's run loop.
//
// Mode == ModePolling implies Credentials != nil and that the link was last seen up.
// Probability always stays within [0,1].
type DeviceState struct {
	Credentials *Credentials
	Slug        string
	Probability float64
	Mode        Mode
	LastPoll    time.Time
}

// NewDeviceState returns the power-on state.
func NewDeviceState() DeviceState {
	return DeviceState{
		Slug:        DefaultSlug,
		Probability: DefaultProbability,
		Mode:        ModeConfig,
	}
}
