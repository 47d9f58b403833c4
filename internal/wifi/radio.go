// Package wifi owns WiFi association, access-point mode and the captive DNS
// responder that goes with it.
package wifi

import "context"

// LinkStatus is the station-side association state reported by a radio.
type LinkStatus int

const (
	LinkDown LinkStatus = iota
	LinkConnecting
	LinkUp
)

func (s LinkStatus) String() string {
	switch s {
	case LinkUp:
		return "up"
	case LinkConnecting:
		return "connecting"
	default:
		return "down"
	}
}

// Radio is the narrow driver contract the Manager needs from the WiFi hardware.
// Join must return promptly; the Manager polls Status for the outcome.
type Radio interface {
	Disconnect(ctx context.Context) error
	Join(ctx context.Context, ssid, password, hostname string) error
	Status(ctx context.Context) (LinkStatus, error)
	LocalIP(ctx context.Context) (string, error)
	StartAP(ctx context.Context, ssid string) (ip string, err error)
	StopAP(ctx context.Context) error
}
