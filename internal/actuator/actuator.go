// Package actuator drives the physical needle.
package actuator

import (
	log "github.com/sirupsen/logrus"
)

// Actuator moves the needle to an absolute angle in degrees.
type Actuator interface {
	SetAngle(angle int) error
	Close() error
}

// LogActuator records angle changes without touching hardware. It is used
// when no servo controller is configured.
type LogActuator struct {
	last int
	set  bool
}

// NewLogActuator returns an actuator that only logs.
func NewLogActuator() *LogActuator {
	return &LogActuator{}
}

// SetAngle logs the requested angle.
func (a *LogActuator) SetAngle(angle int) error {
	a.last, a.set = angle, true
	log.WithField("angle", angle).Info("actuator: needle moved")
	return nil
}

// Last returns the most recent angle and whether any was set.
func (a *LogActuator) Last() (int, bool) {
	return a.last, a.set
}

// Close is a no-op.
func (a *LogActuator) Close() error { return nil }
