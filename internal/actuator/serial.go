package actuator

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	defaultBaudRate = 9600
	defaultMinPulse = 500 * time.Microsecond
	defaultMaxPulse = 2400 * time.Microsecond

	// Pololu Maestro compact protocol "set target" command.
	cmdSetTarget = 0x84
	maxDegrees   = 180
)

// SerialConfig describes a servo controller attached to a serial port.
type SerialConfig struct {
	Port     string
	BaudRate int
	Channel  int
	MinPulse time.Duration
	MaxPulse time.Duration
}

// SerialServo drives one channel of a Maestro-compatible servo controller.
// Angles 0..180 map linearly onto MinPulse..MaxPulse.
type SerialServo struct {
	port     io.WriteCloser
	channel  byte
	minPulse time.Duration
	maxPulse time.Duration
}

// OpenSerialServo opens the serial port described by cfg.
func OpenSerialServo(cfg SerialConfig) (*SerialServo, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("actuator: serial port is empty")
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = defaultBaudRate
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("actuator: open %s: %w", cfg.Port, err)
	}
	return NewSerialServo(port, cfg)
}

// NewSerialServo wraps an already-open port.
func NewSerialServo(port io.WriteCloser, cfg SerialConfig) (*SerialServo, error) {
	if cfg.Channel < 0 || cfg.Channel > 23 {
		return nil, fmt.Errorf("actuator: channel %d out of range", cfg.Channel)
	}
	minPulse, maxPulse := cfg.MinPulse, cfg.MaxPulse
	if minPulse <= 0 {
		minPulse = defaultMinPulse
	}
	if maxPulse <= 0 {
		maxPulse = defaultMaxPulse
	}
	if maxPulse <= minPulse {
		return nil, fmt.Errorf("actuator: max pulse %v must exceed min pulse %v", maxPulse, minPulse)
	}
	return &SerialServo{
		port:     port,
		channel:  byte(cfg.Channel),
		minPulse: minPulse,
		maxPulse: maxPulse,
	}, nil
}

// SetAngle writes a set-target command for angle, clamped to 0..180.
func (s *SerialServo) SetAngle(angle int) error {
	if _, err := s.port.Write(s.command(angle)); err != nil {
		return fmt.Errorf("actuator: write target: %w", err)
	}
	return nil
}

// Close releases the serial port.
func (s *SerialServo) Close() error {
	return s.port.Close()
}

// command encodes the target in quarter-microseconds, split into two 7-bit bytes.
func (s *SerialServo) command(angle int) []byte {
	angle = max(0, min(maxDegrees, angle))
	span := s.maxPulse - s.minPulse
	pulse := s.minPulse + span*time.Duration(angle)/maxDegrees
	target := int(pulse/time.Microsecond) * 4
	return []byte{cmdSetTarget, s.channel, byte(target & 0x7F), byte((target >> 7) & 0x7F)}
}
