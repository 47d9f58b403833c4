// Package needle maps a probability onto a servo angle.
package needle

import (
	"math"

	"github.com/electionneedle/needle/internal/model"
)

// Mapper linearly maps probability 0 to MinAngle and probability 1 to MaxAngle.
// MinAngle may be larger than MaxAngle, which inverts the needle.
type Mapper struct {
	MinAngle int
	MaxAngle int
}

// DefaultMapper is the inverted 180..0 mapping the needle is built for.
func DefaultMapper() Mapper {
	return Mapper{MinAngle: model.DefaultMinAngle, MaxAngle: model.DefaultMaxAngle}
}

// Angle returns the servo angle for p. Inputs outside [0,1] are clamped and NaN
// is treated as 0, so the result always lies between MinAngle and MaxAngle.
func (m Mapper) Angle(p float64) int {
	p = Clamp(p)
	x := p * 100
	span := float64(m.MaxAngle - m.MinAngle)
	return int(math.Round(float64(m.MinAngle) + x*span/100))
}

// Bounds returns the lowest and highest angle the mapper can produce.
func (m Mapper) Bounds() (lo, hi int) {
	if m.MinAngle < m.MaxAngle {
		return m.MinAngle, m.MaxAngle
	}
	return m.MaxAngle, m.MinAngle
}

// Clamp forces p into [0,1].
func Clamp(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
