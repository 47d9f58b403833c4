package needle

import (
	"math"
	"testing"
)

func TestAngleKnownPoints(t *testing.T) {
	t.Parallel()

	m := DefaultMapper()
	tests := []struct {
		p    float64
		want int
	}{
		{0, 180},
		{0.25, 135},
		{0.5, 90},
		{0.73, 49},
		{1, 0},
	}
	for _, tt := range tests {
		if got := m.Angle(tt.p); got != tt.want {
			t.Errorf("Angle(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestAngleClampsOutOfRange(t *testing.T) {
	t.Parallel()

	m := DefaultMapper()
	tests := []struct {
		p    float64
		want int
	}{
		{-0.5, 180},
		{1.7, 0},
		{math.NaN(), 180},
		{math.Inf(1), 0},
		{math.Inf(-1), 180},
	}
	for _, tt := range tests {
		if got := m.Angle(tt.p); got != tt.want {
			t.Errorf("Angle(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestAngleWithinBoundsAndMonotonic(t *testing.T) {
	t.Parallel()

	for _, m := range []Mapper{DefaultMapper(), {MinAngle: 0, MaxAngle: 180}, {MinAngle: 150, MaxAngle: 30}} {
		lo, hi := m.Bounds()
		inverted := m.MinAngle > m.MaxAngle
		prev := m.Angle(0)
		for i := 0; i <= 1000; i++ {
			p := float64(i) / 1000
			a := m.Angle(p)
			if a < lo || a > hi {
				t.Fatalf("%+v Angle(%v) = %d outside [%d,%d]", m, p, a, lo, hi)
			}
			if inverted && a > prev {
				t.Fatalf("%+v not non-increasing at p=%v: %d > %d", m, p, a, prev)
			}
			if !inverted && a < prev {
				t.Fatalf("%+v not non-decreasing at p=%v: %d < %d", m, p, a, prev)
			}
			prev = a
		}
	}
}
