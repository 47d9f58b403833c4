// Package metrics exposes the device's Prometheus collectors.
//
//   - needle_mode{mode}                    1 for the active mode, 0 otherwise
//   - needle_probability                   last accepted probability
//   - needle_angle_degrees                 last angle sent to the actuator
//   - needle_polls_total{result}           poll outcomes (updated|unchanged|network_error|parse_error)
//   - needle_connect_attempts_total{result} WiFi connect outcomes (connected|timed_out)
//   - needle_slug_changes_total{result}    market changes (accepted|rejected|error)
//   - needle_restarts_total                boot cycles restarted after reconfiguration
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	mode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "needle_mode",
			Help: "Active device mode (config/polling as separate labeled series).",
		},
		[]string{"mode"},
	)

	probability = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "needle_probability",
			Help: "Last accepted market probability.",
		},
	)

	angle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "needle_angle_degrees",
			Help: "Last angle written to the needle actuator.",
		},
	)

	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "needle_polls_total",
			Help: "Market polls split by outcome.",
		},
		[]string{"result"},
	)

	connects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "needle_connect_attempts_total",
			Help: "WiFi connection attempts split by outcome.",
		},
		[]string{"result"},
	)

	slugChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "needle_slug_changes_total",
			Help: "Market identifier change requests split by outcome.",
		},
		[]string{"result"},
	)

	restarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "needle_restarts_total",
			Help: "Boot sequence restarts after a credential change.",
		},
	)
)

func init() {
	prometheus.MustRegister(mode, probability, angle)
	prometheus.MustRegister(polls, connects, slugChanges, restarts)
}

// SetMode flips the two mode series so exactly one reads 1.
func SetMode(m string) {
	if m == "polling" {
		mode.WithLabelValues("polling").Set(1)
		mode.WithLabelValues("config").Set(0)
	} else {
		mode.WithLabelValues("config").Set(1)
		mode.WithLabelValues("polling").Set(0)
	}
}

func SetProbability(p float64)    { probability.Set(p) }
func SetAngle(a int)              { angle.Set(float64(a)) }
func IncPoll(result string)       { polls.WithLabelValues(result).Inc() }
func IncConnect(result string)    { connects.WithLabelValues(result).Inc() }
func IncSlugChange(result string) { slugChanges.WithLabelValues(result).Inc() }
func IncRestart()                 { restarts.Inc() }
