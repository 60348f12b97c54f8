// Package metrics exposes Prometheus collectors for the redemption flow.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noxly/redemptions/internal/redemption"
)

var (
	once sync.Once

	redemptionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "noxly_redemptions_created_total",
		Help: "Redemption codes generated for customers.",
	})

	redemptionsVerified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noxly_redemptions_verified_total",
			Help: "Code validations attempted by venue staff, by result (consumed/expired/used/not_found/error).",
		},
		[]string{"result"},
	)

	statusObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noxly_redemption_status_observed_total",
			Help: "Redemption statuses returned by list and detail endpoints.",
		},
		[]string{"status"},
	)

	countdownStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "noxly_countdown_streams_active",
		Help: "Countdown event streams currently open.",
	})
)

// MustRegister registers the collectors with the default registry.  It is
// safe to call more than once.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(redemptionsCreated, redemptionsVerified, statusObserved, countdownStreams)
	})
}

// IncRedemptionCreated counts a newly generated code.
func IncRedemptionCreated() { redemptionsCreated.Inc() }

// IncVerification counts a staff validation attempt.
func IncVerification(result string) { redemptionsVerified.WithLabelValues(result).Inc() }

// ObserveStatuses adds per-status counts from an aggregation.
func ObserveStatuses(counts map[redemption.Status]int) {
	for status, n := range counts {
		if n > 0 {
			statusObserved.WithLabelValues(string(status)).Add(float64(n))
		}
	}
}

// ObserveStatus counts a single evaluated redemption.
func ObserveStatus(s redemption.Status) { statusObserved.WithLabelValues(string(s)).Inc() }

// StreamOpened and StreamClosed track open countdown streams.
func StreamOpened() { countdownStreams.Inc() }

// StreamClosed is the counterpart of StreamOpened.
func StreamClosed() { countdownStreams.Dec() }
