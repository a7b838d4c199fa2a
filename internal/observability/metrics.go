package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unimaster",
			Subsystem: "wire",
			Name:      "packets_total",
			Help:      "Inbound packets handled, by message type.",
		},
		[]string{"msg"},
	)
	redirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "unimaster",
			Subsystem: "universe",
			Name:      "redirects_total",
			Help:      "Zone transfer requests redirected away from a dying instance.",
		},
	)
	sessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "unimaster",
			Subsystem: "session",
			Name:      "evicted_total",
			Help:      "Session keys evicted by a newer login for the same account.",
		},
	)
	instancesLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "unimaster",
			Subsystem: "universe",
			Name:      "instances_live",
			Help:      "World instances currently registered.",
		},
	)
	affirmationsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "unimaster",
			Subsystem: "universe",
			Name:      "affirmations_pending",
			Help:      "Zone transfer requests awaiting instance affirmation.",
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "unimaster",
			Subsystem: "session",
			Name:      "active",
			Help:      "Session keys currently registered.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packetsTotal, redirectsTotal, sessionsEvictedTotal,
			instancesLive, affirmationsPending, sessionsActive,
		)
	})
}

func RecordPacket(msg string) {
	RegisterMetrics()
	packetsTotal.WithLabelValues(msg).Inc()
}

func RecordRedirects(n int) {
	RegisterMetrics()
	redirectsTotal.Add(float64(n))
}

func RecordSessionEvicted() {
	RegisterMetrics()
	sessionsEvictedTotal.Inc()
}

func SetInstancesLive(n int) {
	RegisterMetrics()
	instancesLive.Set(float64(n))
}

func SetAffirmationsPending(n int) {
	RegisterMetrics()
	affirmationsPending.Set(float64(n))
}

func SetSessionsActive(n int) {
	RegisterMetrics()
	sessionsActive.Set(float64(n))
}
