package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srm_delivery_attempts_total",
			Help: "Transmission attempts by classified outcome",
		},
		[]string{"outcome"},
	)

	CompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "srm_delivery_completed_total",
			Help: "Queue entries confirmed by the regulator",
		},
	)

	DeadLettersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "srm_delivery_dead_letters_total",
			Help: "Queue entries terminally failed and awaiting operator action",
		},
	)

	SigningFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "srm_delivery_signing_faults_total",
			Help: "Local signing or credential faults aborted before any network call",
		},
	)

	BreakerRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srm_breaker_rejections_total",
			Help: "Sends rejected while a scope's circuit was open",
		},
		[]string{"scope"},
	)

	QueuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "srm_queue_pending",
			Help: "Entries currently waiting for delivery",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		AttemptsTotal,
		CompletedTotal,
		DeadLettersTotal,
		SigningFaultsTotal,
		BreakerRejections,
		QueuePending,
	)
}
