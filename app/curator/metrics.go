package curator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reel_comb_requests_total",
		Help: "Curation requests by outcome",
	}, []string{"outcome"}) // outcome=cached|fresh|invalid|rejected|unavailable|error

	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reel_comb_builds_total",
		Help: "Playlist builds by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reel_comb_build_duration_seconds",
		Help:    "Time spent building a playlist, including candidate search",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	buildsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reel_comb_builds_in_flight",
		Help: "Signatures with a build currently running",
	})

	sourceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reel_comb_source_failures_total",
		Help: "Candidate source calls that failed, counting each attempt",
	})

	persistenceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reel_comb_persistence_failures_total",
		Help: "Playlist store operations that failed and were ignored",
	}, []string{"operation"}) // operation=lookup|put|touch

	servedStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reel_comb_served_stored_total",
		Help: "Requests answered from a fresh stored playlist because the source was unavailable",
	})
)

func recordOutcome(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}
