package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GraphQL request outcomes.
const (
	OutcomeExecuted        = "executed"
	OutcomeRejected        = "rejected"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeBadRequest      = "bad_request"
	OutcomeThrottled       = "throttled"
)

var (
	// Counter: GraphQL requests by outcome
	GraphQLRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_api_graphql_requests_total",
			Help: "Total number of GraphQL requests by outcome.",
		},
		[]string{"outcome"},
	)

	// Histogram: GraphQL request duration
	GraphQLRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notes_api_graphql_request_duration_seconds",
			Help:    "GraphQL request duration in seconds.",
			Buckets: []float64{.001, .005, .025, .05, .25, .5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	// Counter: admission rule rejections
	GateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_api_graphql_gate_rejections_total",
			Help: "Total number of queries rejected before execution, by rule.",
		},
		[]string{"rule"},
	)

	// Counter: credentials that failed verification
	SessionInvalidTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notes_api_session_invalid_total",
			Help: "Total number of requests carrying a credential that failed verification.",
		})
)

// Register adds every collector to reg. Call once per registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(GraphQLRequestsTotal, GraphQLRequestDuration, GateRejectionsTotal, SessionInvalidTotal)
}

// Handler exposes the collectors registered on reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func ObserveGraphQL(start time.Time, outcome string) {
	GraphQLRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	GraphQLRequestsTotal.WithLabelValues(outcome).Inc()
}

func IncGateRejection(rule string) {
	GateRejectionsTotal.WithLabelValues(rule).Inc()
}

func IncSessionInvalid() {
	SessionInvalidTotal.Inc()
}
