package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "matches_total", Help: "Total match requests created"})
	AIMatchRequests      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "ai_match_requests_total", Help: "Total completion-service matching calls"})
	AIMatchParseFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "ai_match_parse_failures_total", Help: "AI replies that could not be parsed as a match array"})
	WalletRefreshes      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "wallet_refreshes_total", Help: "Eco wallet recompute-and-persist operations"})
	RidesCreated         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "rides_created_total", Help: "Rides posted (offers and requests)"})
	StatusTransitions    = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "status_transitions_total", Help: "Accepted status transitions"},
		[]string{"entity", "to"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
