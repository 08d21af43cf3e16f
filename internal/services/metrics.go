package services

import "github.com/prometheus/client_golang/prometheus"

// Quota decisions.
const (
	decisionAnonymous = "anonymous"
	decisionExempt    = "exempt"
	decisionAdmitted  = "admitted"
	decisionRejected  = "rejected"
	decisionError     = "error"
)

// Generation outcomes.
const (
	outcomeSuccess       = "success"
	outcomeNotConfigured = "not_configured"
	outcomeUpstreamError = "upstream_error"
	outcomeTimeout       = "timeout"
)

var (
	quotaDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Quota gate decisions by outcome.",
		},
		[]string{"decision"},
	)

	generationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_requests_total",
			Help: "Upstream generation calls by outcome.",
		},
		[]string{"outcome"},
	)

	// privilegeLookupFailures counts exemption lookups that errored and were
	// resolved by the configured policy.
	privilegeLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "privilege_lookup_failures_total",
			Help: "Exemption lookups that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(quotaDecisions, generationRequests, privilegeLookupFailures)
}
