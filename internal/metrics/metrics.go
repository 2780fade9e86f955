package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AccessDecisions counts facade decisions by outcome (allowed, denied)
var AccessDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ehrb_access_decisions_total",
		Help: "Access decisions returned by the facade, by outcome.",
	},
	[]string{"outcome"},
)

// LedgerAppends counts mined blocks by event type
var LedgerAppends = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ehrb_ledger_appends_total",
		Help: "Blocks appended to the audit ledger, by event type.",
	},
	[]string{"event_type"},
)

// PowDuration observes the proof-of-work search time per block
var PowDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ehrb_ledger_pow_duration_seconds",
		Help:    "Duration of the nonce search for each appended block.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	},
)

// AuditWriteFailures counts audit log writes swallowed at the boundary
var AuditWriteFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ehrb_audit_write_failures_total",
		Help: "Audit log persistence failures swallowed by LogActivity.",
	},
)
