// Package telemetry registers the Prometheus metrics exposed on /metrics.
//
// Metrics are registered against the default registry through promauto, so
// importing the package is enough to make them visible to promhttp.Handler.
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/audit/entities/:entityName/:entityId) rather than the raw URL so that
// entity identifiers do not inflate label cardinality.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

// Audit trail metrics.
//
// AuditEventsRecordedTotal{category, severity} counts events persisted by the store.
// AuditRecordFailuresTotal{category} counts Record calls that failed in storage.
// AuditQueryDuration{operation} observes read latency for query, by_actor,
// by_entity and statistics.
var (
	AuditEventsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_recorded_total",
			Help: "Total number of audit events persisted, by category and severity.",
		},
		[]string{"category", "severity"},
	)

	AuditRecordFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_record_failures_total",
			Help: "Total number of audit events that could not be persisted, by category.",
		},
		[]string{"category"},
	)

	AuditQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_query_duration_seconds",
			Help:    "Histogram of audit read latencies, by operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Credential guard metrics.
//
// CredentialChangesTotal{outcome} counts ChangeCredential calls by outcome:
// changed, invalid_input, mismatched_confirmation, invalid_current, same_as_current,
// recently_used, storage_error.
// CredentialAuditEmissionFailuresTotal counts committed changes whose
// CREDENTIAL_CHANGED event could not be recorded.
var (
	CredentialChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_changes_total",
			Help: "Total number of credential change attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	CredentialAuditEmissionFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_audit_emission_failures_total",
			Help: "Total number of committed credential changes whose audit event was not recorded.",
		},
	)

	CredentialHistoryTrimmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_history_trimmed_total",
			Help: "Total number of credential history entries removed by the retention bound.",
		},
	)
)

// Credential change outcomes.
const (
	OutcomeChanged                = "changed"
	OutcomeInvalidInput           = "invalid_input"
	OutcomeMismatchedConfirmation = "mismatched_confirmation"
	OutcomeInvalidCurrent         = "invalid_current"
	OutcomeSameAsCurrent          = "same_as_current"
	OutcomeRecentlyUsed           = "recently_used"
	OutcomeStorageError           = "storage_error"
	OutcomeInternalError          = "internal_error"
)
