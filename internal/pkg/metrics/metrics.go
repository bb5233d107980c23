// Package metrics defines and registers all custom Prometheus metrics for the
// staff terminal auth service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// through promauto; the /metrics route exposes them together with the HTTP
// request metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "garage_auth"

// ── Authentication metrics ────────────────────────────────────────────────────

// AuthAttemptsTotal counts authentication attempts.
// Labels:
//   - method: "password", "pin", "manager_password"
//   - result: "success" or the lower-cased AuthError type (e.g. "invalid_pin")
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts, by method and result.",
	},
	[]string{"method", "result"},
)

// PinLockoutsTotal counts PIN submissions rejected because the attempt limit
// was reached.
var PinLockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pin_lockouts_total",
		Help:      "Total number of PIN submissions rejected by the terminal lockout.",
	},
)

// ScreenLocksTotal counts explicit terminal locks.
var ScreenLocksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screen_locks_total",
		Help:      "Total number of terminal screen locks.",
	},
)

// CredentialCheckDuration measures round trips to the credential store.
// Label:
//   - method: "password", "pin", "manager_password"
var CredentialCheckDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "credential_check_duration_seconds",
		Help:      "Duration of credential store verification calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// ActiveTerminals tracks the number of terminal sessions held in memory.
var ActiveTerminals = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_terminals",
		Help:      "Number of terminal sessions held by this instance.",
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the current number of audit events waiting in each
// worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsDroppedTotal counts audit events discarded because a worker
// channel was full.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of audit events dropped because the queue was full.",
	},
)

// AuditEventsErrorsTotal counts audit events that failed to persist.
var AuditEventsErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_errors_total",
		Help:      "Total number of audit events that could not be persisted.",
	},
)
