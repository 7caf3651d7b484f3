// Package metrics defines and registers all custom Prometheus metrics for the
// LMS core API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lms"

// ── Gamification metrics ──────────────────────────────────────────────────────

// XPAwardedTotal counts XP points granted through the ledger.
// Label:
//   - source: "api" for synchronous awards, "batch" for dispatcher awards
var XPAwardedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "xp_awarded_total",
		Help:      "Total XP points awarded, by source.",
	},
	[]string{"source"},
)

// LevelUpsTotal counts awards that crossed at least one level boundary.
var LevelUpsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "level_ups_total",
		Help:      "Total number of XP awards that resulted in a level up.",
	},
)

// XPAwardErrorsTotal counts batch awards the dispatcher failed to apply.
var XPAwardErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "xp_award_errors_total",
		Help:      "Total number of queued XP awards that failed.",
	},
)

// XPQueueDepth tracks the current number of awards waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var XPQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "xp_queue_depth",
		Help:      "Current number of XP awards pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// StreaksResetTotal counts streaks zeroed by the stale-streak sweep.
var StreaksResetTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "streaks_reset_total",
		Help:      "Total number of streaks reset by the scheduled sweep.",
	},
)

// ── Billing metrics ───────────────────────────────────────────────────────────

// WebhookEventsTotal counts billing webhook deliveries by outcome.
// Labels:
//   - event_type: the reconciler event kind (e.g. "checkout_completed")
//   - outcome: "applied", "unchanged", "ignored", "duplicate", "missing_target", "customer_conflict", "failed"
var WebhookEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Total number of billing webhook events, by kind and outcome.",
	},
	[]string{"event_type", "outcome"},
)

// WebhookRejectedTotal counts deliveries rejected before reconciliation.
// Label:
//   - reason: "signature" or "malformed"
var WebhookRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_rejected_total",
		Help:      "Total number of billing webhooks rejected before reconciliation.",
	},
	[]string{"reason"},
)

// BillingDedupTotal counts deduplication decisions.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new event, processed)
var BillingDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "billing_dedup_total",
		Help:      "Total number of billing deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// WebhookProcessingDuration measures a webhook from signature check to response.
// Label:
//   - outcome: the reconcile outcome, or "rejected"
var WebhookProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "webhook_processing_duration_seconds",
		Help:      "Duration of billing webhook handling.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"outcome"},
)

// ── School metrics ────────────────────────────────────────────────────────────

// UsersCreatedTotal counts accounts provisioned.
// Label:
//   - role: the created user's role
var UsersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Total number of users created, by role.",
	},
	[]string{"role"},
)
