// Package metrics defines and registers all custom Prometheus metrics for the
// bazar API. It is the single source of truth for metric names, labels, and
// help strings. Metrics register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bazar"

// ── Identity metrics ──────────────────────────────────────────────────────────

// IdentityTransitionsTotal counts completed lifecycle transitions.
// Label:
//   - transition: "anonymous_created", "onboarded", "converted", "marked_for_deletion"
var IdentityTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_transitions_total",
		Help:      "Total number of identity lifecycle transitions.",
	},
	[]string{"transition"},
)

// AuthFailuresTotal counts requests rejected by the credential pipeline.
// Label:
//   - reason: "invalid_credential", "not_registered", "permission_denied"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of requests rejected by authentication or authorization.",
	},
	[]string{"reason"},
)

// PolicyDecisionsTotal counts policy evaluations.
// Labels:
//   - resource, action: the pair being checked
//   - decision: "allow" or "deny"
var PolicyDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "policy_decisions_total",
		Help:      "Total number of policy decisions, by resource, action and outcome.",
	},
	[]string{"resource", "action", "decision"},
)

// ProviderRequestDuration measures identity provider calls.
// Labels:
//   - operation: the provider method (e.g. "sign_in")
//   - outcome: "ok" or the error class
var ProviderRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "identity_provider_request_duration_seconds",
		Help:      "Duration of identity provider calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation", "outcome"},
)

// ── Task metrics ──────────────────────────────────────────────────────────────

// TasksPublishedTotal counts task messages handed to the external queue.
// Label:
//   - type: the task type
var TasksPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_published_total",
		Help:      "Total number of task messages published.",
	},
	[]string{"type"},
)

// TaskPublishErrorsTotal counts task messages the publisher failed to deliver.
var TaskPublishErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_publish_errors_total",
		Help:      "Total number of task messages that failed to publish.",
	},
	[]string{"type"},
)

// TasksDedupTotal counts idempotency decisions on task submission.
// Label:
//   - result: "hit" (duplicate, rejected) or "miss"
var TasksDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_dedup_total",
		Help:      "Total number of task idempotency checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// TasksRejectedTotal counts task messages refused because a worker buffer was full.
var TasksRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_rejected_total",
		Help:      "Total number of task messages rejected by a full dispatcher buffer.",
	},
	[]string{"type"},
)

// TasksQueueDepth tracks the number of messages waiting in each dispatcher worker channel.
var TasksQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_queue_depth",
		Help:      "Current number of task messages pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// TaskPublishDuration measures a single publish call.
var TaskPublishDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_publish_duration_seconds",
		Help:      "Duration of publishing one task message to the external queue.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"type"},
)
