// Package metrics provides Prometheus metrics for the reward engine:
// counters and histograms for processed events, points, CO₂ impact,
// apply conflicts, missions, badges, and notifications.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsProcessed tracks successfully applied events by kind.
var EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "events_processed_total",
	Help:      "Total activity events applied.",
}, []string{"kind"})

// EventsRejected tracks rejected events by reason.
var EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "events_rejected_total",
	Help:      "Total activity events rejected.",
}, []string{"reason"})

// EventsReplayed tracks idempotent replays (duplicate deliveries).
var EventsReplayed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "events_replayed_total",
	Help:      "Total duplicate deliveries answered from the idempotency record.",
})

// ProcessLatency tracks end-to-end pipeline duration in seconds.
var ProcessLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "reloop",
	Name:      "process_latency_seconds",
	Help:      "Event pipeline duration (normalize through badge evaluation).",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})

// ─── Apply ──────────────────────────────────────────────────────────────────

// ApplyConflicts tracks optimistic-concurrency write conflicts.
var ApplyConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "apply_conflicts_total",
	Help:      "Total compare-and-set version conflicts (each one is retried).",
})

// ─── Rewards ────────────────────────────────────────────────────────────────

// PointsAwarded tracks total points granted.
var PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "points_awarded_total",
	Help:      "Total points granted, including mission completion rewards.",
})

// CO2SavedKg tracks total CO₂ impact recorded.
var CO2SavedKg = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "co2_saved_kg_total",
	Help:      "Total kilograms of CO₂ avoided across all users.",
})

// ─── Missions & Badges ──────────────────────────────────────────────────────

// MissionsCompleted tracks mission completions.
var MissionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "missions_completed_total",
	Help:      "Total mission completions.",
})

// MissionsExpired tracks participations expired by the sweep.
var MissionsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "missions_expired_total",
	Help:      "Total mission participations expired without reward.",
})

// BadgesAwarded tracks badge unlocks.
var BadgesAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "badges_awarded_total",
	Help:      "Total badges awarded.",
})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsSent tracks stored notifications by kind.
var NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "notifications_sent_total",
	Help:      "Total notifications delivered.",
}, []string{"kind"})

// NotificationsSuppressed tracks notifications dropped by policy.
var NotificationsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reloop",
	Name:      "notifications_suppressed_total",
	Help:      "Total notifications suppressed by the delivery policy.",
})
