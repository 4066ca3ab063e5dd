// Package domain holds the pure types of the ReLoop reward engine.
// No infrastructure imports — snapshots, events, and deltas are plain data
// so the calculator stays deterministic and replayable.
package domain

import (
	"sort"
	"time"
)

// ─── User Snapshot ──────────────────────────────────────────────────────────

// UserSnapshot is the materialized reward state of a single user.
// It is owned by the ledger store, mutated only through the applier, and
// carries a version counter for optimistic concurrency: every successfully
// applied event increments Version exactly once.
type UserSnapshot struct {
	UserID          string                 `json:"user_id"`
	PointsBalance   int64                  `json:"points_balance"`
	TotalWeightKg   float64                `json:"total_weight_kg"`
	CO2SavedKg      float64                `json:"co2_saved_kg"`
	PerCategoryKg   map[string]float64     `json:"per_category_kg"`
	SubmissionCount int64                  `json:"submission_count"`
	Missions        map[string]UserMission `json:"missions"`
	AwardedBadgeIDs []string               `json:"awarded_badge_ids"`
	Version         int64                  `json:"version"`
}

// NewUserSnapshot returns the all-zero snapshot created at registration.
func NewUserSnapshot(userID string) UserSnapshot {
	return UserSnapshot{
		UserID:        userID,
		PerCategoryKg: map[string]float64{},
		Missions:      map[string]UserMission{},
	}
}

// ActiveMissionIDs returns the ids of missions currently in ACTIVE state,
// sorted for deterministic iteration.
func (s UserSnapshot) ActiveMissionIDs() []string {
	var ids []string
	for id, m := range s.Missions {
		if m.Status == MissionActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasBadge reports whether the badge has already been awarded.
func (s UserSnapshot) HasBadge(badgeID string) bool {
	for _, id := range s.AwardedBadgeIDs {
		if id == badgeID {
			return true
		}
	}
	return false
}

// CompletedMissionCount counts missions in COMPLETED state.
func (s UserSnapshot) CompletedMissionCount() int {
	n := 0
	for _, m := range s.Missions {
		if m.Status == MissionCompleted {
			n++
		}
	}
	return n
}

// CategoryCount counts distinct categories with recorded weight.
func (s UserSnapshot) CategoryCount() int {
	return len(s.PerCategoryKg)
}

// Clone returns a deep copy. The applier mutates the copy while the original
// stays valid for conflict retries.
func (s UserSnapshot) Clone() UserSnapshot {
	out := s
	out.PerCategoryKg = make(map[string]float64, len(s.PerCategoryKg))
	for k, v := range s.PerCategoryKg {
		out.PerCategoryKg[k] = v
	}
	out.Missions = make(map[string]UserMission, len(s.Missions))
	for k, v := range s.Missions {
		out.Missions[k] = v
	}
	out.AwardedBadgeIDs = append([]string(nil), s.AwardedBadgeIDs...)
	return out
}

// UserMission is one user's participation in a mission.
type UserMission struct {
	MissionID   string        `json:"mission_id"`
	Status      MissionStatus `json:"status"`
	Progress    float64       `json:"progress"`
	JoinedAt    time.Time     `json:"joined_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
}

// ─── Activity Events ────────────────────────────────────────────────────────

// EventKind tags the ActivityEvent variant.
type EventKind string

const (
	EventWasteSubmission EventKind = "WASTE_SUBMISSION"
	EventSocialAction    EventKind = "SOCIAL_ACTION"
	EventMissionJoin     EventKind = "MISSION_JOIN"
)

// ActivityEvent is the normalized form of an incoming activity. Exactly one
// of the variant pointers is set, matching Kind. Events are ephemeral:
// constructed per request, discarded after apply.
type ActivityEvent struct {
	Kind         EventKind `json:"kind"`
	UserID       string    `json:"user_id"`
	SubmissionID string    `json:"submission_id"` // idempotency key
	OccurredAt   time.Time `json:"occurred_at"`

	Waste  *WasteSubmission `json:"waste,omitempty"`
	Social *SocialAction    `json:"social,omitempty"`
	Join   *MissionJoin     `json:"join,omitempty"`
}

// WasteSubmission is a verified recycling drop-off.
// Confidence is the classifier's score for the chosen category; nil when the
// user picked the category manually. It is a hint, never authoritative — the
// normalizer validates CategoryName against the rule catalog regardless.
type WasteSubmission struct {
	CategoryName string   `json:"category_name"`
	WeightKg     float64  `json:"weight_kg"`
	Quantity     int      `json:"quantity"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// SocialAction is a community contribution (post, tip, hotspot report).
type SocialAction struct {
	Action SocialActionKind `json:"action"`
}

// SocialActionKind mirrors the community post types.
type SocialActionKind string

const (
	SocialPostCreated   SocialActionKind = "POST_CREATED"
	SocialTipShared     SocialActionKind = "TIP_SHARED"
	SocialHotspotReport SocialActionKind = "HOTSPOT_REPORTED"
	SocialComment       SocialActionKind = "COMMENT"
)

// MissionJoin requests AVAILABLE→ACTIVE for one mission.
type MissionJoin struct {
	MissionID string `json:"mission_id"`
}

// ─── Reward Delta ───────────────────────────────────────────────────────────

// RewardDelta is the calculator's proposed additive change. It is computed
// against one snapshot and applied under that snapshot's version; a conflict
// retry recomputes it from scratch.
type RewardDelta struct {
	Points          int64              `json:"points"`
	CO2Kg           float64            `json:"co2_kg"`
	WeightKg        float64            `json:"weight_kg"`
	Category        string             `json:"category,omitempty"`
	MissionProgress map[string]float64 `json:"mission_progress,omitempty"`
	SourceEventID   string             `json:"source_event_id"`
}

// ─── Applied Events (idempotency + history) ─────────────────────────────────

// AppliedEvent is the durable record of one applied activity event. It is
// both the idempotency record (keyed by user+submission id) and the points
// history entry shown on the profile activity feed.
type AppliedEvent struct {
	UserID            string    `json:"user_id"`
	SubmissionID      string    `json:"submission_id"`
	Kind              EventKind `json:"kind"`
	Points            int64     `json:"points"`
	CO2Kg             float64   `json:"co2_kg"`
	WeightKg          float64   `json:"weight_kg"`
	Category          string    `json:"category,omitempty"`
	CompletedMissions []string  `json:"completed_missions,omitempty"`
	AppliedAt         time.Time `json:"applied_at"`
}

// ApplyResult is what the engine hands back to the caller.
type ApplyResult struct {
	Snapshot          UserSnapshot `json:"snapshot"`
	PointsAwarded     int64        `json:"points_awarded"`
	CO2SavedKg        float64      `json:"co2_saved_kg"`
	CompletedMissions []string     `json:"completed_missions,omitempty"`
	NewBadges         []string     `json:"new_badges,omitempty"`
	Replayed          bool         `json:"replayed"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationKind categorizes engine notifications.
type NotificationKind string

const (
	NotifyPointsAwarded    NotificationKind = "POINTS_AWARDED"
	NotifyMissionCompleted NotificationKind = "MISSION_COMPLETED"
	NotifyBadgeUnlocked    NotificationKind = "BADGE_UNLOCKED"
)

// Notification is a user-facing message emitted after a successful commit.
// Delivery is fire-and-forget: a failed notification never rolls back the
// committed state change.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}

// NotificationPolicy bounds how often and when users are notified.
// MaxPerDay is a per-user cap; the quiet window is wall-clock "HH:MM" and
// may wrap midnight.
type NotificationPolicy struct {
	MaxPerDay  int    `toml:"max_per_day"`
	QuietStart string `toml:"quiet_start"`
	QuietEnd   string `toml:"quiet_end"`
}

// DefaultNotificationPolicy returns the shipped policy: at most five
// notifications per user per day, quiet between 22:00 and 08:00.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		MaxPerDay:  5,
		QuietStart: "22:00",
		QuietEnd:   "08:00",
	}
}

// Classification is the classification collaborator's answer for an image.
type Classification struct {
	PredictedCategory string  `json:"predicted_category"`
	Confidence        float64 `json:"confidence"`
}
