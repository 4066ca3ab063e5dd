package domain

import (
	"context"
	"time"
)

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the engine depends on them.

// LedgerStore is durable keyed storage for per-user reward state.
// The only concurrency primitive it must provide is the version-conditioned
// write: CompareAndSet succeeds only when the stored version still equals
// expectedVersion, otherwise it returns ErrVersionConflict.
type LedgerStore interface {
	// GetSnapshot returns the current snapshot, or ErrUserNotFound.
	GetSnapshot(ctx context.Context, userID string) (UserSnapshot, error)

	// CompareAndSet atomically replaces the snapshot and records the applied
	// event (idempotency record + history entry) in the same write.
	// next.Version must equal expectedVersion+1.
	CompareAndSet(ctx context.Context, expectedVersion int64, next UserSnapshot, applied AppliedEvent) error

	// LookupApplied returns the applied-event record for a submission id,
	// or nil when the event has not been applied.
	LookupApplied(ctx context.Context, userID, submissionID string) (*AppliedEvent, error)
}

// MissionStore manages the shared, cross-user mission state: participant
// counters and the expiry sweep. Per-user mission rows travel with the
// snapshot through CompareAndSet instead.
type MissionStore interface {
	// ReserveSlot atomically checks and increments the participant counter.
	// Returns ErrMissionFull when maxParticipants would be exceeded, or
	// ErrMissionNotFound for an unknown mission id.
	ReserveSlot(ctx context.Context, missionID string) error

	// ReleaseSlot undoes a reservation whose join did not commit.
	ReleaseSlot(ctx context.Context, missionID string) error

	// ParticipantCount returns the current participant counter.
	ParticipantCount(ctx context.Context, missionID string) (int, error)

	// ExpireActive transitions every ACTIVE participation in a mission whose
	// end date has passed to EXPIRED, with no reward. Idempotent: a second
	// sweep over the same period finds nothing to do. Returns the number of
	// participations expired.
	ExpireActive(ctx context.Context, now time.Time) (int64, error)
}

// BadgeStore persists badge awards. Awards are append-only.
type BadgeStore interface {
	// AwardBadge grants a badge exactly once. Returns false when the badge
	// was already awarded (idempotent no-op).
	AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error)

	// ListBadges returns all awards for a user in award order.
	ListBadges(ctx context.Context, userID string) ([]AwardedBadge, error)
}

// Classifier is the external image classification collaborator.
// Its answer is an untrusted hint: the predicted category still goes through
// normalizer validation against the rule catalog.
type Classifier interface {
	Classify(ctx context.Context, imageRef string) (Classification, error)
}

// Notifier delivers messages after a successful commit.
// Implementations must be fire-and-forget safe: a delivery failure is logged
// by the implementation and never propagates into the apply path.
type Notifier interface {
	Notify(n Notification)
}
