package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/reloop-eco/reloop/internal/domain"
	"github.com/reloop-eco/reloop/internal/infra/metrics"
)

// ─── Progress Applier ───────────────────────────────────────────────────────
// The applier is the only component that blocks: one ledger read-modify-write
// per attempt. Per-user serialization comes from optimistic versioning, not a
// held lock, so unrelated requests for other users never wait. Strict
// ordering holds only within one user's event stream.

// ApplyConfig bounds the optimistic-concurrency retry loop.
type ApplyConfig struct {
	MaxAttempts int           // attempts before surfacing ErrConflictExhausted
	BaseDelay   time.Duration // initial backoff delay (doubles each retry)
	MaxDelay    time.Duration // cap on backoff delay
}

// DefaultApplyConfig returns production retry defaults.
func DefaultApplyConfig() ApplyConfig {
	return ApplyConfig{
		MaxAttempts: 5,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	}
}

// Applier applies normalized events to the ledger store under a per-user
// serialization guarantee.
type Applier struct {
	ledger   domain.LedgerStore
	missions domain.MissionStore
	catalog  *domain.Catalog
	reward   RewardConfig
	cfg      ApplyConfig
}

// NewApplier creates an applier.
func NewApplier(ledger domain.LedgerStore, missions domain.MissionStore, cat *domain.Catalog, reward RewardConfig, cfg ApplyConfig) *Applier {
	return &Applier{ledger: ledger, missions: missions, catalog: cat, reward: reward, cfg: cfg}
}

// Apply runs the read-calculate-write loop for one event.
//
// At-most-once per submission id: if the id was already applied for this
// user, the stored result is returned without re-applying (safe replay).
// On version conflict the delta is recomputed against the fresh snapshot and
// the write retried with exponential backoff up to MaxAttempts, then
// ErrConflictExhausted surfaces as a transient failure the caller may retry.
// Cancellation before the commit leaves no side effects; once committed the
// effect is permanent.
func (a *Applier) Apply(ctx context.Context, ev domain.ActivityEvent) (domain.ApplyResult, error) {
	var res domain.ApplyResult
	var reserved, committed bool // mission join slot held across retries

	defer func() {
		if reserved && !committed {
			// Join never committed — give the slot back.
			if err := a.missions.ReleaseSlot(context.WithoutCancel(ctx), ev.Join.MissionID); err != nil {
				log.Printf("[applier] release slot %s: %v", ev.Join.MissionID, err)
			}
		}
	}()

	delay := a.cfg.BaseDelay
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		snap, err := a.ledger.GetSnapshot(ctx, ev.UserID)
		if err != nil {
			return res, err
		}

		// Idempotency: duplicate delivery (client retry after a timeout)
		// must never double-apply.
		if applied, err := a.ledger.LookupApplied(ctx, ev.UserID, ev.SubmissionID); err != nil {
			return res, err
		} else if applied != nil {
			// A prior delivery committed (and holds any join slot); the
			// deferred release hands back the one this delivery reserved.
			res = replayResult(snap, applied)
			return res, nil
		}

		if ev.Kind == domain.EventMissionJoin && !reserved {
			if err := a.reserveJoin(ctx, ev, snap); err != nil {
				return res, err
			}
			reserved = true
		}

		delta, err := Calculate(ev, snap, a.catalog, a.reward)
		if err != nil {
			return res, err
		}

		next, applied, err := a.buildNext(ev, snap, delta)
		if err != nil {
			return res, err
		}

		if err := a.checkInvariants(snap, next); err != nil {
			// A violation here is a logic bug, never clamped at this layer.
			log.Printf("[applier] INVARIANT VIOLATION user=%s event=%s: %v — aborting write",
				ev.UserID, ev.SubmissionID, err)
			return res, err
		}

		err = a.ledger.CompareAndSet(ctx, snap.Version, next, applied)
		if err == nil {
			committed = true
			res = domain.ApplyResult{
				Snapshot:          next,
				PointsAwarded:     applied.Points,
				CO2SavedKg:        applied.CO2Kg,
				CompletedMissions: applied.CompletedMissions,
			}
			return res, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return res, fmt.Errorf("apply event %s: %w", ev.SubmissionID, err)
		}

		metrics.ApplyConflicts.Inc()
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > a.cfg.MaxDelay {
			delay = a.cfg.MaxDelay
		}
	}

	return res, domain.ErrConflictExhausted
}

// reserveJoin validates join preconditions and takes a participant slot.
// The slot check-and-increment is atomic in the store, which is what keeps
// maxParticipants correct under concurrent joins.
func (a *Applier) reserveJoin(ctx context.Context, ev domain.ActivityEvent, snap domain.UserSnapshot) error {
	if _, joined := snap.Missions[ev.Join.MissionID]; joined {
		return domain.ErrMissionAlreadyJoined
	}
	def, ok := a.catalog.Mission(ev.Join.MissionID)
	if !ok {
		return domain.ErrMissionNotFound
	}
	if !def.IsOpen(ev.OccurredAt) {
		return domain.ErrMissionNotJoinable
	}
	return a.missions.ReserveSlot(ctx, ev.Join.MissionID)
}

// buildNext folds the delta into a fresh snapshot copy. When a mission's
// progress reaches its target the ACTIVE→COMPLETED transition and the
// pointsReward land in the same snapshot, so they commit in the same write —
// there is no partial state where progress equals target but the reward is
// still pending.
func (a *Applier) buildNext(ev domain.ActivityEvent, snap domain.UserSnapshot, delta domain.RewardDelta) (domain.UserSnapshot, domain.AppliedEvent, error) {
	next := snap.Clone()
	next.Version = snap.Version + 1

	applied := domain.AppliedEvent{
		UserID:       ev.UserID,
		SubmissionID: ev.SubmissionID,
		Kind:         ev.Kind,
		Points:       delta.Points,
		CO2Kg:        delta.CO2Kg,
		WeightKg:     delta.WeightKg,
		Category:     delta.Category,
		AppliedAt:    time.Now(),
	}

	next.PointsBalance += delta.Points
	next.CO2SavedKg += delta.CO2Kg
	next.TotalWeightKg += delta.WeightKg
	if delta.Category != "" {
		next.PerCategoryKg[delta.Category] += delta.WeightKg
	}
	if ev.Kind == domain.EventWasteSubmission {
		next.SubmissionCount++
	}

	if ev.Kind == domain.EventMissionJoin {
		next.Missions[ev.Join.MissionID] = domain.UserMission{
			MissionID: ev.Join.MissionID,
			Status:    domain.MissionActive,
			JoinedAt:  ev.OccurredAt,
		}
	}

	for missionID, progress := range delta.MissionProgress {
		um, ok := next.Missions[missionID]
		if !ok || um.Status != domain.MissionActive {
			continue
		}
		def, ok := a.catalog.Mission(missionID)
		if !ok {
			continue
		}

		um.Progress += progress
		if um.Progress >= def.TargetValue {
			um.Status = domain.MissionCompleted
			um.CompletedAt = applied.AppliedAt
			next.PointsBalance += def.PointsReward
			applied.Points += def.PointsReward
			applied.CompletedMissions = append(applied.CompletedMissions, missionID)
		}
		next.Missions[missionID] = um
	}

	return next, applied, nil
}

// checkInvariants re-validates the post-state before commit.
func (a *Applier) checkInvariants(prev, next domain.UserSnapshot) error {
	if next.Version != prev.Version+1 {
		return fmt.Errorf("%w: version %d -> %d", domain.ErrInvariantViolation, prev.Version, next.Version)
	}
	if next.PointsBalance < 0 || next.TotalWeightKg < 0 || next.CO2SavedKg < 0 || next.SubmissionCount < 0 {
		return fmt.Errorf("%w: negative balance", domain.ErrInvariantViolation)
	}
	for cat, kg := range next.PerCategoryKg {
		if kg < 0 {
			return fmt.Errorf("%w: negative weight for category %s", domain.ErrInvariantViolation, cat)
		}
	}
	for id, um := range next.Missions {
		if um.Progress < 0 {
			return fmt.Errorf("%w: negative progress for mission %s", domain.ErrInvariantViolation, id)
		}
		if def, ok := a.catalog.Mission(id); ok && um.Progress > def.TargetValue {
			return fmt.Errorf("%w: mission %s progress %g exceeds target %g",
				domain.ErrInvariantViolation, id, um.Progress, def.TargetValue)
		}
		if prev, ok := prev.Missions[id]; ok && um.Progress < prev.Progress {
			return fmt.Errorf("%w: mission %s progress decreased", domain.ErrInvariantViolation, id)
		}
	}
	return nil
}

// replayResult reconstructs the caller-visible result for a duplicate
// delivery from the stored idempotency record.
func replayResult(snap domain.UserSnapshot, applied *domain.AppliedEvent) domain.ApplyResult {
	return domain.ApplyResult{
		Snapshot:          snap,
		PointsAwarded:     applied.Points,
		CO2SavedKg:        applied.CO2Kg,
		CompletedMissions: applied.CompletedMissions,
		Replayed:          true,
	}
}
