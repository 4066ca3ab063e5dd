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

// Engine wires the pipeline stages together. One Process call is one short
// synchronous unit of work, safe to run from any goroutine; the engine holds
// no per-request state.
type Engine struct {
	normalizer *Normalizer
	applier    *Applier
	badges     *BadgeEvaluator
	notifier   domain.Notifier
}

// New assembles an engine over the given stores and catalog.
func New(ledger domain.LedgerStore, missions domain.MissionStore, badgeStore domain.BadgeStore,
	cat *domain.Catalog, notifier domain.Notifier, reward RewardConfig, apply ApplyConfig) *Engine {
	return &Engine{
		normalizer: NewNormalizer(cat),
		applier:    NewApplier(ledger, missions, cat, reward, apply),
		badges:     NewBadgeEvaluator(badgeStore, cat),
		notifier:   notifier,
	}
}

// Process ingests one raw activity event end to end:
// normalize → calculate+apply → evaluate badges → notify.
// A failed event yields no points and no partial mission progress — effects
// are all-or-nothing per event.
func (e *Engine) Process(ctx context.Context, raw RawEvent) (domain.ApplyResult, error) {
	start := time.Now()

	ev, err := e.normalizer.Normalize(raw)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		return domain.ApplyResult{}, err
	}

	res, err := e.applier.Apply(ctx, ev)
	if err != nil {
		metrics.EventsRejected.WithLabelValues(rejectReason(err)).Inc()
		return res, err
	}
	if res.Replayed {
		metrics.EventsReplayed.Inc()
		return res, nil
	}

	// Badge evaluation reads the committed snapshot. A failure here is
	// logged, not surfaced: the apply has already committed and the next
	// event re-evaluates the same predicates.
	newBadges, err := e.badges.Evaluate(ctx, res.Snapshot)
	if err != nil {
		log.Printf("[engine] badge evaluation user=%s: %v", ev.UserID, err)
	}
	res.NewBadges = newBadges
	for _, id := range newBadges {
		res.Snapshot.AwardedBadgeIDs = append(res.Snapshot.AwardedBadgeIDs, id)
	}

	e.recordMetrics(ev, res)
	e.notify(ev, res)

	metrics.ProcessLatency.Observe(time.Since(start).Seconds())
	return res, nil
}

// Normalize exposes pure validation (used by the API for classify-only flows).
func (e *Engine) Normalize(raw RawEvent) (domain.ActivityEvent, error) {
	return e.normalizer.Normalize(raw)
}

// SweepExpired transitions ACTIVE participations in missions past their end
// date to EXPIRED with no reward. Invoked on a fixed schedule and on demand;
// idempotent if run multiple times for the same period.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.applier.missions.ExpireActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired missions: %w", err)
	}
	if n > 0 {
		log.Printf("[engine] sweep expired %d mission participations", n)
		metrics.MissionsExpired.Add(float64(n))
	}
	return n, nil
}

func (e *Engine) recordMetrics(ev domain.ActivityEvent, res domain.ApplyResult) {
	metrics.EventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
	if res.PointsAwarded > 0 {
		metrics.PointsAwarded.Add(float64(res.PointsAwarded))
	}
	if res.CO2SavedKg > 0 {
		metrics.CO2SavedKg.Add(res.CO2SavedKg)
	}
	metrics.MissionsCompleted.Add(float64(len(res.CompletedMissions)))
	metrics.BadgesAwarded.Add(float64(len(res.NewBadges)))
}

// notify emits post-commit notifications. Fire-and-forget: the notifier's
// failure handling never reaches the committed state change.
func (e *Engine) notify(ev domain.ActivityEvent, res domain.ApplyResult) {
	if e.notifier == nil {
		return
	}

	if res.PointsAwarded > 0 {
		e.notifier.Notify(domain.Notification{
			UserID: ev.UserID,
			Kind:   domain.NotifyPointsAwarded,
			Title:  "Points earned",
			Body:   fmt.Sprintf("You earned %d points", res.PointsAwarded),
		})
	}
	for _, missionID := range res.CompletedMissions {
		e.notifier.Notify(domain.Notification{
			UserID: ev.UserID,
			Kind:   domain.NotifyMissionCompleted,
			Title:  "Mission completed",
			Body:   fmt.Sprintf("Mission %s completed", missionID),
		})
	}
	for _, badgeID := range res.NewBadges {
		e.notifier.Notify(domain.Notification{
			UserID: ev.UserID,
			Kind:   domain.NotifyBadgeUnlocked,
			Title:  "Badge unlocked",
			Body:   fmt.Sprintf("Badge %s unlocked", badgeID),
		})
	}
}

func rejectReason(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case errors.Is(err, domain.ErrConflictExhausted):
		return "conflict"
	default:
		return "internal"
	}
}
