package engine

import (
	"context"
	"time"

	"github.com/reloop-eco/reloop/internal/domain"
)

// BadgeEvaluator checks badge criteria against committed snapshots.
// It runs strictly after a successful apply and awards through a separate
// atomic update: re-evaluating an already-awarded badge is a no-op, and a
// badge is never revoked.
type BadgeEvaluator struct {
	store   domain.BadgeStore
	catalog *domain.Catalog
}

// NewBadgeEvaluator creates a badge evaluator.
func NewBadgeEvaluator(store domain.BadgeStore, cat *domain.Catalog) *BadgeEvaluator {
	return &BadgeEvaluator{store: store, catalog: cat}
}

// Evaluate awards every badge whose predicate holds for the committed
// snapshot and is not yet in awardedBadgeIds. Returns the newly-awarded ids.
// The store's award is first-writer-wins, so a concurrent evaluation of the
// same user cannot grant a badge twice.
func (b *BadgeEvaluator) Evaluate(ctx context.Context, snap domain.UserSnapshot) ([]string, error) {
	var newlyAwarded []string

	for _, def := range b.catalog.Badges() {
		if snap.HasBadge(def.ID) {
			continue
		}
		if def.Predicate == nil || !def.Predicate(snap) {
			continue
		}

		isNew, err := b.store.AwardBadge(ctx, snap.UserID, def.ID, time.Now())
		if err != nil {
			return newlyAwarded, err
		}
		if isNew {
			newlyAwarded = append(newlyAwarded, def.ID)
		}
	}

	return newlyAwarded, nil
}

// Definitions returns all badge definitions (for display).
func (b *BadgeEvaluator) Definitions() []domain.BadgeDefinition {
	return b.catalog.Badges()
}
