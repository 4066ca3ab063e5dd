package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/reloop-eco/reloop/internal/domain"
)

// AwardBadge records a badge award once. The second award of the same badge
// is a no-op and reports false, which keeps badge grants idempotent without
// a read-before-write.
func (d *DB) AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO badges (user_id, badge_id, awarded_at) VALUES (?, ?, ?)`,
		userID, badgeID, at.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("award badge %s: %w", badgeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBadges returns the user's awarded badges in award order.
func (d *DB) ListBadges(ctx context.Context, userID string) ([]domain.AwardedBadge, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT badge_id, awarded_at FROM badges WHERE user_id = ? ORDER BY awarded_at, badge_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AwardedBadge
	for rows.Next() {
		var b domain.AwardedBadge
		var at int64
		if err := rows.Scan(&b.BadgeID, &at); err != nil {
			return nil, err
		}
		b.UserID = userID
		b.AwardedAt = time.Unix(at, 0)
		out = append(out, b)
	}
	return out, rows.Err()
}
