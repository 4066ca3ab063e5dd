package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/reloop-eco/reloop/internal/domain"
)

// InsertNotification appends one notification to the delivery log.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, title, body, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		n.UserID, string(n.Kind), n.Title, n.Body, n.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// CountNotificationsSince counts a user's notifications created at or after
// the cutoff. The daily-cap policy reads this before inserting.
func (d *DB) CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND created_at >= ?`,
		userID, since.Unix(),
	).Scan(&n)
	return n, err
}

// ListPendingNotifications returns a user's not-yet-shown notifications,
// oldest first.
func (d *DB) ListPendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, kind, title, body, created_at, shown
		 FROM notifications WHERE user_id = ? AND shown = 0
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &createdAt, &n.Shown); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationShown flags one notification as delivered to the client.
func (d *DB) MarkNotificationShown(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE notifications SET shown = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %d not found", id)
	}
	return nil
}
