// Package notify persists user-facing notifications under a delivery policy.
//
// The engine fires notifications after a snapshot commit; this service
// decides whether each one is actually written. Policy:
//   - At most MaxPerDay notifications per user per calendar day.
//   - Nothing during the quiet window (wall clock, may wrap midnight).
//
// Suppression is silent. A suppressed notification never fails the event
// that triggered it.
package notify

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/reloop-eco/reloop/internal/domain"
	"github.com/reloop-eco/reloop/internal/infra/metrics"
	"github.com/reloop-eco/reloop/internal/infra/sqlite"
)

// Service implements domain.Notifier on top of the notification log.
type Service struct {
	db     *sqlite.DB
	policy domain.NotificationPolicy
	now    func() time.Time
}

// New creates a notification service with the default policy.
func New(db *sqlite.DB) *Service {
	return NewWithPolicy(db, domain.DefaultNotificationPolicy())
}

// NewWithPolicy creates a notification service with a custom policy.
func NewWithPolicy(db *sqlite.DB, policy domain.NotificationPolicy) *Service {
	return &Service{db: db, policy: policy, now: time.Now}
}

// Notify records a notification if policy allows. Failures are logged and
// swallowed: the triggering event already committed.
func (s *Service) Notify(n domain.Notification) {
	if _, err := s.Create(context.Background(), n); err != nil {
		log.Printf("[notify] drop %s for %s: %v", n.Kind, n.UserID, err)
	}
}

// Create writes a notification subject to policy. It returns the stored id,
// or 0 when the policy suppressed it.
func (s *Service) Create(ctx context.Context, n domain.Notification) (int64, error) {
	now := s.now()

	if s.policy.MaxPerDay > 0 {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		count, err := s.db.CountNotificationsSince(ctx, n.UserID, midnight)
		if err != nil {
			return 0, err
		}
		if count >= s.policy.MaxPerDay {
			metrics.NotificationsSuppressed.Inc()
			return 0, nil
		}
	}

	if s.inQuietWindow(now) {
		metrics.NotificationsSuppressed.Inc()
		return 0, nil
	}

	n.CreatedAt = now
	n.Shown = false
	id, err := s.db.InsertNotification(ctx, n)
	if err != nil {
		return 0, err
	}
	metrics.NotificationsSent.WithLabelValues(string(n.Kind)).Inc()
	return id, nil
}

// Pending returns a user's unshown notifications, oldest first.
func (s *Service) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.db.ListPendingNotifications(ctx, userID, limit)
}

// MarkShown flags a notification as delivered.
func (s *Service) MarkShown(ctx context.Context, id int64) error {
	return s.db.MarkNotificationShown(ctx, id)
}

// Policy returns the active policy.
func (s *Service) Policy() domain.NotificationPolicy {
	return s.policy
}

func (s *Service) inQuietWindow(t time.Time) bool {
	start := minutesOfDay(s.policy.QuietStart)
	end := minutesOfDay(s.policy.QuietEnd)
	if start == end {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	if start > end {
		// Wraps midnight, e.g. 22:00–08:00.
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

func minutesOfDay(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}
