package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reloop-eco/reloop/internal/domain"
)

// ─── Seeding ────────────────────────────────────────────────────────────────

// SeedMissions inserts catalog mission definitions that are not yet stored.
// Existing rows keep their participant counters.
func (d *DB) SeedMissions(ctx context.Context, defs []domain.MissionDefinition) error {
	for _, def := range defs {
		_, err := d.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO missions
				(id, type, title, target_value, points_reward, start_date, end_date, max_participants, participants)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			def.ID, string(def.Type), def.Title, def.TargetValue, def.PointsReward,
			def.StartDate.Unix(), def.EndDate.Unix(), def.MaxParticipants,
		)
		if err != nil {
			return fmt.Errorf("seed mission %s: %w", def.ID, err)
		}
	}
	return nil
}

// ─── Participant Slots ──────────────────────────────────────────────────────

// ReserveSlot claims a participant slot with a conditional counter bump.
// A zero max_participants means unlimited.
func (d *DB) ReserveSlot(ctx context.Context, missionID string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE missions SET participants = participants + 1
		 WHERE id = ? AND (max_participants = 0 OR participants < max_participants)`,
		missionID,
	)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := d.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM missions WHERE id = ?`, missionID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrMissionNotFound
		}
		return domain.ErrMissionFull
	}
	return nil
}

// ReleaseSlot returns a reserved slot after a failed or duplicate join.
func (d *DB) ReleaseSlot(ctx context.Context, missionID string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE missions SET participants = participants - 1
		 WHERE id = ? AND participants > 0`,
		missionID,
	)
	return err
}

// ParticipantCount reports the current reserved-slot count.
func (d *DB) ParticipantCount(ctx context.Context, missionID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT participants FROM missions WHERE id = ?`, missionID,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, domain.ErrMissionNotFound
	}
	return n, err
}

// ─── Expiry Sweep ───────────────────────────────────────────────────────────

// ExpireActive marks every ACTIVE participation in a past-deadline mission as
// EXPIRED and bumps the affected users' versions, so any in-flight
// compare-and-set built against the old state fails and re-reads.
func (d *DB) ExpireActive(ctx context.Context, now time.Time) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET version = version + 1
		 WHERE id IN (
			SELECT DISTINCT um.user_id FROM user_missions um
			JOIN missions m ON m.id = um.mission_id
			WHERE um.status = 'ACTIVE' AND m.end_date < ?
		 )`, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("bump user versions: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE user_missions SET status = 'EXPIRED'
		 WHERE status = 'ACTIVE' AND mission_id IN (
			SELECT id FROM missions WHERE end_date < ?
		 )`, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("expire participations: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// ─── Listing ────────────────────────────────────────────────────────────────

// MissionListing is a stored mission definition with its live counter.
type MissionListing struct {
	domain.MissionDefinition
	Participants int  `json:"participants"`
	Open         bool `json:"open"`
}

// ListMissions returns all stored missions ordered by end date.
func (d *DB) ListMissions(ctx context.Context, now time.Time) ([]MissionListing, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, type, title, target_value, points_reward, start_date, end_date, max_participants, participants
		 FROM missions ORDER BY end_date ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MissionListing
	for rows.Next() {
		var m MissionListing
		var start, end int64
		if err := rows.Scan(&m.ID, &m.Type, &m.Title, &m.TargetValue, &m.PointsReward,
			&start, &end, &m.MaxParticipants, &m.Participants); err != nil {
			return nil, err
		}
		m.StartDate = time.Unix(start, 0)
		m.EndDate = time.Unix(end, 0)
		m.Open = m.IsOpen(now) && (m.MaxParticipants == 0 || m.Participants < m.MaxParticipants)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMission returns one stored mission by id.
func (d *DB) GetMission(ctx context.Context, id string) (MissionListing, error) {
	var m MissionListing
	var start, end int64
	err := d.db.QueryRowContext(ctx,
		`SELECT id, type, title, target_value, points_reward, start_date, end_date, max_participants, participants
		 FROM missions WHERE id = ?`, id,
	).Scan(&m.ID, &m.Type, &m.Title, &m.TargetValue, &m.PointsReward,
		&start, &end, &m.MaxParticipants, &m.Participants)
	if err == sql.ErrNoRows {
		return m, domain.ErrMissionNotFound
	}
	if err != nil {
		return m, err
	}
	m.StartDate = time.Unix(start, 0)
	m.EndDate = time.Unix(end, 0)
	return m, nil
}
