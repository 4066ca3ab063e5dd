package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reloop-eco/reloop/internal/app/catalog"
	"github.com/reloop-eco/reloop/internal/domain"
	"github.com/reloop-eco/reloop/internal/infra/sqlite"
)

type memBadges struct {
	mu      sync.Mutex
	awarded map[string]bool
}

func newMemBadges() *memBadges {
	return &memBadges{awarded: map[string]bool{}}
}

func (m *memBadges) AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + badgeID
	if m.awarded[key] {
		return false, nil
	}
	m.awarded[key] = true
	return true, nil
}

func (m *memBadges) ListBadges(ctx context.Context, userID string) ([]domain.AwardedBadge, error) {
	return nil, nil
}

type memNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (m *memNotifier) Notify(n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

func (m *memNotifier) kinds() []domain.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.NotificationKind, len(m.sent))
	for i, n := range m.sent {
		out[i] = n.Kind
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *memNotifier) {
	t.Helper()
	notifier := &memNotifier{}
	cat := catalog.Default()
	cfg := DefaultApplyConfig()
	cfg.BaseDelay = time.Millisecond
	eng := New(newMemLedger("u1"), newMemMissions(cat), newMemBadges(), cat, notifier, DefaultRewardConfig(), cfg)
	return eng, notifier
}

func TestProcess_EndToEnd(t *testing.T) {
	eng, notifier := newTestEngine(t)

	res, err := eng.Process(context.Background(), RawEvent{
		Kind:         "WASTE_SUBMISSION",
		UserID:       "u1",
		SubmissionID: "s1",
		CategoryName: "PLASTIC",
		WeightKg:     2.0,
		Quantity:     1,
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if res.PointsAwarded != 20 {
		t.Errorf("PointsAwarded = %d, want 20", res.PointsAwarded)
	}

	// First submission unlocks the first-drop badge.
	found := false
	for _, b := range res.NewBadges {
		if b == "first_drop" {
			found = true
		}
	}
	if !found {
		t.Errorf("NewBadges = %v, want first_drop", res.NewBadges)
	}
	if !res.Snapshot.HasBadge("first_drop") {
		t.Error("snapshot missing newly awarded badge")
	}

	// Points and badge notifications fired.
	kinds := notifier.kinds()
	hasPoints, hasBadge := false, false
	for _, k := range kinds {
		switch k {
		case domain.NotifyPointsAwarded:
			hasPoints = true
		case domain.NotifyBadgeUnlocked:
			hasBadge = true
		}
	}
	if !hasPoints || !hasBadge {
		t.Errorf("notification kinds = %v, want points + badge", kinds)
	}
}

func TestProcess_ValidationStopsPipeline(t *testing.T) {
	eng, notifier := newTestEngine(t)

	_, err := eng.Process(context.Background(), RawEvent{
		Kind:         "WASTE_SUBMISSION",
		UserID:       "u1",
		SubmissionID: "s1",
		CategoryName: "PLASTIC",
		WeightKg:     -1,
	})
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(notifier.kinds()) != 0 {
		t.Error("rejected event produced notifications")
	}
}

func TestProcess_ReplaySkipsBadgesAndNotifications(t *testing.T) {
	eng, notifier := newTestEngine(t)

	raw := RawEvent{
		Kind: "WASTE_SUBMISSION", UserID: "u1", SubmissionID: "s1",
		CategoryName: "PLASTIC", WeightKg: 2.0, Quantity: 1,
	}
	if _, err := eng.Process(context.Background(), raw); err != nil {
		t.Fatalf("first Process() error: %v", err)
	}
	sentBefore := len(notifier.kinds())

	res, err := eng.Process(context.Background(), raw)
	if err != nil {
		t.Fatalf("replay Process() error: %v", err)
	}
	if !res.Replayed {
		t.Error("Replayed = false")
	}
	if got := len(notifier.kinds()); got != sentBefore {
		t.Errorf("replay sent %d extra notifications", got-sentBefore)
	}
}

func TestProcess_MissionCompletedNotification(t *testing.T) {
	eng, notifier := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Process(ctx, RawEvent{
		Kind: "MISSION_JOIN", UserID: "u1", SubmissionID: "j1", MissionID: "eco-teacher",
	}); err != nil {
		t.Fatalf("join error: %v", err)
	}

	// eco-teacher targets 5 shared tips.
	for i := 0; i < 5; i++ {
		if _, err := eng.Process(ctx, RawEvent{
			Kind: "SOCIAL_ACTION", UserID: "u1",
			SubmissionID: "tip-" + string(rune('a'+i)), Action: "TIP_SHARED",
		}); err != nil {
			t.Fatalf("tip %d error: %v", i, err)
		}
	}

	completed := false
	for _, k := range notifier.kinds() {
		if k == domain.NotifyMissionCompleted {
			completed = true
		}
	}
	if !completed {
		t.Error("no mission-completed notification after reaching target")
	}
}

// ─── Expiry Sweep ───────────────────────────────────────────────────────────

func TestSweepExpired_EndsActiveParticipations(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("RegisterUser() error: %v", err)
	}

	// A catalog whose only mission is already past its deadline.
	expired := domain.MissionDefinition{
		ID:           "past-sprint",
		Type:         domain.MissionRecycling,
		Title:        "Past Sprint",
		TargetValue:  50,
		PointsReward: 500,
		StartDate:    time.Now().Add(-48 * time.Hour),
		EndDate:      time.Now().Add(-time.Hour),
	}
	cat := domain.NewCatalog(catalog.Default().Rules(), nil, []domain.MissionDefinition{expired}, nil)
	if err := db.SeedMissions(ctx, cat.Missions()); err != nil {
		t.Fatalf("SeedMissions() error: %v", err)
	}

	// Plant an ACTIVE participation directly; joining would be rejected now.
	snap, _ := db.GetSnapshot(ctx, "u1")
	next := snap.Clone()
	next.Version = 1
	next.Missions["past-sprint"] = domain.UserMission{
		MissionID: "past-sprint",
		Status:    domain.MissionActive,
		Progress:  20,
		JoinedAt:  time.Now().Add(-24 * time.Hour),
	}
	if err := db.CompareAndSet(ctx, 0, next, domain.AppliedEvent{
		UserID: "u1", SubmissionID: "j1", Kind: domain.EventMissionJoin, AppliedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CompareAndSet() error: %v", err)
	}

	cfg := DefaultApplyConfig()
	cfg.BaseDelay = time.Millisecond
	eng := New(db, db, db, cat, nil, DefaultRewardConfig(), cfg)

	n, err := eng.SweepExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("SweepExpired() error: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	got, _ := db.GetSnapshot(ctx, "u1")
	um := got.Missions["past-sprint"]
	if um.Status != domain.MissionExpired {
		t.Errorf("Status = %s, want EXPIRED", um.Status)
	}
	if um.Progress != 20 {
		t.Errorf("Progress = %v, want 20 (frozen, no reward)", um.Progress)
	}

	// Running again is a no-op.
	n, err = eng.SweepExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("second SweepExpired() error: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep expired = %d, want 0", n)
	}
}
