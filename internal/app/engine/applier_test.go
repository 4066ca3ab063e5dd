package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/reloop-eco/reloop/internal/app/catalog"
	"github.com/reloop-eco/reloop/internal/domain"
	"github.com/reloop-eco/reloop/internal/infra/sqlite"
)

// ─── In-Memory Stores ───────────────────────────────────────────────────────

type memLedger struct {
	mu      sync.Mutex
	snaps   map[string]domain.UserSnapshot
	applied map[string]domain.AppliedEvent

	// injectConflicts makes the next N CompareAndSet calls fail with a
	// version conflict without touching state.
	injectConflicts int
	casCalls        int
}

func newMemLedger(userIDs ...string) *memLedger {
	m := &memLedger{
		snaps:   map[string]domain.UserSnapshot{},
		applied: map[string]domain.AppliedEvent{},
	}
	for _, id := range userIDs {
		m.snaps[id] = domain.NewUserSnapshot(id)
	}
	return m
}

func (m *memLedger) GetSnapshot(ctx context.Context, userID string) (domain.UserSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[userID]
	if !ok {
		return domain.UserSnapshot{}, domain.ErrUserNotFound
	}
	return snap.Clone(), nil
}

func (m *memLedger) CompareAndSet(ctx context.Context, expectedVersion int64, next domain.UserSnapshot, applied domain.AppliedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.casCalls++
	if m.injectConflicts > 0 {
		m.injectConflicts--
		return domain.ErrVersionConflict
	}
	cur, ok := m.snaps[next.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	if _, dup := m.applied[applied.UserID+"|"+applied.SubmissionID]; dup {
		return domain.ErrVersionConflict
	}
	m.snaps[next.UserID] = next.Clone()
	m.applied[applied.UserID+"|"+applied.SubmissionID] = applied
	return nil
}

func (m *memLedger) LookupApplied(ctx context.Context, userID, submissionID string) (*domain.AppliedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.applied[userID+"|"+submissionID]; ok {
		out := ev
		return &out, nil
	}
	return nil, nil
}

type memMissions struct {
	mu           sync.Mutex
	participants map[string]int
	max          map[string]int
	known        map[string]bool
}

func newMemMissions(cat *domain.Catalog) *memMissions {
	m := &memMissions{
		participants: map[string]int{},
		max:          map[string]int{},
		known:        map[string]bool{},
	}
	for _, def := range cat.Missions() {
		m.known[def.ID] = true
		m.max[def.ID] = def.MaxParticipants
	}
	return m
}

func (m *memMissions) ReserveSlot(ctx context.Context, missionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[missionID] {
		return domain.ErrMissionNotFound
	}
	if max := m.max[missionID]; max > 0 && m.participants[missionID] >= max {
		return domain.ErrMissionFull
	}
	m.participants[missionID]++
	return nil
}

func (m *memMissions) ReleaseSlot(ctx context.Context, missionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.participants[missionID] > 0 {
		m.participants[missionID]--
	}
	return nil
}

func (m *memMissions) ParticipantCount(ctx context.Context, missionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participants[missionID], nil
}

func (m *memMissions) ExpireActive(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTestApplier(ledger domain.LedgerStore, missions domain.MissionStore) (*Applier, *domain.Catalog) {
	cat := catalog.Default()
	cfg := DefaultApplyConfig()
	cfg.BaseDelay = time.Millisecond
	return NewApplier(ledger, missions, cat, DefaultRewardConfig(), cfg), cat
}

func mustApply(t *testing.T, a *Applier, ev domain.ActivityEvent) domain.ApplyResult {
	t.Helper()
	res, err := a.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("Apply(%s) error: %v", ev.SubmissionID, err)
	}
	return res
}

func joinEvent(sub, missionID string) domain.ActivityEvent {
	return domain.ActivityEvent{
		Kind:         domain.EventMissionJoin,
		UserID:       "u1",
		SubmissionID: sub,
		OccurredAt:   time.Now(),
		Join:         &domain.MissionJoin{MissionID: missionID},
	}
}

// ─── Apply ──────────────────────────────────────────────────────────────────

func TestApply_WasteCommits(t *testing.T) {
	ledger := newMemLedger("u1")
	a, _ := newTestApplier(ledger, newMemMissions(catalog.Default()))

	res := mustApply(t, a, wasteEvent("PLASTIC", 2.0, 1, nil))
	if res.PointsAwarded != 20 {
		t.Errorf("PointsAwarded = %d, want 20", res.PointsAwarded)
	}
	if res.Snapshot.Version != 1 {
		t.Errorf("Version = %d, want 1", res.Snapshot.Version)
	}
	if res.Snapshot.SubmissionCount != 1 {
		t.Errorf("SubmissionCount = %d, want 1", res.Snapshot.SubmissionCount)
	}
	if res.Snapshot.PerCategoryKg["PLASTIC"] != 2.0 {
		t.Errorf("PerCategoryKg = %v", res.Snapshot.PerCategoryKg)
	}
}

func TestApply_ReplayIsIdempotent(t *testing.T) {
	ledger := newMemLedger("u1")
	a, _ := newTestApplier(ledger, newMemMissions(catalog.Default()))

	first := mustApply(t, a, wasteEvent("PLASTIC", 2.0, 1, nil))
	second := mustApply(t, a, wasteEvent("PLASTIC", 2.0, 1, nil))

	if !second.Replayed {
		t.Error("second delivery Replayed = false, want true")
	}
	if second.PointsAwarded != first.PointsAwarded {
		t.Errorf("replay PointsAwarded = %d, want %d", second.PointsAwarded, first.PointsAwarded)
	}

	snap, _ := ledger.GetSnapshot(context.Background(), "u1")
	if snap.PointsBalance != 20 {
		t.Errorf("PointsBalance = %d, want 20 (applied once)", snap.PointsBalance)
	}
	if snap.Version != 1 {
		t.Errorf("Version = %d, want 1", snap.Version)
	}
}

func TestApply_RetriesOnConflict(t *testing.T) {
	ledger := newMemLedger("u1")
	ledger.injectConflicts = 2
	a, _ := newTestApplier(ledger, newMemMissions(catalog.Default()))

	res := mustApply(t, a, wasteEvent("PLASTIC", 2.0, 1, nil))
	if res.PointsAwarded != 20 {
		t.Errorf("PointsAwarded = %d, want 20 after retries", res.PointsAwarded)
	}
	if ledger.casCalls != 3 {
		t.Errorf("casCalls = %d, want 3 (2 conflicts + 1 success)", ledger.casCalls)
	}
}

func TestApply_ConflictExhausted(t *testing.T) {
	ledger := newMemLedger("u1")
	ledger.injectConflicts = 100
	a, _ := newTestApplier(ledger, newMemMissions(catalog.Default()))

	_, err := a.Apply(context.Background(), wasteEvent("PLASTIC", 2.0, 1, nil))
	if !errors.Is(err, domain.ErrConflictExhausted) {
		t.Fatalf("err = %v, want ErrConflictExhausted", err)
	}

	snap, _ := ledger.GetSnapshot(context.Background(), "u1")
	if snap.PointsBalance != 0 || snap.Version != 0 {
		t.Errorf("snapshot mutated by failed apply: %+v", snap)
	}
}

func TestApply_UnknownUser(t *testing.T) {
	a, _ := newTestApplier(newMemLedger(), newMemMissions(catalog.Default()))

	_, err := a.Apply(context.Background(), wasteEvent("PLASTIC", 2.0, 1, nil))
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestApply_CancelledContext(t *testing.T) {
	a, _ := newTestApplier(newMemLedger("u1"), newMemMissions(catalog.Default()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Apply(ctx, wasteEvent("PLASTIC", 2.0, 1, nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// ─── Missions ───────────────────────────────────────────────────────────────

func TestApply_JoinActivatesMission(t *testing.T) {
	missions := newMemMissions(catalog.Default())
	a, _ := newTestApplier(newMemLedger("u1"), missions)

	res := mustApply(t, a, joinEvent("j1", "plastic-sprint"))
	um, ok := res.Snapshot.Missions["plastic-sprint"]
	if !ok || um.Status != domain.MissionActive {
		t.Fatalf("mission state = %+v, want ACTIVE", um)
	}
	if res.PointsAwarded != 0 {
		t.Errorf("PointsAwarded = %d, want 0 for a join", res.PointsAwarded)
	}
	if n, _ := missions.ParticipantCount(context.Background(), "plastic-sprint"); n != 1 {
		t.Errorf("participants = %d, want 1", n)
	}
}

func TestApply_DoubleJoinRejected(t *testing.T) {
	missions := newMemMissions(catalog.Default())
	a, _ := newTestApplier(newMemLedger("u1"), missions)

	mustApply(t, a, joinEvent("j1", "plastic-sprint"))
	_, err := a.Apply(context.Background(), joinEvent("j2", "plastic-sprint"))
	if !errors.Is(err, domain.ErrMissionAlreadyJoined) {
		t.Fatalf("err = %v, want ErrMissionAlreadyJoined", err)
	}
	// The failed join must not leak a participant slot.
	if n, _ := missions.ParticipantCount(context.Background(), "plastic-sprint"); n != 1 {
		t.Errorf("participants = %d, want 1", n)
	}
}

func TestApply_JoinReplayReleasesDuplicateSlot(t *testing.T) {
	missions := newMemMissions(catalog.Default())
	a, _ := newTestApplier(newMemLedger("u1"), missions)

	mustApply(t, a, joinEvent("j1", "plastic-sprint"))
	// Same submission id again: a replay, not a second membership.
	res := mustApply(t, a, joinEvent("j1", "plastic-sprint"))
	if !res.Replayed {
		t.Error("Replayed = false, want true")
	}
	if n, _ := missions.ParticipantCount(context.Background(), "plastic-sprint"); n != 1 {
		t.Errorf("participants = %d, want 1 (replay must not double-count)", n)
	}
}

func TestApply_JoinUnknownMission(t *testing.T) {
	a, _ := newTestApplier(newMemLedger("u1"), newMemMissions(catalog.Default()))

	_, err := a.Apply(context.Background(), joinEvent("j1", "underwater-basket"))
	if !errors.Is(err, domain.ErrMissionNotFound) {
		t.Fatalf("err = %v, want ErrMissionNotFound", err)
	}
}

func TestApply_JoinFullMission(t *testing.T) {
	cat := catalog.Default()
	missions := newMemMissions(cat)
	// Saturate plastic-sprint's capacity.
	for _, def := range cat.Missions() {
		if def.ID == "plastic-sprint" {
			missions.participants["plastic-sprint"] = def.MaxParticipants
		}
	}
	a, _ := newTestApplier(newMemLedger("u1"), missions)

	_, err := a.Apply(context.Background(), joinEvent("j1", "plastic-sprint"))
	if !errors.Is(err, domain.ErrMissionFull) {
		t.Fatalf("err = %v, want ErrMissionFull", err)
	}
}

func TestApply_MissionCompletionRewardIsAtomic(t *testing.T) {
	ledger := newMemLedger("u1")
	a, cat := newTestApplier(ledger, newMemMissions(catalog.Default()))

	mustApply(t, a, joinEvent("j1", "plastic-sprint"))

	// Drive progress to 48 of 50.
	mustApply(t, a, wasteEvent2("s1", "PLASTIC", 48.0, 1))

	// The closing 5 kg drop caps progress at 50 and pays the mission reward
	// in the same committed snapshot.
	res := mustApply(t, a, wasteEvent2("s2", "PLASTIC", 5.0, 1))

	def, _ := cat.Mission("plastic-sprint")
	um := res.Snapshot.Missions["plastic-sprint"]
	if um.Status != domain.MissionCompleted {
		t.Errorf("Status = %s, want COMPLETED", um.Status)
	}
	if um.Progress != def.TargetValue {
		t.Errorf("Progress = %v, want %v (capped)", um.Progress, def.TargetValue)
	}
	if um.CompletedAt.IsZero() {
		t.Error("CompletedAt not stamped")
	}
	wantPoints := int64(50) + def.PointsReward // 5 kg × 10 pts + reward
	if res.PointsAwarded != wantPoints {
		t.Errorf("PointsAwarded = %d, want %d", res.PointsAwarded, wantPoints)
	}
	if len(res.CompletedMissions) != 1 || res.CompletedMissions[0] != "plastic-sprint" {
		t.Errorf("CompletedMissions = %v", res.CompletedMissions)
	}

	// Further drops no longer touch the completed mission.
	res = mustApply(t, a, wasteEvent2("s3", "PLASTIC", 2.0, 1))
	if got := res.Snapshot.Missions["plastic-sprint"].Progress; got != def.TargetValue {
		t.Errorf("Progress after completion = %v, want %v", got, def.TargetValue)
	}
}

func wasteEvent2(sub, category string, kg float64, qty int) domain.ActivityEvent {
	ev := wasteEvent(category, kg, qty, nil)
	ev.SubmissionID = sub
	return ev
}

// ─── Concurrency ────────────────────────────────────────────────────────────

func TestApply_ConcurrentNoLostUpdates(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()
	if err := db.RegisterUser(context.Background(), "u1"); err != nil {
		t.Fatalf("RegisterUser() error: %v", err)
	}

	cat := catalog.Default()
	cfg := ApplyConfig{MaxAttempts: 50, BaseDelay: time.Millisecond, MaxDelay: 20 * time.Millisecond}
	a := NewApplier(db, db, cat, DefaultRewardConfig(), cfg)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := wasteEvent2(fmt.Sprintf("s%d", i), "PLASTIC", 1.0, 1)
			if _, err := a.Apply(context.Background(), ev); err != nil {
				errs <- fmt.Errorf("worker %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	snap, err := db.GetSnapshot(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if snap.PointsBalance != workers*10 {
		t.Errorf("PointsBalance = %d, want %d (no lost updates)", snap.PointsBalance, workers*10)
	}
	if snap.Version != workers {
		t.Errorf("Version = %d, want %d", snap.Version, workers)
	}
	if snap.SubmissionCount != workers {
		t.Errorf("SubmissionCount = %d, want %d", snap.SubmissionCount, workers)
	}
}
