package engine

import (
	"context"
	"testing"
	"time"

	"github.com/reloop-eco/reloop/internal/app/catalog"
	"github.com/reloop-eco/reloop/internal/domain"
)

func TestEvaluate_AwardsMatchingBadges(t *testing.T) {
	store := newMemBadges()
	b := NewBadgeEvaluator(store, catalog.Default())

	snap := domain.NewUserSnapshot("u1")
	snap.SubmissionCount = 1
	snap.TotalWeightKg = 12

	awarded, err := b.Evaluate(context.Background(), snap)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	want := map[string]bool{"first_drop": true, "weight_10": true}
	if len(awarded) != len(want) {
		t.Fatalf("awarded = %v, want %v", awarded, want)
	}
	for _, id := range awarded {
		if !want[id] {
			t.Errorf("unexpected badge %s", id)
		}
	}
}

func TestEvaluate_SkipsAlreadyAwarded(t *testing.T) {
	store := newMemBadges()
	b := NewBadgeEvaluator(store, catalog.Default())

	snap := domain.NewUserSnapshot("u1")
	snap.SubmissionCount = 1
	snap.AwardedBadgeIDs = []string{"first_drop"}

	awarded, err := b.Evaluate(context.Background(), snap)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if len(awarded) != 0 {
		t.Errorf("awarded = %v, want none", awarded)
	}
}

func TestEvaluate_StoreDerivesNewness(t *testing.T) {
	store := newMemBadges()
	b := NewBadgeEvaluator(store, catalog.Default())

	// The store already holds the badge (say, a concurrent evaluation won),
	// but the snapshot predates it. The award is not reported again.
	if _, err := store.AwardBadge(context.Background(), "u1", "first_drop", time.Now()); err != nil {
		t.Fatal(err)
	}
	snap := domain.NewUserSnapshot("u1")
	snap.SubmissionCount = 1

	awarded, err := b.Evaluate(context.Background(), snap)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	for _, id := range awarded {
		if id == "first_drop" {
			t.Error("first_drop reported as new despite existing award")
		}
	}
}

func TestBadgePredicates(t *testing.T) {
	defs := map[string]domain.BadgeDefinition{}
	for _, d := range catalog.AllBadges() {
		defs[d.ID] = d
	}

	snap := domain.NewUserSnapshot("u1")
	snap.PointsBalance = 1000
	snap.PerCategoryKg = map[string]float64{"PLASTIC": 1, "PAPER": 1, "GLASS": 1, "METAL": 1}
	snap.Missions["m1"] = domain.UserMission{Status: domain.MissionCompleted}

	cases := []struct {
		badge string
		want  bool
	}{
		{"points_1000", true},
		{"all_rounder", true},
		{"mission_first", true},
		{"mission_five", false},
		{"weight_1000", false},
	}
	for _, tc := range cases {
		if got := defs[tc.badge].Predicate(snap); got != tc.want {
			t.Errorf("%s predicate = %v, want %v", tc.badge, got, tc.want)
		}
	}
}
