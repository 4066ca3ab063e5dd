package catalog

import "github.com/reloop-eco/reloop/internal/domain"

// ─── Badge Definitions ──────────────────────────────────────────────────────
// Badges are one-time awards with stat-based predicates over the committed
// snapshot. Once granted they are never revoked or re-granted.

// AllBadges returns the full badge catalog.
func AllBadges() []domain.BadgeDefinition {
	return []domain.BadgeDefinition{
		// ── Getting started ────────────────────────────────────────────
		{
			ID: "first_drop", Name: "First Drop", Icon: "♻️",
			Description: "Record your first recycling submission",
			Predicate:   func(s domain.UserSnapshot) bool { return s.SubmissionCount >= 1 },
		},
		{
			ID: "ten_drops", Name: "Regular", Icon: "📦",
			Description: "Record 10 submissions",
			Predicate:   func(s domain.UserSnapshot) bool { return s.SubmissionCount >= 10 },
		},

		// ── Weight milestones ──────────────────────────────────────────
		{
			ID: "weight_10", Name: "Getting Heavy", Icon: "⚖️",
			Description: "Recycle 10 kg in total",
			Predicate:   func(s domain.UserSnapshot) bool { return s.TotalWeightKg >= 10 },
		},
		{
			ID: "weight_100", Name: "Century Hauler", Icon: "🏋️",
			Description: "Recycle 100 kg in total",
			Predicate:   func(s domain.UserSnapshot) bool { return s.TotalWeightKg >= 100 },
		},
		{
			ID: "weight_1000", Name: "Tonne Titan", Icon: "🏆",
			Description: "Recycle 1000 kg in total",
			Predicate:   func(s domain.UserSnapshot) bool { return s.TotalWeightKg >= 1000 },
		},

		// ── Impact ─────────────────────────────────────────────────────
		{
			ID: "co2_50", Name: "Air Saver", Icon: "🌬️",
			Description: "Avoid 50 kg of CO₂",
			Predicate:   func(s domain.UserSnapshot) bool { return s.CO2SavedKg >= 50 },
		},
		{
			ID: "co2_500", Name: "Climate Guardian", Icon: "🌍",
			Description: "Avoid 500 kg of CO₂",
			Predicate:   func(s domain.UserSnapshot) bool { return s.CO2SavedKg >= 500 },
		},

		// ── Points ─────────────────────────────────────────────────────
		{
			ID: "points_1000", Name: "Point Collector", Icon: "💰",
			Description: "Reach 1000 points",
			Predicate:   func(s domain.UserSnapshot) bool { return s.PointsBalance >= 1000 },
		},

		// ── Variety & missions ─────────────────────────────────────────
		{
			ID: "all_rounder", Name: "All-Rounder", Icon: "🎯",
			Description: "Recycle in 4 different categories",
			Predicate:   func(s domain.UserSnapshot) bool { return s.CategoryCount() >= 4 },
		},
		{
			ID: "mission_first", Name: "Mission Accomplished", Icon: "🚀",
			Description: "Complete your first mission",
			Predicate:   func(s domain.UserSnapshot) bool { return s.CompletedMissionCount() >= 1 },
		},
		{
			ID: "mission_five", Name: "Serial Finisher", Icon: "⭐",
			Description: "Complete 5 missions",
			Predicate:   func(s domain.UserSnapshot) bool { return s.CompletedMissionCount() >= 5 },
		},
	}
}
