package engine

import (
	"math"

	"github.com/reloop-eco/reloop/internal/domain"
)

// ─── Reward Calculation ─────────────────────────────────────────────────────
// points = round(weight × quantity × pointsPerKg), co2 = weight × quantity ×
// co2Factor. Pure and deterministic: the same event against the same snapshot
// always yields the same delta, so conflict retries can recompute safely.

// RewardConfig holds the tunable parts of the earning formula.
// The low-confidence penalty discourages self-reports the classifier was
// unsure about: below ConfidenceThreshold the point award is multiplied by
// ConfidencePenalty; at or above the threshold full credit applies.
type RewardConfig struct {
	ConfidenceThreshold float64
	ConfidencePenalty   float64
}

// DefaultRewardConfig returns the standard earning parameters.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		ConfidenceThreshold: 0.5,
		ConfidencePenalty:   0.5,
	}
}

// Calculate maps a normalized event and the current snapshot to a proposed
// delta. No I/O. Mission contributions are capped here so that
// progress + delta never exceeds the target — excess is discarded, not
// carried over. Capping is a calculation-time decision; the applier re-checks
// the ceiling and treats a violation as a logic bug.
func Calculate(ev domain.ActivityEvent, snap domain.UserSnapshot, cat *domain.Catalog, cfg RewardConfig) (domain.RewardDelta, error) {
	delta := domain.RewardDelta{SourceEventID: ev.SubmissionID}

	switch ev.Kind {
	case domain.EventWasteSubmission:
		rule, ok := cat.Rule(ev.Waste.CategoryName)
		if !ok {
			return delta, domain.ErrUnknownCategory
		}
		amount := ev.Waste.WeightKg * float64(ev.Waste.Quantity)
		points := amount * rule.PointsPerKg
		if c := ev.Waste.Confidence; c != nil && *c < cfg.ConfidenceThreshold {
			points *= cfg.ConfidencePenalty
		}
		delta.Points = int64(math.Round(points))
		delta.CO2Kg = amount * rule.CO2FactorPerKg
		delta.WeightKg = amount
		delta.Category = ev.Waste.CategoryName

	case domain.EventSocialAction:
		points, ok := cat.SocialPoints(ev.Social.Action)
		if !ok {
			return delta, domain.ErrUnknownSocialAction
		}
		delta.Points = points

	case domain.EventMissionJoin:
		// Joining itself earns nothing; the applier records the membership.
		return delta, nil
	}

	delta.MissionProgress = missionContributions(ev, snap, cat)
	return delta, nil
}

// missionContributions computes the capped progress delta for every active
// mission the event matches. An event contributes to all matching missions
// simultaneously — a single submission can advance several at once.
func missionContributions(ev domain.ActivityEvent, snap domain.UserSnapshot, cat *domain.Catalog) map[string]float64 {
	var out map[string]float64
	for _, id := range snap.ActiveMissionIDs() {
		def, ok := cat.Mission(id)
		if !ok {
			continue
		}

		contribution := contributionFor(ev, def.Type)
		if contribution <= 0 {
			continue
		}

		remaining := def.TargetValue - snap.Missions[id].Progress
		if remaining <= 0 {
			continue
		}
		if contribution > remaining {
			contribution = remaining
		}

		if out == nil {
			out = map[string]float64{}
		}
		out[id] = contribution
	}
	return out
}

// contributionFor returns the event's raw contribution to a mission type:
// weight for recycling missions, item count for challenges, 1 for community
// actions, 1 per shared tip for education missions.
func contributionFor(ev domain.ActivityEvent, mt domain.MissionType) float64 {
	switch mt {
	case domain.MissionRecycling:
		if ev.Kind == domain.EventWasteSubmission {
			return ev.Waste.WeightKg * float64(ev.Waste.Quantity)
		}
	case domain.MissionChallenge:
		if ev.Kind == domain.EventWasteSubmission {
			return float64(ev.Waste.Quantity)
		}
	case domain.MissionCommunity:
		if ev.Kind == domain.EventSocialAction {
			return 1
		}
	case domain.MissionEducation:
		if ev.Kind == domain.EventSocialAction && ev.Social.Action == domain.SocialTipShared {
			return 1
		}
	}
	return 0
}
