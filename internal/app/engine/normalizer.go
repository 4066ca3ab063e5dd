// Package engine implements the ReLoop reward pipeline:
// normalize → calculate → apply → evaluate badges.
// Each submission is processed as a single consistent unit — points, CO₂
// impact, mission progress, and badge unlocks either all commit or none do.
package engine

import (
	"strings"
	"time"

	"github.com/reloop-eco/reloop/internal/domain"
)

// RawEvent is the untyped input shape as it arrives from the API or CLI.
// Nothing downstream of the normalizer accepts unvalidated shapes.
type RawEvent struct {
	Kind         string   `json:"kind"`
	UserID       string   `json:"user_id"`
	SubmissionID string   `json:"submission_id"`

	// Waste submission fields
	CategoryName string   `json:"category_name,omitempty"`
	WeightKg     float64  `json:"weight_kg,omitempty"`
	Quantity     int      `json:"quantity,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`

	// Social action fields
	Action string `json:"action,omitempty"`

	// Mission join fields
	MissionID string `json:"mission_id,omitempty"`
}

// Normalizer validates raw events against the rule catalog and produces
// typed ActivityEvents. Pure validation — no side effects, no I/O.
type Normalizer struct {
	catalog *domain.Catalog
}

// NewNormalizer creates a normalizer bound to a catalog.
func NewNormalizer(cat *domain.Catalog) *Normalizer {
	return &Normalizer{catalog: cat}
}

// Normalize canonicalizes raw into a typed event, or fails with a
// ValidationError. A failed event must not proceed to calculation.
func (n *Normalizer) Normalize(raw RawEvent) (domain.ActivityEvent, error) {
	var ev domain.ActivityEvent

	if strings.TrimSpace(raw.UserID) == "" {
		return ev, domain.Validationf("user_id", "must not be empty")
	}
	if strings.TrimSpace(raw.SubmissionID) == "" {
		return ev, domain.Validationf("submission_id", "idempotency key must not be empty")
	}

	ev.UserID = raw.UserID
	ev.SubmissionID = raw.SubmissionID
	ev.OccurredAt = time.Now()

	switch domain.EventKind(raw.Kind) {
	case domain.EventWasteSubmission:
		return n.normalizeWaste(ev, raw)
	case domain.EventSocialAction:
		return n.normalizeSocial(ev, raw)
	case domain.EventMissionJoin:
		return n.normalizeJoin(ev, raw)
	default:
		return ev, domain.Validationf("kind", "unknown event kind %q", raw.Kind)
	}
}

func (n *Normalizer) normalizeWaste(ev domain.ActivityEvent, raw RawEvent) (domain.ActivityEvent, error) {
	if raw.WeightKg <= 0 {
		return ev, domain.Validationf("weight_kg", "must be positive, got %g", raw.WeightKg)
	}
	if raw.Quantity < 1 {
		return ev, domain.Validationf("quantity", "must be at least 1, got %d", raw.Quantity)
	}
	category := strings.ToUpper(strings.TrimSpace(raw.CategoryName))
	if _, ok := n.catalog.Rule(category); !ok {
		return ev, domain.Validationf("category_name", "unknown category %q", raw.CategoryName)
	}
	if raw.Confidence != nil {
		if c := *raw.Confidence; c < 0 || c > 1 {
			return ev, domain.Validationf("confidence", "must be in [0,1], got %g", c)
		}
	}

	ev.Kind = domain.EventWasteSubmission
	ev.Waste = &domain.WasteSubmission{
		CategoryName: category,
		WeightKg:     raw.WeightKg,
		Quantity:     raw.Quantity,
		Confidence:   raw.Confidence,
	}
	return ev, nil
}

func (n *Normalizer) normalizeSocial(ev domain.ActivityEvent, raw RawEvent) (domain.ActivityEvent, error) {
	kind := domain.SocialActionKind(strings.ToUpper(strings.TrimSpace(raw.Action)))
	if _, ok := n.catalog.SocialPoints(kind); !ok {
		return ev, domain.Validationf("action", "unknown social action %q", raw.Action)
	}

	ev.Kind = domain.EventSocialAction
	ev.Social = &domain.SocialAction{Action: kind}
	return ev, nil
}

func (n *Normalizer) normalizeJoin(ev domain.ActivityEvent, raw RawEvent) (domain.ActivityEvent, error) {
	if strings.TrimSpace(raw.MissionID) == "" {
		return ev, domain.Validationf("mission_id", "must not be empty")
	}
	// Existence is the applier's call: it resolves the mission when it
	// reserves the participant slot.

	ev.Kind = domain.EventMissionJoin
	ev.Join = &domain.MissionJoin{MissionID: raw.MissionID}
	return ev, nil
}
