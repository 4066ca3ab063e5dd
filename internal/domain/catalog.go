package domain

import "time"

// ─── Point Rules ────────────────────────────────────────────────────────────

// PointRule maps a waste category to its earning rates.
type PointRule struct {
	CategoryName   string  `json:"category_name" toml:"category"`
	PointsPerKg    float64 `json:"points_per_kg" toml:"points_per_kg"`
	CO2FactorPerKg float64 `json:"co2_factor_per_kg" toml:"co2_factor_per_kg"`
}

// ─── Missions ───────────────────────────────────────────────────────────────

// MissionType categorizes missions and decides which events advance them.
type MissionType string

const (
	MissionRecycling MissionType = "RECYCLING" // advanced by submission weight
	MissionCommunity MissionType = "COMMUNITY" // advanced by 1 per social action
	MissionEducation MissionType = "EDUCATION" // advanced by 1 per shared tip
	MissionChallenge MissionType = "CHALLENGE" // advanced by submitted item count
)

// MissionStatus is the per-user mission state machine.
// AVAILABLE is implicit (no UserMission row). COMPLETED and EXPIRED are
// terminal.
type MissionStatus string

const (
	MissionActive    MissionStatus = "ACTIVE"
	MissionCompleted MissionStatus = "COMPLETED"
	MissionExpired   MissionStatus = "EXPIRED"
)

// MissionDefinition describes one joinable mission.
// MaxParticipants of 0 means unlimited.
type MissionDefinition struct {
	ID              string      `json:"id" toml:"id"`
	Type            MissionType `json:"type" toml:"type"`
	Title           string      `json:"title" toml:"title"`
	Description     string      `json:"description" toml:"description"`
	TargetValue     float64     `json:"target_value" toml:"target_value"`
	PointsReward    int64       `json:"points_reward" toml:"points_reward"`
	StartDate       time.Time   `json:"start_date" toml:"start_date"`
	EndDate         time.Time   `json:"end_date" toml:"end_date"`
	MaxParticipants int         `json:"max_participants" toml:"max_participants"`
}

// IsOpen reports whether the mission accepts joins at the given time.
func (m MissionDefinition) IsOpen(now time.Time) bool {
	if !m.StartDate.IsZero() && now.Before(m.StartDate) {
		return false
	}
	if !m.EndDate.IsZero() && now.After(m.EndDate) {
		return false
	}
	return true
}

// IsExpired reports whether the mission deadline has passed.
func (m MissionDefinition) IsExpired(now time.Time) bool {
	return !m.EndDate.IsZero() && now.After(m.EndDate)
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// BadgeDefinition defines a one-time badge. The predicate is pure over the
// current snapshot, never over historical event sequences, so evaluation is
// stateless given the committed state.
type BadgeDefinition struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Icon        string                  `json:"icon"`
	Predicate   func(UserSnapshot) bool `json:"-"`
}

// AwardedBadge records when a badge was granted. Awards are append-only:
// never revoked, never recomputed.
type AwardedBadge struct {
	BadgeID   string    `json:"badge_id"`
	UserID    string    `json:"user_id"`
	AwardedAt time.Time `json:"awarded_at"`
}

// ─── Catalog ────────────────────────────────────────────────────────────────

// Catalog bundles the rule definitions the engine evaluates against.
// It is loaded once and treated as immutable during a processing cycle;
// a changed rate only affects events processed after the reload.
type Catalog struct {
	rules        map[string]PointRule
	socialPoints map[SocialActionKind]int64
	missions     map[string]MissionDefinition
	badges       []BadgeDefinition
}

// NewCatalog builds a catalog with keyed lookups.
func NewCatalog(rules []PointRule, social map[SocialActionKind]int64, missions []MissionDefinition, badges []BadgeDefinition) *Catalog {
	c := &Catalog{
		rules:        make(map[string]PointRule, len(rules)),
		socialPoints: make(map[SocialActionKind]int64, len(social)),
		missions:     make(map[string]MissionDefinition, len(missions)),
		badges:       badges,
	}
	for _, r := range rules {
		c.rules[r.CategoryName] = r
	}
	for k, v := range social {
		c.socialPoints[k] = v
	}
	for _, m := range missions {
		c.missions[m.ID] = m
	}
	return c
}

// Rule returns the point rule for a category.
func (c *Catalog) Rule(category string) (PointRule, bool) {
	r, ok := c.rules[category]
	return r, ok
}

// Rules returns all point rules.
func (c *Catalog) Rules() []PointRule {
	out := make([]PointRule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	return out
}

// SocialPoints returns the fixed point value for a social action kind.
func (c *Catalog) SocialPoints(kind SocialActionKind) (int64, bool) {
	p, ok := c.socialPoints[kind]
	return p, ok
}

// Mission returns a mission definition by id.
func (c *Catalog) Mission(id string) (MissionDefinition, bool) {
	m, ok := c.missions[id]
	return m, ok
}

// Missions returns all mission definitions.
func (c *Catalog) Missions() []MissionDefinition {
	out := make([]MissionDefinition, 0, len(c.missions))
	for _, m := range c.missions {
		out = append(out, m)
	}
	return out
}

// Badges returns all badge definitions.
func (c *Catalog) Badges() []BadgeDefinition {
	return c.badges
}
