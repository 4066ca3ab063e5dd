// Package catalog loads the reward rule catalog: point rules per waste
// category, social action point values, mission definitions, and badges.
// The catalog is loaded once at startup and treated as immutable during a
// processing cycle — editing catalog.toml takes effect for events processed
// after the next reload, never retroactively.
package catalog

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/reloop-eco/reloop/internal/domain"
)

// File is the TOML shape of a catalog overlay file.
type File struct {
	Categories []domain.PointRule         `toml:"category"`
	Social     map[string]int64           `toml:"social"`
	Missions   []domain.MissionDefinition `toml:"mission"`
}

// Default returns the built-in rule catalog.
// Rates follow the reloop category table: points per kg and the CO₂-avoided
// factor per kg recycled.
func Default() *domain.Catalog {
	rules := []domain.PointRule{
		{CategoryName: "PLASTIC", PointsPerKg: 10, CO2FactorPerKg: 1.5},
		{CategoryName: "PAPER", PointsPerKg: 8, CO2FactorPerKg: 0.9},
		{CategoryName: "GLASS", PointsPerKg: 5, CO2FactorPerKg: 0.3},
		{CategoryName: "METAL", PointsPerKg: 15, CO2FactorPerKg: 2.1},
		{CategoryName: "ORGANIC", PointsPerKg: 3, CO2FactorPerKg: 0.25},
		{CategoryName: "ELECTRONICS", PointsPerKg: 20, CO2FactorPerKg: 5.0},
	}
	social := map[domain.SocialActionKind]int64{
		domain.SocialPostCreated:   5,
		domain.SocialTipShared:     8,
		domain.SocialHotspotReport: 10,
		domain.SocialComment:       2,
	}
	return domain.NewCatalog(rules, social, defaultMissions(time.Now()), AllBadges())
}

// defaultMissions seeds a starter mission set relative to now.
// Deployments normally replace these via catalog.toml.
func defaultMissions(now time.Time) []domain.MissionDefinition {
	month := now.AddDate(0, 1, 0)
	return []domain.MissionDefinition{
		{
			ID: "plastic-sprint", Type: domain.MissionRecycling,
			Title:       "Plastic Sprint",
			Description: "Recycle 50 kg of waste this month",
			TargetValue: 50, PointsReward: 500,
			StartDate: now, EndDate: month, MaxParticipants: 100,
		},
		{
			ID: "community-voice", Type: domain.MissionCommunity,
			Title:       "Community Voice",
			Description: "Contribute 10 community actions",
			TargetValue: 10, PointsReward: 150,
			StartDate: now, EndDate: month,
		},
		{
			ID: "eco-teacher", Type: domain.MissionEducation,
			Title:       "Eco Teacher",
			Description: "Share 5 recycling tips",
			TargetValue: 5, PointsReward: 100,
			StartDate: now, EndDate: month,
		},
		{
			ID: "item-hunter", Type: domain.MissionChallenge,
			Title:       "Item Hunter",
			Description: "Submit 30 individual items",
			TargetValue: 30, PointsReward: 300,
			StartDate: now, EndDate: month, MaxParticipants: 250,
		},
	}
}

// Load builds the catalog from the overlay file at path, falling back to
// defaults when the file does not exist. A section present in the file
// replaces the corresponding default section wholesale.
func Load(path string) (*domain.Catalog, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	rules := f.Categories
	if len(rules) == 0 {
		rules = Default().Rules()
	}
	for _, r := range rules {
		if r.CategoryName == "" || r.PointsPerKg < 0 || r.CO2FactorPerKg < 0 {
			return nil, fmt.Errorf("catalog category %q: rates must be non-negative", r.CategoryName)
		}
	}

	social := map[domain.SocialActionKind]int64{
		domain.SocialPostCreated:   5,
		domain.SocialTipShared:     8,
		domain.SocialHotspotReport: 10,
		domain.SocialComment:       2,
	}
	for k, v := range f.Social {
		social[domain.SocialActionKind(k)] = v
	}

	missions := f.Missions
	if len(missions) == 0 {
		missions = defaultMissions(time.Now())
	}
	for _, m := range missions {
		if m.ID == "" || m.TargetValue <= 0 {
			return nil, fmt.Errorf("catalog mission %q: target_value must be positive", m.ID)
		}
		if m.PointsReward < 0 {
			return nil, fmt.Errorf("catalog mission %q: points_reward must be non-negative", m.ID)
		}
	}

	return domain.NewCatalog(rules, social, missions, AllBadges()), nil
}
