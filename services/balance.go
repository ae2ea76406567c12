package services

import (
	"math"
	"time"

	"idle-kingdom-server/models"
)

// Simulation clock widths
const (
	RoundDuration  = 1 * time.Second  // one combat round
	RegenTickWidth = 10 * time.Second // one troop-regeneration tick
)

// Regeneration tuning: each tick heals ceil(10%) of a hero's capacity and
// costs one food per troop healed.
const (
	RegenFractionPerTick = 0.10
	RegenFoodPerTroop    = 1.0
)

type ResourceCost struct {
	Food float64 `json:"food"`
	Wood float64 `json:"wood"`
	Iron float64 `json:"iron"`
}

// BuildingStats is the balance-table row for one (type, level): the cost and
// duration of upgrading TO that level, and the hourly production AT it.
type BuildingStats struct {
	Cost       ResourceCost  `json:"cost"`
	Production float64       `json:"production"`
	Duration   time.Duration `json:"-"`
}

// Geometric curves per building type (cost and production both compound per level).
type buildingFormula struct {
	costBase   float64
	prodBase   float64
	costFactor float64
	prodFactor float64
}

var buildingFormulas = map[string]buildingFormula{
	models.BuildingSawmill:  {costBase: 100, prodBase: 100, costFactor: 1.5, prodFactor: 1.2},
	models.BuildingFarm:     {costBase: 150, prodBase: 120, costFactor: 1.5, prodFactor: 1.2},
	models.BuildingIronMine: {costBase: 500, prodBase: 50, costFactor: 1.6, prodFactor: 1.15},
}

// StatsFor resolves the balance table for a building type at a given level.
// The second return is false for unknown types or levels below 1.
func StatsFor(buildingType string, level int) (BuildingStats, bool) {
	f, ok := buildingFormulas[buildingType]
	if !ok || level < 1 {
		return BuildingStats{}, false
	}

	cost := math.Floor(f.costBase * math.Pow(f.costFactor, float64(level-1)))
	production := math.Floor(f.prodBase * math.Pow(f.prodFactor, float64(level-1)))

	return BuildingStats{
		Cost:       ResourceCost{Wood: cost},
		Production: production,
		Duration:   time.Duration(level*5) * time.Second,
	}, true
}

// producedResource maps a building type to the resource it generates.
func producedResource(buildingType string) string {
	switch buildingType {
	case models.BuildingFarm:
		return "food"
	case models.BuildingSawmill:
		return "wood"
	case models.BuildingIronMine:
		return "iron"
	}
	return ""
}

// XPForNextLevel is the experience required to go from level to level+1
// (100 * level^2: L1→2 costs 100, L2→3 costs 400, L3→4 costs 900).
func XPForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return 100 * int64(level) * int64(level)
}

// LevelRewards lists building types granted when a profile reaches a level.
var LevelRewards = map[int][]string{
	5:  {models.BuildingFarm},
	10: {models.BuildingSawmill},
	15: {models.BuildingFarm},
	20: {models.BuildingSawmill, models.BuildingIronMine},
	25: {models.BuildingFarm, models.BuildingIronMine},
	30: {models.BuildingSawmill, models.BuildingIronMine},
}

type HeroStats struct {
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	MaxTroops int `json:"max_troops"`
}

var heroBaseStats = map[string]HeroStats{
	models.HeroWarrior: {Attack: 10, Defense: 10, MaxTroops: 100},
	models.HeroArcher:  {Attack: 15, Defense: 5, MaxTroops: 80},
	models.HeroGoblin:  {Attack: 5, Defense: 2, MaxTroops: 50},
}

// HeroBaseStats returns the base stats for a hero type, falling back to the
// warrior line for unknown types.
func HeroBaseStats(heroType string) HeroStats {
	if stats, ok := heroBaseStats[heroType]; ok {
		return stats
	}
	return heroBaseStats[models.HeroWarrior]
}
