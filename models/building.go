package models

import "time"

const (
	BuildingSawmill  = "SAWMILL"
	BuildingFarm     = "FARM"
	BuildingIronMine = "IRON_MINE"
)

const (
	BuildingStatusActive    = "ACTIVE"
	BuildingStatusUpgrading = "UPGRADING"
)

// Building belongs to one PlayerProfile; at most one per (profile, type).
// While UPGRADING it keeps producing at its current (pre-upgrade) level;
// the level bump happens only after ConstructionEndsAt has passed and the
// scheduler has observed it.
type Building struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ProfileID uint   `json:"profile_id" gorm:"index;not null"`
	Type      string `json:"type" gorm:"not null"`
	Level     int    `json:"level" gorm:"default:1"`
	Status    string `json:"status" gorm:"default:'ACTIVE'"`

	// Set only while Status == UPGRADING
	ConstructionEndsAt *time.Time `json:"construction_ends_at,omitempty"`

	Timestamps
}
