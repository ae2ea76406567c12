package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerProfile is the root record of a player's kingdom. All offline progress
// is reconciled against its cursor fields: LastUpdate marks how far resource
// accrual has been paid out, LastRegenUpdate how far troop regeneration has
// been ticked. LastRegenUpdate may lag LastUpdate by a fractional tick.
type PlayerProfile struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"uniqueIndex;not null"` // links to auth/profile service

	// Resource stocks (real-valued, accrued lazily)
	Food float64 `json:"food" gorm:"default:0"`
	Wood float64 `json:"wood" gorm:"default:0"`
	Iron float64 `json:"iron" gorm:"default:0"`

	// Hourly production rates, recomputed from the buildings' stored levels
	FoodPerHour float64 `json:"food_per_hour" gorm:"default:0"`
	WoodPerHour float64 `json:"wood_per_hour" gorm:"default:0"`
	IronPerHour float64 `json:"iron_per_hour" gorm:"default:0"`

	// Progression
	Level      int   `json:"level" gorm:"default:1"`
	Experience int64 `json:"experience" gorm:"default:0"`

	// Simulation cursors
	LastUpdate      time.Time `json:"last_update"`
	LastRegenUpdate time.Time `json:"last_regen_update"`

	Buildings []Building `json:"buildings" gorm:"foreignKey:ProfileID"`
	Heroes    []Hero     `json:"heroes" gorm:"foreignKey:ProfileID"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
