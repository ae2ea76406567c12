package services

import (
	"errors"
	"log"

	"idle-kingdom-server/models"

	"gorm.io/gorm"
)

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// GrantExperience adds XP and applies level-ups atomically: while the stock
// covers the next level's requirement (100 * level^2) it is consumed, the
// level bumps, and any buildings configured as rewards for the reached level
// are granted. Repeated calls with amount 0 are no-ops.
func (s *ProgressionService) GrantExperience(userID string, amount int64) (*models.PlayerProfile, error) {
	var updated *models.PlayerProfile
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var profile models.PlayerProfile
		if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return err
		}

		xp := profile.Experience + amount
		level := profile.Level
		leveledUp := false

		for xp >= XPForNextLevel(level) {
			xp -= XPForNextLevel(level)
			level++
			leveledUp = true

			for _, rewardType := range LevelRewards[level] {
				// one building per (profile, type); an existing one absorbs the reward
				var count int64
				if err := tx.Model(&models.Building{}).
					Where("profile_id = ? AND type = ?", profile.ID, rewardType).
					Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}

				reward := models.Building{
					ProfileID: profile.ID,
					Type:      rewardType,
					Level:     1,
					Status:    models.BuildingStatusActive,
				}
				if err := tx.Create(&reward).Error; err != nil {
					return err
				}
			}
		}

		if xp == profile.Experience && level == profile.Level {
			updated = &profile
			return nil
		}

		if err := tx.Model(&profile).Updates(map[string]interface{}{
			"experience": xp,
			"level":      level,
		}).Error; err != nil {
			return err
		}
		profile.Experience = xp
		profile.Level = level

		if leveledUp {
			log.Printf("🎮 Level up: user=%s → Lvl=%d (XP left: %d)", userID, level, xp)
			profiles := NewProfileService(s.DB, nil)
			if err := profiles.RecalculateProduction(tx, profile.ID); err != nil {
				return err
			}
		}

		updated = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
