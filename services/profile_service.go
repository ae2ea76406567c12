package services

import (
	"errors"
	"math"
	"sort"
	"time"

	"idle-kingdom-server/models"

	"gorm.io/gorm"
)

// Starting state for a fresh profile
const (
	startingFood = 1000
	startingWood = 1000
	startingIron = 500
)

// ProfileService owns the lazy reconciliation pipeline: every profile read
// settles finished constructions, advances the player's active battle, then
// pays out resource accrual and troop regeneration against a single "now".
type ProfileService struct {
	DB      *gorm.DB
	Battles *BattleService

	// Now is the injected clock; tests override it.
	Now func() time.Time
}

func NewProfileService(db *gorm.DB, battles *BattleService) *ProfileService {
	return &ProfileService{DB: db, Battles: battles, Now: time.Now}
}

// CreateProfile sets up a fresh kingdom: starting stocks, the three resource
// buildings at level 1 and the starter hero.
func (s *ProfileService) CreateProfile(userID string) (*models.PlayerProfile, error) {
	now := s.Now()
	profile := &models.PlayerProfile{
		UserID:          userID,
		Food:            startingFood,
		Wood:            startingWood,
		Iron:            startingIron,
		Level:           1,
		LastUpdate:      now,
		LastRegenUpdate: now,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return err
		}

		starters := []models.Building{
			{ProfileID: profile.ID, Type: models.BuildingSawmill, Level: 1, Status: models.BuildingStatusActive},
			{ProfileID: profile.ID, Type: models.BuildingFarm, Level: 1, Status: models.BuildingStatusActive},
			{ProfileID: profile.ID, Type: models.BuildingIronMine, Level: 1, Status: models.BuildingStatusActive},
		}
		if err := tx.Create(&starters).Error; err != nil {
			return err
		}

		base := HeroBaseStats(models.HeroWarrior)
		hero := models.Hero{
			ProfileID: &profile.ID,
			Name:      "General",
			Type:      models.HeroWarrior,
			Attack:    base.Attack,
			Defense:   base.Defense,
			Troops:    base.MaxTroops,
			MaxTroops: base.MaxTroops,
		}
		if err := tx.Create(&hero).Error; err != nil {
			return err
		}

		return s.RecalculateProduction(tx, profile.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.loadProfile(userID)
}

// GetProfile loads a profile and reconciles everything that happened since it
// was last observed. Returns ErrProfileNotFound if the user has no profile yet.
func (s *ProfileService) GetProfile(userID string) (*models.PlayerProfile, error) {
	profile, err := s.loadProfile(userID)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(profile, s.Now())
}

// Reconcile replays all elapsed simulation against one snapshot of "now":
// finished constructions first (they change production rates), then the active
// battle if any, then resource accrual and troop regeneration. Returns the
// refreshed profile.
func (s *ProfileService) Reconcile(profile *models.PlayerProfile, now time.Time) (*models.PlayerProfile, error) {
	if err := s.processFinishedConstructions(profile.ID, now); err != nil {
		return nil, err
	}

	if s.Battles != nil {
		for _, hero := range profile.Heroes {
			if hero.InBattle() {
				if err := s.Battles.ResolveBattleID(*hero.BattleID, now); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	// Reload; constructions and battle resolution may have touched rates and troops
	profile, err := s.loadProfile(profile.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.reconcileTicks(profile, now); err != nil {
		return nil, err
	}

	return s.loadProfile(profile.UserID)
}

// processFinishedConstructions applies every upgrade whose timer has elapsed:
// +1 level, back to ACTIVE, timer cleared, production recomputed.
func (s *ProfileService) processFinishedConstructions(profileID uint, now time.Time) error {
	var finished []models.Building
	if err := s.DB.Where("profile_id = ? AND status = ? AND construction_ends_at <= ?",
		profileID, models.BuildingStatusUpgrading, now).Find(&finished).Error; err != nil {
		return err
	}
	if len(finished) == 0 {
		return nil
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range finished {
			b := &finished[i]
			if err := tx.Model(b).Updates(map[string]interface{}{
				"level":                b.Level + 1,
				"status":               models.BuildingStatusActive,
				"construction_ends_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return s.RecalculateProduction(tx, profileID)
	})
}

// RecalculateProduction rebuilds the hourly rates from every building at its
// stored level. An UPGRADING building's stored level is still the pre-upgrade
// one, so it keeps contributing its old rate until the scheduler bumps it.
func (s *ProfileService) RecalculateProduction(db *gorm.DB, profileID uint) error {
	var buildings []models.Building
	if err := db.Where("profile_id = ?", profileID).Find(&buildings).Error; err != nil {
		return err
	}

	var food, wood, iron float64
	for _, b := range buildings {
		stats, ok := StatsFor(b.Type, b.Level)
		if !ok {
			continue
		}
		switch producedResource(b.Type) {
		case "food":
			food += stats.Production
		case "wood":
			wood += stats.Production
		case "iron":
			iron += stats.Production
		}
	}

	return db.Model(&models.PlayerProfile{}).Where("id = ?", profileID).
		Updates(map[string]interface{}{
			"food_per_hour": food,
			"wood_per_hour": wood,
			"iron_per_hour": iron,
		}).Error
}

// reconcileTicks pays out resource accrual and troop regeneration in one
// commit. The commit is guarded on the observed LastUpdate cursor: if a
// concurrent request already advanced it, this interval was paid out elsewhere
// and the whole pass becomes a no-op instead of a double payment.
func (s *ProfileService) reconcileTicks(profile *models.PlayerProfile, now time.Time) error {
	elapsed := now.Sub(profile.LastUpdate)
	if elapsed <= 0 {
		return nil
	}

	hours := elapsed.Hours()
	food := profile.Food + profile.FoodPerHour*hours
	wood := profile.Wood + profile.WoodPerHour*hours
	iron := profile.Iron + profile.IronPerHour*hours

	// Regeneration draws on the food stock as of after this accrual
	regen := planRegeneration(profile.Heroes, profile.LastRegenUpdate, now, food)
	food -= regen.foodSpent
	if food < 0 {
		food = 0
	}

	observedCursor := profile.LastUpdate
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PlayerProfile{}).
			Where("id = ? AND last_update = ?", profile.ID, observedCursor).
			Updates(map[string]interface{}{
				"food":              food,
				"wood":              wood,
				"iron":              iron,
				"last_update":       now,
				"last_regen_update": profile.LastRegenUpdate.Add(time.Duration(regen.ticks) * RegenTickWidth),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race; the winner already committed this interval
			return nil
		}

		for _, h := range regen.healed {
			if err := tx.Model(&models.Hero{}).Where("id = ?", h.heroID).
				Update("troops", h.troops).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

type heroHeal struct {
	heroID uint
	troops int // new troop count after healing
}

type regenPlan struct {
	ticks     int64
	foodSpent float64
	healed    []heroHeal
}

// planRegeneration computes the healing for every eligible hero over the whole
// ticks due. The regen cursor only ever advances by whole ticks, so the
// fractional remainder carries into the next invocation. Food is shared
// first-come-first-served in ascending hero id order; later heroes get partial
// or no healing once the stock runs dry.
func planRegeneration(heroes []models.Hero, lastRegen, now time.Time, foodBudget float64) regenPlan {
	ticks := int64(now.Sub(lastRegen) / RegenTickWidth)
	if ticks <= 0 {
		return regenPlan{}
	}
	plan := regenPlan{ticks: ticks}

	eligible := make([]models.Hero, 0, len(heroes))
	for _, h := range heroes {
		if h.ProfileID == nil || h.InBattle() || h.Troops >= h.MaxTroops {
			continue
		}
		eligible = append(eligible, h)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	remaining := foodBudget
	for _, h := range eligible {
		perTick := int64(math.Ceil(float64(h.MaxTroops) * RegenFractionPerTick))
		heal := ticks * perTick
		if missing := int64(h.MaxTroops - h.Troops); heal > missing {
			heal = missing
		}
		if affordable := int64(remaining / RegenFoodPerTroop); heal > affordable {
			heal = affordable
		}
		if heal <= 0 {
			continue
		}

		plan.healed = append(plan.healed, heroHeal{heroID: h.ID, troops: h.Troops + int(heal)})
		cost := float64(heal) * RegenFoodPerTroop
		plan.foodSpent += cost
		remaining -= cost
	}
	return plan
}

// RequestUpgrade starts an upgrade on an ACTIVE building of the given type:
// the cost is debited atomically with the status flip, and the level itself
// only bumps once the timer elapses and a later read observes it.
func (s *ProfileService) RequestUpgrade(userID, buildingType string) (*models.PlayerProfile, error) {
	// Settle pending timers before judging building state
	profile, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	var target *models.Building
	for i := range profile.Buildings {
		b := &profile.Buildings[i]
		if b.Type != buildingType {
			continue
		}
		if b.Status == models.BuildingStatusUpgrading {
			return nil, ErrAlreadyUpgrading
		}
		target = b
		break
	}
	if target == nil {
		if _, ok := buildingFormulas[buildingType]; !ok {
			return nil, ErrInvalidBuildingType
		}
		return nil, ErrBuildingNotAvailable
	}

	stats, ok := StatsFor(buildingType, target.Level+1)
	if !ok {
		return nil, ErrInvalidBuildingType
	}

	if profile.Food < stats.Cost.Food || profile.Wood < stats.Cost.Wood || profile.Iron < stats.Cost.Iron {
		return nil, ErrInsufficientResources
	}

	endsAt := s.Now().Add(stats.Duration)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PlayerProfile{}).Where("id = ?", profile.ID).
			Updates(map[string]interface{}{
				"food": profile.Food - stats.Cost.Food,
				"wood": profile.Wood - stats.Cost.Wood,
				"iron": profile.Iron - stats.Cost.Iron,
			}).Error; err != nil {
			return err
		}

		// Status guard: a racing upgrade request rolls the debit back
		res := tx.Model(&models.Building{}).
			Where("id = ? AND status = ?", target.ID, models.BuildingStatusActive).
			Updates(map[string]interface{}{
				"status":               models.BuildingStatusUpgrading,
				"construction_ends_at": endsAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUpgrading
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadProfile(userID)
}

// ResetProfile wipes the kingdom and recreates it from the starting state.
func (s *ProfileService) ResetProfile(userID string) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	err := s.DB.Where("user_id = ?", userID).First(&profile).Error
	switch {
	case err == nil:
		// Hard-delete so the unique user index frees up for the recreate
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Unscoped().Where("profile_id = ?", profile.ID).Delete(&models.Building{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("profile_id = ?", profile.ID).Delete(&models.Hero{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&profile).Error
		})
		if err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// nothing to wipe
	default:
		return nil, err
	}

	return s.CreateProfile(userID)
}

func (s *ProfileService) loadProfile(userID string) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	err := s.DB.
		Preload("Buildings", func(db *gorm.DB) *gorm.DB { return db.Order("buildings.id ASC") }).
		Preload("Heroes", func(db *gorm.DB) *gorm.DB { return db.Order("heroes.id ASC") }).
		Where("user_id = ?", userID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
