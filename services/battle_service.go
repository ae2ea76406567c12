package services

import (
	"errors"
	"fmt"
	"time"

	"idle-kingdom-server/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BattleService runs encounters. Battles progress lazily: every read resolves
// at most one due round, so the log stream drains at a steady cadence no
// matter how long nobody was watching.
type BattleService struct {
	DB *gorm.DB

	// Now is the injected clock; tests override it.
	Now func() time.Time
}

func NewBattleService(db *gorm.DB) *BattleService {
	return &BattleService{DB: db, Now: time.Now}
}

// StartEncounter opens a PvE battle for the user's first available hero
// against a freshly spawned monster.
func (s *BattleService) StartEncounter(userID string) (*models.Battle, error) {
	var profile models.PlayerProfile
	err := s.DB.
		Preload("Heroes", func(db *gorm.DB) *gorm.DB { return db.Order("heroes.id ASC") }).
		Where("user_id = ?", userID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	var champion *models.Hero
	for i := range profile.Heroes {
		h := &profile.Heroes[i]
		if h.Troops > 0 && !h.InBattle() {
			champion = h
			break
		}
	}
	if champion == nil {
		return nil, ErrNoAvailableHero
	}

	now := s.Now()
	var battle *models.Battle
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Transient monster: no profile, lives for this encounter only
		mobStats := HeroBaseStats(models.HeroGoblin)
		mob := &models.Hero{
			Name:      "Goblin Scout",
			Type:      models.HeroGoblin,
			Attack:    mobStats.Attack,
			Defense:   mobStats.Defense,
			Troops:    mobStats.MaxTroops,
			MaxTroops: mobStats.MaxTroops,
		}
		if err := tx.Create(mob).Error; err != nil {
			return err
		}

		battle = &models.Battle{
			Reference:  uuid.NewString(),
			Label:      fmt.Sprintf("%s vs %s", champion.Name, mob.Name),
			Status:     models.BattleInProgress,
			LastUpdate: now,
			Logs:       models.EventLog{},
			Pending:    models.PendingQueue{},
		}
		if err := tx.Create(battle).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Hero{}).Where("id = ?", champion.ID).
			Updates(map[string]interface{}{
				"battle_id":   battle.ID,
				"side":        models.SideAttacker,
				"queue_order": 0,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Hero{}).Where("id = ?", mob.ID).
			Updates(map[string]interface{}{
				"battle_id":   battle.ID,
				"side":        models.SideDefender,
				"queue_order": 0,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.loadBattle(battle.ID)
}

// GetBattle loads a battle, resolving at most one due round first if it is
// still in progress.
func (s *BattleService) GetBattle(battleID uint) (*models.Battle, error) {
	battle, err := s.loadBattle(battleID)
	if err != nil {
		return nil, err
	}

	if battle.Status == models.BattleInProgress {
		if err := s.ResolveBattle(battle, s.Now()); err != nil {
			return nil, err
		}
		return s.loadBattle(battleID)
	}
	return battle, nil
}

// ResolveBattleID is the entry point used by profile reconciliation, which
// only knows the id from the hero's battle link.
func (s *BattleService) ResolveBattleID(battleID uint, now time.Time) error {
	battle, err := s.loadBattle(battleID)
	if err != nil {
		return err
	}
	return s.ResolveBattle(battle, now)
}

// ResolveBattle advances an in-progress battle by at most one round if one is
// due, then persists the battle and every combatant. The commit is guarded on
// the observed round cursor: two concurrent reads can never both play the
// same round.
func (s *BattleService) ResolveBattle(b *models.Battle, now time.Time) error {
	if b.Status != models.BattleInProgress {
		return nil
	}

	roundsDue := int(now.Sub(b.LastUpdate) / RoundDuration)
	if roundsDue <= 0 {
		return nil
	}

	observedCursor := b.LastUpdate
	out := playRound(b)

	if out.finished {
		b.Status = models.BattleFinished
		// Survivors stay linked only while the battle runs
		for i := range b.Heroes {
			h := &b.Heroes[i]
			if h.InBattle() {
				h.Release()
				out.released = append(out.released, h.ID)
			}
		}
	}
	b.Logs = append(b.Logs, out.events...)

	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Battle{}).
			Where("id = ? AND last_update = ?", b.ID, observedCursor).
			Updates(map[string]interface{}{
				"status":      b.Status,
				"round":       b.Round,
				"last_update": b.LastUpdate,
				"logs":        b.Logs,
				"pending":     b.Pending,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// another read already resolved this round
			return nil
		}

		for i := range b.Heroes {
			h := &b.Heroes[i]
			if err := tx.Model(&models.Hero{}).Where("id = ?", h.ID).
				Updates(map[string]interface{}{
					"troops":      h.Troops,
					"battle_id":   h.BattleID,
					"side":        h.Side,
					"queue_order": h.QueueOrder,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BattleService) loadBattle(battleID uint) (*models.Battle, error) {
	var battle models.Battle
	err := s.DB.
		Preload("Heroes", func(db *gorm.DB) *gorm.DB { return db.Order("heroes.queue_order ASC") }).
		First(&battle, battleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBattleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &battle, nil
}
