// services/scheduler.go
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"idle-kingdom-server/models"
	"idle-kingdom-server/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/gosimple/slug"
)

// StartMaintenanceScheduler runs housekeeping that is deliberately NOT part of
// the lazy simulation: archiving finished battle reports to object storage and
// purging monsters released from their encounter. Simulation state never
// depends on either.
func (s *BattleService) StartMaintenanceScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.archiveFinishedBattles()
			s.purgeReleasedMonsters()
		}),
	)
}

type battleReport struct {
	BattleID  uint            `json:"battle_id"`
	Reference string          `json:"reference"`
	Label     string          `json:"label"`
	Rounds    int             `json:"rounds"`
	EndedAt   time.Time       `json:"ended_at"`
	Logs      models.EventLog `json:"logs"`
}

func (s *BattleService) archiveFinishedBattles() {
	if !utils.R2Enabled() {
		return
	}

	var battles []models.Battle
	if err := s.DB.Where("status = ? AND archived = ?", models.BattleFinished, false).
		Limit(20).Find(&battles).Error; err != nil {
		log.Printf("[Maintenance] DB error listing finished battles: %v", err)
		return
	}

	for _, b := range battles {
		report := battleReport{
			BattleID:  b.ID,
			Reference: b.Reference,
			Label:     b.Label,
			Rounds:    b.Round,
			EndedAt:   b.LastUpdate,
			Logs:      b.Logs,
		}
		payload, err := json.Marshal(report)
		if err != nil {
			log.Printf("[Maintenance] Failed to encode report for battle %d: %v", b.ID, err)
			continue
		}

		key := fmt.Sprintf("battles/%s/%s-%d.json",
			b.LastUpdate.Format("2006-01-02"), slug.Make(b.Label), b.ID)
		if _, err := utils.UploadBattleReport(key, payload); err != nil {
			// retried on the next run
			log.Printf("[Maintenance] Failed to archive battle %d: %v", b.ID, err)
			continue
		}

		if err := s.DB.Model(&models.Battle{}).Where("id = ?", b.ID).
			Update("archived", true).Error; err != nil {
			log.Printf("[Maintenance] Failed to mark battle %d archived: %v", b.ID, err)
			continue
		}
		log.Printf("✅ Archived battle report: %s", key)
	}
}

func (s *BattleService) purgeReleasedMonsters() {
	res := s.DB.Unscoped().
		Where("profile_id IS NULL AND battle_id IS NULL").
		Delete(&models.Hero{})
	if res.Error != nil {
		log.Printf("[Maintenance] Failed to purge monsters: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Purged %d released monsters", res.RowsAffected)
	}
}
