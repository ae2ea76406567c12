package workers

import (
	"context"
	"log"
	"time"

	"idle-kingdom-server/models"
	"idle-kingdom-server/services"

	"gorm.io/gorm"
)

// BattleSweeper drains the round backlog of abandoned battles: an encounter
// nobody is reading still progresses, one round per pass, through the same
// resolution path the read endpoints use — the pacing stays identical.
type BattleSweeper struct {
	DB      *gorm.DB
	Battles *services.BattleService
}

func NewBattleSweeper(db *gorm.DB, battles *services.BattleService) *BattleSweeper {
	return &BattleSweeper{DB: db, Battles: battles}
}

func (w *BattleSweeper) sweep(ctx context.Context) {
	now := w.Battles.Now()

	var ids []uint
	err := w.DB.Model(&models.Battle{}).
		Where("status = ? AND last_update < ?", models.BattleInProgress, now.Add(-services.RoundDuration)).
		Limit(100).
		Pluck("id", &ids).Error
	if err != nil {
		log.Printf("[Sweeper] DB error: %v", err)
		return
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := w.Battles.GetBattle(id); err != nil {
			log.Printf("[Sweeper] Failed to advance battle %d: %v", id, err)
		}
	}
}

// PollBattles runs the sweeper until the context is cancelled.
func PollBattles(ctx context.Context, w *BattleSweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Starting battle sweeper (every %v)...", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("Battle sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}
