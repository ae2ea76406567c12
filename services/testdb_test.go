package services_test

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"idle-kingdom-server/models"
	"idle-kingdom-server/services"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEpoch is the frozen wall clock every suite starts from.
var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// clock is the injected time source: tests advance it explicitly instead of
// sleeping.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

var dbSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// unique per call so the same test can hold independent databases
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", t.Name(), atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.PlayerProfile{},
		&models.Building{},
		&models.Hero{},
		&models.Battle{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// newGameServices wires the full service graph against one in-memory database
// and one shared clock.
func newGameServices(t *testing.T) (*services.ProfileService, *services.BattleService, *services.ProgressionService, *clock, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	clk := &clock{now: testEpoch}

	battles := services.NewBattleService(db)
	battles.Now = clk.Now

	profiles := services.NewProfileService(db, battles)
	profiles.Now = clk.Now

	progression := services.NewProgressionService(db)

	return profiles, battles, progression, clk, db
}
