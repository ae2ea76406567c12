package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	BattleInProgress = "IN_PROGRESS"
	BattleFinished   = "FINISHED"
)

// Battle event kinds. The log is a tagged union keyed by Kind so replay and
// projection logic can switch exhaustively.
const (
	EventAttack    = "ATTACK"
	EventDeath     = "DEATH"
	EventLineDown  = "LINE_DOWN"
	EventLineEnter = "LINE_ENTER"
	EventHeroEnter = "HERO_ENTER"
)

// AttackAction is a single directed hit within an ATTACK event.
type AttackAction struct {
	From   uint `json:"from"`
	To     uint `json:"to"`
	Damage int  `json:"dmg"`
}

// BattleEvent is one entry of the append-only battle log. RoundTime is the
// virtual timestamp (unix ms) of the round that produced it.
type BattleEvent struct {
	Kind      string         `json:"kind"`
	RoundTime int64          `json:"round_time"`
	HeroID    uint           `json:"hero_id,omitempty"`
	Line      int            `json:"line,omitempty"`
	Actions   []AttackAction `json:"actions,omitempty"`
}

// PendingEvent is a scheduled entrance (LINE_ENTER or HERO_ENTER) waiting for
// its target round. Kept as an explicit queue instead of scanning the log.
type PendingEvent struct {
	Round  int    `json:"round"`
	Kind   string `json:"kind"`
	HeroID uint   `json:"hero_id"`
	Line   int    `json:"line,omitempty"`
}

// EventLog stores the battle log as a JSON column.
type EventLog []BattleEvent

func (l EventLog) Value() (driver.Value, error) {
	if l == nil {
		l = EventLog{}
	}
	return json.Marshal(l)
}

func (l *EventLog) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// PendingQueue stores scheduled entrances as a JSON column.
type PendingQueue []PendingEvent

func (q PendingQueue) Value() (driver.Value, error) {
	if q == nil {
		q = PendingQueue{}
	}
	return json.Marshal(q)
}

func (q *PendingQueue) Scan(value interface{}) error {
	return scanJSON(value, q)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}

// Battle is one encounter between two sides of heroes. LastUpdate is always
// the battle start plus Round*roundDuration: the exact point in time through
// which rounds have been resolved.
type Battle struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// Reference is the stable external id used in archive keys and client links
	Reference string `json:"reference" gorm:"size:36;index"`

	Label  string `json:"label"`
	Status string `json:"status" gorm:"default:'IN_PROGRESS'"`

	Round      int       `json:"round" gorm:"default:0"`
	LastUpdate time.Time `json:"last_update"`

	Logs    EventLog     `json:"logs" gorm:"type:jsonb"`
	Pending PendingQueue `json:"pending" gorm:"type:jsonb"`

	// Set once the final report has been uploaded to object storage
	Archived bool `json:"archived" gorm:"default:false"`

	Heroes []Hero `json:"heroes" gorm:"foreignKey:BattleID"`

	Timestamps
}
