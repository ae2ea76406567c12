package models

const (
	HeroWarrior = "WARRIOR"
	HeroArcher  = "ARCHER"
	HeroGoblin  = "GOBLIN"
)

const (
	SideAttacker = "ATTACKER"
	SideDefender = "DEFENDER"
)

// Hero is a combat unit. Player-owned heroes carry a ProfileID and persist
// across battles; monsters are spawned with a nil ProfileID for a single
// encounter and purged once released. Side and QueueOrder are non-nil exactly
// while BattleID is non-nil.
type Hero struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ProfileID *uint  `json:"profile_id,omitempty" gorm:"index"`
	Name      string `json:"name"`
	Type      string `json:"type" gorm:"not null"`

	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	Troops    int `json:"troops"`
	MaxTroops int `json:"max_troops"`

	// Battle linkage
	BattleID   *uint   `json:"battle_id,omitempty" gorm:"index"`
	Side       *string `json:"side,omitempty"`
	QueueOrder *int    `json:"queue_order,omitempty"`

	Timestamps
}

// TableName pins the table to "heroes"; gorm's default pluralizer yields
// "heros", which disagrees with the column references in service queries.
func (Hero) TableName() string {
	return "heroes"
}

// InBattle reports whether the hero is currently linked to a battle.
func (h *Hero) InBattle() bool {
	return h.BattleID != nil
}

// Release clears the battle linkage so the hero can be reassigned.
func (h *Hero) Release() {
	h.BattleID = nil
	h.Side = nil
	h.QueueOrder = nil
}
