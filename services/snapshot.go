package services

import (
	"idle-kingdom-server/models"
)

// Snapshot phases, derived from the latest round's events.
const (
	PhaseInit   = "INIT"
	PhaseEnter  = "ENTER"
	PhaseDamage = "DAMAGE"
)

// LineRef identifies one line segment of a hero for presentation.
type LineRef struct {
	HeroID   uint `json:"hero_id"`
	Line     int  `json:"line"`
	Strength int  `json:"strength"`
	Max      int  `json:"max"`
}

// SideView is one side of the projection: the exposed line plus the ordered
// queue of everything behind it.
type SideView struct {
	Active *LineRef  `json:"active,omitempty"`
	Queue  []LineRef `json:"queue"`
}

type BattleSnapshot struct {
	BattleID   uint     `json:"battle_id"`
	Label      string   `json:"label"`
	Status     string   `json:"status"`
	Phase      string   `json:"phase"`
	RoundIndex int      `json:"round_index"`
	Attackers  SideView `json:"attackers"`
	Defenders  SideView `json:"defenders"`
}

// Snapshot builds the read-only presentation view from a loaded battle. It is
// a pure function of the persisted records: recomputing it any number of
// times has no effect on stored state.
func Snapshot(b *models.Battle) BattleSnapshot {
	return BattleSnapshot{
		BattleID:   b.ID,
		Label:      b.Label,
		Status:     b.Status,
		Phase:      derivePhase(b.Logs),
		RoundIndex: countRounds(b.Logs),
		Attackers:  sideView(b, models.SideAttacker),
		Defenders:  sideView(b, models.SideDefender),
	}
}

func sideView(b *models.Battle, side string) SideView {
	var view SideView
	view.Queue = []LineRef{}

	living := livingSide(b, side)
	for rank, h := range living {
		lineIdx, remaining := currentLine(h.Troops, h.MaxTroops)
		sizes := lineSizes(h.MaxTroops)

		for i := lineIdx; i < heroLineCount; i++ {
			if sizes[i] == 0 {
				continue
			}
			strength := sizes[i]
			if i == lineIdx {
				strength = remaining
			}
			ref := LineRef{HeroID: h.ID, Line: i, Strength: strength, Max: sizes[i]}

			if rank == 0 && i == lineIdx {
				active := ref
				view.Active = &active
				continue
			}
			view.Queue = append(view.Queue, ref)
		}
	}
	return view
}

// derivePhase tags what the most recent round produced: an exchange, pure
// entrances, or nothing yet.
func derivePhase(logs models.EventLog) string {
	if len(logs) == 0 {
		return PhaseInit
	}

	var latest int64
	for _, e := range logs {
		if e.RoundTime > latest {
			latest = e.RoundTime
		}
	}

	for _, e := range logs {
		if e.RoundTime == latest && e.Kind == models.EventAttack {
			return PhaseDamage
		}
	}
	return PhaseEnter
}

// countRounds counts distinct round timestamps seen in the log so far.
func countRounds(logs models.EventLog) int {
	seen := make(map[int64]struct{}, len(logs))
	for _, e := range logs {
		seen[e.RoundTime] = struct{}{}
	}
	return len(seen)
}
