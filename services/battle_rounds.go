package services

import (
	"math"
	"sort"

	"idle-kingdom-server/models"
)

// Each hero's capacity is split into this many consecutive lines; a line must
// be fully depleted before the next one is exposed.
const heroLineCount = 4

// lineSizes partitions a capacity into equal segments, remainder troops going
// to the earliest lines.
func lineSizes(maxTroops int) []int {
	sizes := make([]int, heroLineCount)
	base := maxTroops / heroLineCount
	rem := maxTroops % heroLineCount
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}

// currentLine returns the index of the first not-yet-depleted line and the
// strength remaining in it, derived from total troops lost so far. A dead
// hero reports (heroLineCount, 0).
func currentLine(troops, maxTroops int) (int, int) {
	lost := maxTroops - troops
	cum := 0
	for i, size := range lineSizes(maxTroops) {
		cum += size
		if lost < cum {
			return i, cum - lost
		}
	}
	return heroLineCount, 0
}

// rawDamage applies the exchange formula: max(1, floor(attack - defense*0.2)).
func rawDamage(attack, defense int) int {
	dmg := int(math.Floor(float64(attack) - float64(defense)*0.2))
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// livingSide returns the side's combatants that still have troops, ordered by
// queue rank. The head of the slice is the active combatant.
func livingSide(b *models.Battle, side string) []*models.Hero {
	var out []*models.Hero
	for i := range b.Heroes {
		h := &b.Heroes[i]
		if h.Side != nil && *h.Side == side && h.Troops > 0 {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return queueRank(out[i]) < queueRank(out[j]) })
	return out
}

func queueRank(h *models.Hero) int {
	if h.QueueOrder != nil {
		return *h.QueueOrder
	}
	return math.MaxInt
}

// takePending pops the entrance events scheduled for the given round.
func takePending(b *models.Battle, round int) []models.PendingEvent {
	var due []models.PendingEvent
	var rest models.PendingQueue
	for _, p := range b.Pending {
		if p.Round == round {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	b.Pending = rest
	return due
}

type roundOutcome struct {
	played   bool
	finished bool
	events   []models.BattleEvent
	released []uint
}

// playRound advances the battle by exactly one round, mutating the loaded
// battle and its heroes in memory. The caller persists the result. Round
// resolution is fully deterministic: same stats, same queue order, same
// elapsed time always produce the same log.
func playRound(b *models.Battle) roundOutcome {
	var out roundOutcome

	attackers := livingSide(b, models.SideAttacker)
	defenders := livingSide(b, models.SideDefender)

	// Normally the finishing state is set on the round that emptied a side;
	// an already-empty side here means there is nothing left to play.
	if len(attackers) == 0 || len(defenders) == 0 {
		out.finished = true
		return out
	}

	out.played = true
	targetRound := b.Round + 1
	nextRound := targetRound + 1
	roundTime := b.LastUpdate.Add(RoundDuration).UnixMilli()

	// An entrance consumes the whole round: no damage is exchanged while a new
	// line or hero steps forward. This is the pacing pause an observer sees.
	if entrances := takePending(b, targetRound); len(entrances) > 0 {
		for _, p := range entrances {
			out.events = append(out.events, models.BattleEvent{
				Kind:      p.Kind,
				RoundTime: roundTime,
				HeroID:    p.HeroID,
				Line:      p.Line,
			})
		}
	} else {
		atk, def := attackers[0], defenders[0]

		atkLine, atkLineRem := currentLine(atk.Troops, atk.MaxTroops)
		defLine, defLineRem := currentLine(def.Troops, def.MaxTroops)

		// Damage is capped by the exposed line: a line absorbs its own share
		// before the next one is exposed.
		dmgToDef := rawDamage(atk.Attack, def.Defense)
		if dmgToDef > defLineRem {
			dmgToDef = defLineRem
		}
		dmgToAtk := rawDamage(def.Attack, atk.Defense)
		if dmgToAtk > atkLineRem {
			dmgToAtk = atkLineRem
		}

		def.Troops -= dmgToDef
		atk.Troops -= dmgToAtk

		out.events = append(out.events, models.BattleEvent{
			Kind:      models.EventAttack,
			RoundTime: roundTime,
			Actions: []models.AttackAction{
				{From: atk.ID, To: def.ID, Damage: dmgToDef},
				{From: def.ID, To: atk.ID, Damage: dmgToAtk},
			},
		})

		settleCasualty(&out, b, def, defLine, dmgToDef == defLineRem, roundTime, nextRound)
		settleCasualty(&out, b, atk, atkLine, dmgToAtk == atkLineRem, roundTime, nextRound)
	}

	b.Round = targetRound
	b.LastUpdate = b.LastUpdate.Add(RoundDuration)

	if len(livingSide(b, models.SideAttacker)) == 0 || len(livingSide(b, models.SideDefender)) == 0 {
		out.finished = true
	}
	return out
}

// settleCasualty handles the aftermath of a hit that emptied the target's
// exposed line: LINE_DOWN always, then either a LINE_ENTER scheduled for the
// following round, or DEATH plus immediate release and a HERO_ENTER for the
// side's new head if one remains.
func settleCasualty(out *roundOutcome, b *models.Battle, h *models.Hero, downedLine int, lineEmptied bool, roundTime int64, nextRound int) {
	if !lineEmptied {
		return
	}

	out.events = append(out.events, models.BattleEvent{
		Kind:      models.EventLineDown,
		RoundTime: roundTime,
		HeroID:    h.ID,
		Line:      downedLine,
	})

	if h.Troops > 0 {
		nextLine, _ := currentLine(h.Troops, h.MaxTroops)
		b.Pending = append(b.Pending, models.PendingEvent{
			Round:  nextRound,
			Kind:   models.EventLineEnter,
			HeroID: h.ID,
			Line:   nextLine,
		})
		return
	}

	side := *h.Side
	out.events = append(out.events, models.BattleEvent{
		Kind:      models.EventDeath,
		RoundTime: roundTime,
		HeroID:    h.ID,
	})

	// Dead units are freed immediately so they can be reassigned
	h.Release()
	out.released = append(out.released, h.ID)

	if rest := livingSide(b, side); len(rest) > 0 {
		b.Pending = append(b.Pending, models.PendingEvent{
			Round:  nextRound,
			Kind:   models.EventHeroEnter,
			HeroID: rest[0].ID,
		})
	}
}
