package battle

import (
	"fmt"
	"log/slog"

	"github.com/udisondev/skirmish/internal/game/combat"
	"github.com/udisondev/skirmish/internal/model"
)

// CharacterStats are the running totals for one character.
type CharacterStats struct {
	CharacterID   string `json:"characterId"`
	TemplateID    string `json:"templateId"`
	Name          string `json:"name"`
	Team          string `json:"team"`
	DamageDealt   int64  `json:"damageDealt"`
	DamageTaken   int64  `json:"damageTaken"`
	HealingDone   int64  `json:"healingDone"`
	Dodges        int    `json:"dodges"`
	Crits         int    `json:"crits"`
	Kills         int    `json:"kills"`
	AbilitiesUsed int    `json:"abilitiesUsed"`
	Survived      bool   `json:"survived"`
}

// Statistics aggregates combat events per character.
// Recording never fails combat: problems are logged.
type Statistics struct {
	byID  map[string]*CharacterStats
	chars []*model.Character
}

func newStatistics(chars []*model.Character) *Statistics {
	s := &Statistics{byID: make(map[string]*CharacterStats, len(chars)), chars: chars}
	for _, c := range chars {
		s.byID[c.ID()] = &CharacterStats{
			CharacterID: c.ID(),
			TemplateID:  c.TemplateID(),
			Name:        c.Name(),
			Team:        c.Team().String(),
		}
	}
	return s
}

// Record applies a combat event.
func (s *Statistics) Record(ev combat.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("statistics update failed", "event", ev.Kind, "panic", r)
		}
	}()

	switch ev.Kind {
	case combat.EventDamage:
		if src := s.lookup(ev.Source); src != nil && ev.Source != ev.Target {
			src.DamageDealt += int64(ev.Amount)
		}
		if dst := s.lookup(ev.Target); dst != nil {
			dst.DamageTaken += int64(ev.Amount)
		}
	case combat.EventDodge:
		if dst := s.lookup(ev.Target); dst != nil {
			dst.Dodges++
		}
	case combat.EventCrit:
		if src := s.lookup(ev.Source); src != nil {
			src.Crits++
		}
	case combat.EventKill:
		if src := s.lookup(ev.Source); src != nil {
			src.Kills++
		}
	case combat.EventHeal:
		if src := s.lookup(ev.Source); src != nil {
			src.HealingDone += int64(ev.Amount)
		} else if dst := s.lookup(ev.Target); dst != nil {
			// periodic heals without a caster count for the receiver
			dst.HealingDone += int64(ev.Amount)
		}
	}
}

// AbilityUsed counts a successful cast.
func (s *Statistics) AbilityUsed(id string) {
	if st, ok := s.byID[id]; ok {
		st.AbilitiesUsed++
		return
	}
	slog.Warn("statistics: unknown character", "character", id)
}

// Get returns a copy of one character's stats.
func (s *Statistics) Get(id string) (CharacterStats, error) {
	st, ok := s.byID[id]
	if !ok {
		return CharacterStats{}, fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
	}
	out := *st
	out.Survived = s.alive(id)
	return out, nil
}

// All returns copies in roster order.
func (s *Statistics) All() []CharacterStats {
	out := make([]CharacterStats, 0, len(s.chars))
	for _, c := range s.chars {
		st := *s.byID[c.ID()]
		st.Survived = !c.IsDead()
		out = append(out, st)
	}
	return out
}

func (s *Statistics) lookup(c *model.Character) *CharacterStats {
	if c == nil {
		return nil
	}
	st, ok := s.byID[c.ID()]
	if !ok {
		slog.Warn("statistics: unknown character", "character", c.ID())
		return nil
	}
	return st
}

func (s *Statistics) alive(id string) bool {
	for _, c := range s.chars {
		if c.ID() == id {
			return !c.IsDead()
		}
	}
	return false
}
