// Package passive implements always-on character traits that react to
// battle events (turn start, damage, dodge, crit, kill, ...).
package passive

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/model"
)

// EventKind identifies a battle event passives can react to.
type EventKind int8

const (
	EventBattleStart EventKind = iota
	EventTurnStart
	EventTurnEnd
	EventDamageDealt
	EventDamageTaken
	EventDodge
	EventCrit
	EventKill
	EventHealReceived
	EventAbilityUsed
)

// String returns human-readable event name
func (k EventKind) String() string {
	switch k {
	case EventBattleStart:
		return "battle_start"
	case EventTurnStart:
		return "turn_start"
	case EventTurnEnd:
		return "turn_end"
	case EventDamageDealt:
		return "damage_dealt"
	case EventDamageTaken:
		return "damage_taken"
	case EventDodge:
		return "dodge"
	case EventCrit:
		return "crit"
	case EventKill:
		return "kill"
	case EventHealReceived:
		return "heal_received"
	case EventAbilityUsed:
		return "ability_used"
	default:
		return "unknown"
	}
}

// Event is delivered to the passives of Owner. Other is the counterpart
// (attacker for DamageTaken/Dodge, victim for DamageDealt/Kill/Crit).
type Event struct {
	Kind    EventKind
	Owner   *model.Character
	Other   *model.Character
	Amount  int32
	Ability string
}

// Host is the battle seen from a passive.
type Host = ability.Host

// Passive reacts to events of its owner.
type Passive interface {
	ID() string
	Handle(host Host, ev Event)
}

// Definition is a passive as loaded from content.
type Definition struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Func        string              `yaml:"func"`
	Params      model.Params        `yaml:"params"`
	Effect      *ability.EffectSpec `yaml:"effect,omitempty"`
}

// Validate checks the definition against registered factories.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return errors.New("passive: missing id")
	}
	if _, ok := factories[d.Func]; !ok {
		return fmt.Errorf("passive %s: unknown func %q", d.ID, d.Func)
	}
	if needsEffect[d.Func] && d.Effect == nil {
		return fmt.Errorf("passive %s: func %s needs an effect", d.ID, d.Func)
	}
	return nil
}

// Factory builds a passive instance for one character. params already carry
// talent overrides.
type Factory func(def *Definition, params model.Params) Passive

var (
	factories   = map[string]Factory{}
	needsEffect = map[string]bool{}
)

// Register registers a passive factory by key.
func Register(key string, f Factory) {
	factories[key] = f
}

// Create instantiates a passive for a character with its talents applied.
func Create(def *Definition, talents []*model.Talent) (Passive, error) {
	f, ok := factories[def.Func]
	if !ok {
		return nil, fmt.Errorf("passive %s: unknown func %q", def.ID, def.Func)
	}
	return f(def, model.ForPassive(def.Params, talents, def.ID)), nil
}

// Keys returns registered factory keys, sorted.
func Keys() []string {
	return slices.Sorted(maps.Keys(factories))
}
