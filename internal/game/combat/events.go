package combat

import "github.com/udisondev/skirmish/internal/model"

// EventKind identifies a combat event.
type EventKind int8

const (
	EventDamage EventKind = iota
	EventDodge
	EventCrit
	EventKill
	EventHeal
)

// String returns human-readable event name
func (k EventKind) String() string {
	switch k {
	case EventDamage:
		return "damage"
	case EventDodge:
		return "dodge"
	case EventCrit:
		return "crit"
	case EventKill:
		return "kill"
	case EventHeal:
		return "heal"
	default:
		return "unknown"
	}
}

// Event is emitted by the Resolver for statistics, passives and the battle log.
type Event struct {
	Kind     EventKind
	Source   *model.Character
	Target   *model.Character
	Amount   int32
	Ability  string
	Periodic bool
}

// EventSink receives combat events in the order they happen.
type EventSink interface {
	OnCombatEvent(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

func (f EventSinkFunc) OnCombatEvent(ev Event) { f(ev) }

type nopSink struct{}

func (nopSink) OnCombatEvent(Event) {}
