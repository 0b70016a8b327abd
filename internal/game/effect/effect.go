// Package effect implements buffs, debuffs and passive effects: stacking,
// durations in turns, periodic actions and stat modifiers.
package effect

import (
	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/game/stealth"
	"github.com/udisondev/skirmish/internal/model"
)

// Kind separates effects into buff, debuff and passive lists.
type Kind int8

const (
	KindBuff Kind = iota
	KindDebuff
	KindPassive
)

// String returns human-readable kind name
func (k Kind) String() string {
	switch k {
	case KindBuff:
		return "buff"
	case KindDebuff:
		return "debuff"
	case KindPassive:
		return "passive"
	default:
		return "unknown"
	}
}

// ParseKind maps content strings to Kind, defaulting to buff.
func ParseKind(s string) Kind {
	switch s {
	case "debuff":
		return KindDebuff
	case "passive":
		return KindPassive
	default:
		return KindBuff
	}
}

// Env is the battle-side context effects act through. Periodic damage goes
// through the full damage pipeline as an unavoidable hit; with canKill false
// it never reduces the target below 1 HP.
type Env interface {
	DealPeriodic(source, target *model.Character, amount float64, kind model.DamageKind, canKill bool) int32
	Heal(source, target *model.Character, amount float64) int32
	Stealth(c *model.Character) *stealth.Machine
	Roller() dice.Roller
}

// Effect interface for all buff/debuff implementations.
// OnStart runs when the effect lands, OnActionTime at each start of the
// owner's turn (return false to end early), OnExit on removal or expiry.
type Effect interface {
	Name() string
	OnStart(env Env, ae *ActiveEffect)
	OnActionTime(env Env, ae *ActiveEffect) bool
	OnExit(env Env, ae *ActiveEffect)
}

// StatModifierProvider is optionally implemented by Effect types that modify stats.
// Must be pure: it is called while the manager holds its lock.
type StatModifierProvider interface {
	StatModifiers(ae *ActiveEffect) []model.StatModifier
}

// Control is a bitmask of action restrictions.
type Control uint8

const (
	ControlStun Control = 1 << iota
	ControlSilence
)

// ActionBlocker is optionally implemented by effects that restrict actions.
type ActionBlocker interface {
	Blocks() Control
}

// Hit is the mutable view of an incoming hit handed to interceptors.
type Hit struct {
	Source      *model.Character
	Target      *model.Character
	Amount      float64
	Kind        model.DamageKind
	Periodic    bool
	Unavoidable bool
	Secondary   bool // redirected or reflected damage, never bounced again

	Absorbed   float64
	RedirectTo *model.Character
	Redirected float64
	Reflect    float64
}

// DamageInterceptor is optionally implemented by effects that alter incoming
// damage after mitigation (shields, parry, reflect). Returning true removes
// the effect (e.g. a depleted shield).
type DamageInterceptor interface {
	InterceptDamage(env Env, ae *ActiveEffect, hit *Hit) (consumed bool)
}

// Permanent marks an effect without a duration.
const Permanent = -1

// ActiveEffect tracks a running effect on a character.
type ActiveEffect struct {
	ID             uint64
	Caster         *model.Character
	Target         *model.Character
	Source         string // ability or passive ID
	Kind           Kind
	Effect         Effect
	RemainingTurns int
	StackKey       string
	Level          int32
	Stacks         int
	MaxStacks      int
	Dispellable    bool
}

// IsExpired returns true if the effect duration has elapsed.
func (ae *ActiveEffect) IsExpired() bool {
	return ae.RemainingTurns != Permanent && ae.RemainingTurns <= 0
}

// Tick decrements remaining turns.
// Returns true if effect is still active, false if expired.
func (ae *ActiveEffect) Tick(turns int) bool {
	if ae.RemainingTurns == Permanent {
		return true
	}
	ae.RemainingTurns -= turns
	return ae.RemainingTurns > 0
}

// StackCount returns the effective stack count (at least 1).
func (ae *ActiveEffect) StackCount() int {
	if ae.Stacks < 1 {
		return 1
	}
	return ae.Stacks
}

// Snapshot is a read-only description of an active effect for clients and logs.
type Snapshot struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Source         string `json:"source"`
	CasterID       string `json:"casterId,omitempty"`
	RemainingTurns int    `json:"remainingTurns"`
	Stacks         int    `json:"stacks"`
	Dispellable    bool   `json:"dispellable"`
}

// Snapshot describes the effect.
func (ae *ActiveEffect) Snapshot() Snapshot {
	s := Snapshot{
		ID:             ae.ID,
		Name:           ae.Effect.Name(),
		Kind:           ae.Kind.String(),
		Source:         ae.Source,
		RemainingTurns: ae.RemainingTurns,
		Stacks:         ae.StackCount(),
		Dispellable:    ae.Dispellable,
	}
	if ae.Caster != nil {
		s.CasterID = ae.Caster.ID()
	}
	return s
}
