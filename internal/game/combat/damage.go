// Package combat resolves damage and healing between characters.
package combat

import (
	"log/slog"
	"math"

	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/game/effect"
	"github.com/udisondev/skirmish/internal/model"
)

const (
	// MaxDodgeChance caps dodgeChance so no character is untouchable.
	MaxDodgeChance = 0.75
	// MaxMitigation caps armor and magicalShield, in percent.
	MaxMitigation = 90.0
)

// Hit describes one incoming damage instance.
type Hit struct {
	Source      *model.Character // nil for environmental damage
	Target      *model.Character
	Amount      float64
	Kind        model.DamageKind
	CanCrit     bool
	Unavoidable bool // skips dodge
	Periodic    bool // DoT tick: no dodge, no crit, no lifesteal, no parry
	NonLethal   bool // never reduces HP below 1
	Ability     string

	secondary bool
}

// Result is the outcome of ApplyDamage.
type Result struct {
	Dealt      int32
	Absorbed   int32
	Redirected int32
	Reflected  int32
	Lifesteal  int32
	Dodged     bool
	Crit       bool
	Killed     bool
}

// EffectLookup returns the effect manager of a character (nil if none).
type EffectLookup func(c *model.Character) *effect.Manager

// Resolver runs the damage and heal pipelines for one battle.
type Resolver struct {
	roller  dice.Roller
	effects EffectLookup
	env     effect.Env
	sink    EventSink
}

// NewResolver creates a Resolver. effects, env and sink may be nil.
func NewResolver(roller dice.Roller, effects EffectLookup, env effect.Env, sink EventSink) *Resolver {
	if sink == nil {
		sink = nopSink{}
	}
	return &Resolver{roller: roller, effects: effects, env: env, sink: sink}
}

// Roller returns the resolver's random source.
func (r *Resolver) Roller() dice.Roller { return r.roller }

// ApplyDamage resolves a hit:
// dodge → crit → amplification → mitigation → interceptors → HP → lifesteal
// → redirect/reflect. Events are emitted to the sink as they happen.
func (r *Resolver) ApplyDamage(hit Hit) Result {
	var res Result
	target := hit.Target
	if target == nil || target.IsDead() || hit.Amount <= 0 {
		return res
	}
	source := hit.Source

	if !hit.Unavoidable && !hit.Periodic && !hit.secondary {
		if CalcDodge(r.roller, target) {
			res.Dodged = true
			slog.Debug("hit dodged", "target", target.ID(), "ability", hit.Ability)
			r.sink.OnCombatEvent(Event{Kind: EventDodge, Source: source, Target: target, Ability: hit.Ability})
			return res
		}
	}

	amount := hit.Amount
	if hit.CanCrit && !hit.Periodic && source != nil {
		if mul, ok := CalcCrit(r.roller, source); ok {
			res.Crit = true
			amount *= mul
		}
	}

	amount *= Amplification(source, target)
	amount *= 1 - Mitigation(target, hit.Kind)

	ih := &effect.Hit{
		Source:      source,
		Target:      target,
		Amount:      amount,
		Kind:        hit.Kind,
		Periodic:    hit.Periodic,
		Unavoidable: hit.Unavoidable,
		Secondary:   hit.secondary,
	}
	r.intercept(ih)
	res.Absorbed = model.RoundHP(ih.Absorbed)

	dmg := model.RoundHP(ih.Amount)
	if ih.Amount > 0 && dmg < 1 {
		dmg = 1 // Minimum 1 damage
	}
	if hit.NonLethal && dmg >= target.HP() {
		dmg = target.HP() - 1
	}
	res.Dealt, res.Killed = target.ReduceHP(dmg)

	slog.Debug("damage applied",
		"source", charID(source),
		"target", target.ID(),
		"raw", hit.Amount,
		"dealt", res.Dealt,
		"absorbed", res.Absorbed,
		"crit", res.Crit,
		"kind", hit.Kind)

	if res.Crit {
		r.sink.OnCombatEvent(Event{Kind: EventCrit, Source: source, Target: target, Amount: res.Dealt, Ability: hit.Ability})
	}
	r.sink.OnCombatEvent(Event{
		Kind:     EventDamage,
		Source:   source,
		Target:   target,
		Amount:   res.Dealt,
		Ability:  hit.Ability,
		Periodic: hit.Periodic,
	})
	if res.Killed {
		r.sink.OnCombatEvent(Event{Kind: EventKill, Source: source, Target: target, Ability: hit.Ability})
	}

	if source == nil || source == target || source.IsDead() {
		return res
	}

	if !hit.Periodic && !hit.secondary && res.Dealt > 0 {
		if ls := source.Stat(model.StatLifesteal); ls > 0 {
			res.Lifesteal = source.RestoreHP(model.RoundHP(float64(res.Dealt) * ls))
		}
	}

	if ih.RedirectTo != nil && ih.Redirected > 0 {
		sub := r.ApplyDamage(Hit{
			Source:      target,
			Target:      ih.RedirectTo,
			Amount:      ih.Redirected,
			Kind:        model.DamageTrue,
			Unavoidable: true,
			Ability:     hit.Ability,
			secondary:   true,
		})
		res.Redirected = sub.Dealt
	}

	if ih.Reflect > 0 && res.Dealt > 0 && !source.IsDead() {
		sub := r.ApplyDamage(Hit{
			Source:      target,
			Target:      source,
			Amount:      float64(res.Dealt) * ih.Reflect,
			Kind:        model.DamageTrue,
			Unavoidable: true,
			Ability:     hit.Ability,
			secondary:   true,
		})
		res.Reflected = sub.Dealt
	}

	return res
}

// intercept runs target's damage interceptors in application order and
// removes the ones that report themselves consumed.
func (r *Resolver) intercept(ih *effect.Hit) {
	if r.effects == nil {
		return
	}
	mgr := r.effects(ih.Target)
	if mgr == nil {
		return
	}
	for _, ae := range mgr.Interceptors() {
		di, ok := ae.Effect.(effect.DamageInterceptor)
		if !ok {
			continue
		}
		if di.InterceptDamage(r.env, ae, ih) {
			mgr.Remove(ae.ID)
		}
	}
}

// Heal restores HP: amount × (1 + source healingPower) × (1 + target healingReceived).
// Dead targets are not healed. Returns HP actually restored.
func (r *Resolver) Heal(source, target *model.Character, amount float64, ability string) int32 {
	if target == nil || target.IsDead() || amount <= 0 {
		return 0
	}
	if source != nil {
		amount *= math.Max(0, 1+source.Stat(model.StatHealingPower))
	}
	amount *= math.Max(0, 1+target.Stat(model.StatHealingReceived))

	healed := target.RestoreHP(model.RoundHP(amount))
	slog.Debug("heal applied", "source", charID(source), "target", target.ID(), "healed", healed)

	r.sink.OnCombatEvent(Event{Kind: EventHeal, Source: source, Target: target, Amount: healed, Ability: ability})
	return healed
}

// CalcDodge rolls target's dodgeChance capped at MaxDodgeChance.
func CalcDodge(roller dice.Roller, target *model.Character) bool {
	chance := math.Min(target.Stat(model.StatDodgeChance), MaxDodgeChance)
	return dice.Chance(roller, chance)
}

// CalcCrit rolls source's critChance and returns the crit multiplier.
// critDamage below 1 falls back to model.DefaultCritDamage.
func CalcCrit(roller dice.Roller, source *model.Character) (mul float64, crit bool) {
	if !dice.Chance(roller, source.Stat(model.StatCritChance)) {
		return 1, false
	}
	mul = source.Stat(model.StatCritDamage)
	if mul < 1 {
		mul = model.DefaultCritDamage
	}
	return mul, true
}

// Amplification returns (1 + source damageDealt) × (1 + target damageTaken),
// each factor floored at 0. Target Lock feeds damageTaken.
func Amplification(source, target *model.Character) float64 {
	amp := math.Max(0, 1+target.Stat(model.StatDamageTaken))
	if source != nil {
		amp *= math.Max(0, 1+source.Stat(model.StatDamageDealt))
	}
	return amp
}

// Mitigation returns the fraction of damage removed by armor (physical) or
// magicalShield (magical), capped at MaxMitigation percent. True damage is
// never mitigated.
func Mitigation(target *model.Character, kind model.DamageKind) float64 {
	var pct float64
	switch kind {
	case model.DamagePhysical:
		pct = target.Stat(model.StatArmor)
	case model.DamageMagical:
		pct = target.Stat(model.StatMagicalShield)
	default:
		return 0
	}
	return math.Max(0, math.Min(pct, MaxMitigation)) / 100
}

// Scaled computes "base + ratio × stat" from the caster's current stats,
// e.g. 365 + 85% magicalDamage.
func Scaled(caster *model.Character, base, ratio float64, stat model.StatID) float64 {
	if caster == nil || ratio == 0 {
		return base
	}
	return base + ratio*caster.Stat(stat)
}

func charID(c *model.Character) string {
	if c == nil {
		return ""
	}
	return c.ID()
}
