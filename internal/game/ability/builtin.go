package ability

import (
	"strconv"

	"github.com/udisondev/skirmish/internal/game/effect"
	"github.com/udisondev/skirmish/internal/game/stealth"
	"github.com/udisondev/skirmish/internal/model"
)

func init() {
	Register("damage", damageFunc)
	Register("multi_hit", multiHitFunc)
	Register("drain", drainFunc)
	Register("heal", healFunc)
	Register("apply", applyFunc)
	Register("cleanse", cleanseFunc)
	Register("dispel", dispelFunc)
	Register("hide", hideFunc)
	Register("reveal", revealFunc)
}

// damage: base + ratio × scaling to each target, in target order.
func damageFunc(ctx *Context) error {
	amount := ctx.Amount()
	for _, t := range ctx.Targets {
		if ctx.Caster.IsDead() {
			break
		}
		ctx.Hit(t, amount)
	}
	return nil
}

// multi_hit: "hits" separate hits per target, each rolling dodge and crit.
func multiHitFunc(ctx *Context) error {
	hits := int(ctx.Params.Get("hits", 2))
	amount := ctx.Amount()
	for _, t := range ctx.Targets {
		for range hits {
			if t.IsDead() || ctx.Caster.IsDead() {
				break
			}
			ctx.Hit(t, amount)
		}
	}
	return nil
}

// drain: damage, then heal the caster for "drain" (default 0.5) of damage dealt.
func drainFunc(ctx *Context) error {
	amount := ctx.Amount()
	share := ctx.Params.Get("drain", 0.5)
	var total int32
	for _, t := range ctx.Targets {
		if ctx.Caster.IsDead() {
			break
		}
		total += ctx.Hit(t, amount).Dealt
	}
	if total > 0 && !ctx.Caster.IsDead() {
		healed := ctx.Host.Resolver().Heal(ctx.Caster, ctx.Caster, float64(total)*share, ctx.Def.ID)
		ctx.Host.Log("%s drains %d HP", ctx.Caster.Name(), healed)
	}
	return nil
}

// heal: base + ratio × scaling (+ "percentMaxHp" of the target) to each target.
func healFunc(ctx *Context) error {
	amount := ctx.Amount()
	pct := ctx.Params.Get("percentMaxHp", 0)
	for _, t := range ctx.Targets {
		healed := ctx.Host.Resolver().Heal(ctx.Caster, t, amount+pct*float64(t.MaxHP()), ctx.Def.ID)
		ctx.Host.Log("%s heals %s for %d", ctx.Def.Name, t.Name(), healed)
	}
	return nil
}

// apply: only applies the definition's effect specs.
func applyFunc(ctx *Context) error {
	ApplyEffects(ctx)
	return nil
}

// cleanse: removes "count" (0 = all) dispellable debuffs from each target.
func cleanseFunc(ctx *Context) error {
	n := int(ctx.Params.Get("count", 0))
	for _, t := range ctx.Targets {
		if mgr := ctx.Host.Effects(t); mgr != nil {
			if removed := mgr.Dispel(effect.KindDebuff, n); removed > 0 {
				ctx.Host.Log("%s is cleansed of %d effects", t.Name(), removed)
			}
		}
	}
	return nil
}

// dispel: removes "count" (0 = all) dispellable buffs from each target.
func dispelFunc(ctx *Context) error {
	n := int(ctx.Params.Get("count", 0))
	for _, t := range ctx.Targets {
		if mgr := ctx.Host.Effects(t); mgr != nil {
			if removed := mgr.Dispel(effect.KindBuff, n); removed > 0 {
				ctx.Host.Log("%s loses %d effects", t.Name(), removed)
			}
		}
	}
	return nil
}

// hide: puts the caster into stealth for "turns" (default 2).
// "keepOnAttack" non-zero keeps stealth when attacking.
func hideFunc(ctx *Context) error {
	spec := HideSpec(ctx.Params)
	if !Apply(ctx.Host, ctx.Caster, ctx.Caster, ctx.Def.ID, spec) {
		return nil
	}
	// re-hiding refreshes the countdown; the effect itself only refreshes
	if m := ctx.Host.Stealth(ctx.Caster); m != nil && m.State() == stealth.Hidden {
		_, _ = m.Hide(stealth.Options{
			Turns:        int(ctx.Params.Get("turns", 2)),
			KeepOnAttack: ctx.Params.Flag("keepOnAttack"),
		})
	}
	ctx.Host.Log("%s vanishes", ctx.Caster.Name())
	return nil
}

// StealthStackKey is the stack key of the Stealth buff.
const StealthStackKey = "stealth"

// HideSpec builds the Stealth effect spec used by hiding abilities and passives.
func HideSpec(params model.Params) EffectSpec {
	dispellable := true
	return EffectSpec{
		Name:        "Stealth",
		Kind:        "buff",
		Duration:    effect.Permanent,
		StackKey:    StealthStackKey,
		Dispellable: &dispellable,
		Params: map[string]string{
			"turns":        strconv.Itoa(int(params.Get("turns", 2))),
			"keepOnAttack": strconv.FormatBool(params.Flag("keepOnAttack")),
		},
	}
}

// reveal: exposes hidden targets.
func revealFunc(ctx *Context) error {
	for _, t := range ctx.Targets {
		m := ctx.Host.Stealth(t)
		if m == nil || m.State() != stealth.Hidden {
			continue
		}
		if _, err := m.Fire(stealth.EventReveal); err == nil {
			ctx.Host.Log("%s is revealed", t.Name())
		}
	}
	return nil
}
