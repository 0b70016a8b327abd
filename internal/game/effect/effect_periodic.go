package effect

import (
	"log/slog"

	"github.com/udisondev/skirmish/internal/model"
)

// scaled computes "power + ratio × caster stat", e.g. 365 + 85% magicalDamage.
func scaled(caster *model.Character, power, ratio float64, stat model.StatID) float64 {
	if caster == nil || ratio == 0 {
		return power
	}
	return power + ratio*caster.Stat(stat)
}

// DamageOverTimeEffect deals periodic damage at the start of the owner's turn.
// Params: "power", "ratio", "stat" (default magicalDamage), "kind" (default true),
// "canKill" (default true). Damage scales with stacks.
// If canKill is false, damage cannot reduce HP below 1.
type DamageOverTimeEffect struct {
	power   float64
	ratio   float64
	stat    model.StatID
	kind    model.DamageKind
	canKill bool
}

func NewDamageOverTimeEffect(params map[string]string) Effect {
	stat := model.StatMagicalDamage
	if s := params["stat"]; s != "" {
		stat = model.StatID(s)
	}
	kind := model.DamageTrue
	if k := params["kind"]; k != "" {
		kind = model.ParseDamageKind(k)
	}
	return &DamageOverTimeEffect{
		power:   paramFloat(params, "power", 0),
		ratio:   paramFloat(params, "ratio", 0),
		stat:    stat,
		kind:    kind,
		canKill: paramBool(params, "canKill", true),
	}
}

func (e *DamageOverTimeEffect) Name() string { return "DamageOverTime" }

func (e *DamageOverTimeEffect) OnStart(_ Env, ae *ActiveEffect) {
	slog.Debug("dot started", "power", e.power, "canKill", e.canKill, "target", ae.Target.ID())
}

func (e *DamageOverTimeEffect) OnActionTime(env Env, ae *ActiveEffect) bool {
	target := ae.Target
	if target == nil || target.IsDead() {
		return false // Stop ticking on dead target
	}

	amount := scaled(ae.Caster, e.power, e.ratio, e.stat) * float64(ae.StackCount())
	if amount <= 0 {
		return true
	}

	dealt := env.DealPeriodic(ae.Caster, target, amount, e.kind, e.canKill)
	slog.Debug("dot tick",
		"amount", amount,
		"dealt", dealt,
		"target", target.ID())
	return true
}

func (e *DamageOverTimeEffect) OnExit(_ Env, ae *ActiveEffect) {
	slog.Debug("dot ended", "target", ae.Target.ID())
}

// HealOverTimeEffect heals the owner at the start of each turn.
// Params: "power", "ratio", "stat" (default magicalDamage),
// "percentMaxHp" (fraction of owner max HP added to each tick).
type HealOverTimeEffect struct {
	power        float64
	ratio        float64
	stat         model.StatID
	percentMaxHP float64
}

func NewHealOverTimeEffect(params map[string]string) Effect {
	stat := model.StatMagicalDamage
	if s := params["stat"]; s != "" {
		stat = model.StatID(s)
	}
	return &HealOverTimeEffect{
		power:        paramFloat(params, "power", 0),
		ratio:        paramFloat(params, "ratio", 0),
		stat:         stat,
		percentMaxHP: paramFloat(params, "percentMaxHp", 0),
	}
}

func (e *HealOverTimeEffect) Name() string { return "HealOverTime" }

func (e *HealOverTimeEffect) OnStart(Env, *ActiveEffect) {}

func (e *HealOverTimeEffect) OnActionTime(env Env, ae *ActiveEffect) bool {
	target := ae.Target
	if target == nil || target.IsDead() {
		return false
	}

	amount := scaled(ae.Caster, e.power, e.ratio, e.stat)
	amount += e.percentMaxHP * float64(target.MaxHP())
	amount *= float64(ae.StackCount())
	if amount <= 0 {
		return true
	}

	healed := env.Heal(ae.Caster, target, amount)
	slog.Debug("hot tick", "amount", amount, "healed", healed, "target", target.ID())
	return true
}

func (e *HealOverTimeEffect) OnExit(Env, *ActiveEffect) {}
