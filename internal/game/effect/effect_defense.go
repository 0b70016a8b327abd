package effect

import (
	"log/slog"
	"math"

	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/model"
)

// ShieldEffect absorbs incoming damage until its pool is depleted.
// Params: "power", "ratio", "stat" (default magicalDamage). The pool is
// computed from the caster's stats when the shield lands.
type ShieldEffect struct {
	power float64
	ratio float64
	stat  model.StatID
	pool  float64
}

func NewShieldEffect(params map[string]string) Effect {
	stat := model.StatMagicalDamage
	if s := params["stat"]; s != "" {
		stat = model.StatID(s)
	}
	return &ShieldEffect{
		power: paramFloat(params, "power", 0),
		ratio: paramFloat(params, "ratio", 0),
		stat:  stat,
	}
}

func (e *ShieldEffect) Name() string { return "Shield" }

func (e *ShieldEffect) OnStart(_ Env, ae *ActiveEffect) {
	e.pool = scaled(ae.Caster, e.power, e.ratio, e.stat)
	slog.Debug("shield applied", "pool", e.pool, "target", ae.Target.ID())
}

// Remaining returns the unabsorbed pool.
func (e *ShieldEffect) Remaining() float64 { return e.pool }

func (e *ShieldEffect) OnActionTime(Env, *ActiveEffect) bool { return e.pool > 0 }

func (e *ShieldEffect) OnExit(Env, *ActiveEffect) {}

func (e *ShieldEffect) InterceptDamage(_ Env, ae *ActiveEffect, hit *Hit) bool {
	if e.pool <= 0 || hit.Amount <= 0 {
		return e.pool <= 0
	}
	absorbed := math.Min(e.pool, hit.Amount)
	e.pool -= absorbed
	hit.Amount -= absorbed
	hit.Absorbed += absorbed

	slog.Debug("shield absorbed", "absorbed", absorbed, "left", e.pool, "target", ae.Target.ID())
	return e.pool <= 0
}

// ParryEffect gives a chance to redirect a share of a physical hit back to
// the attacker. Params: "chance" (default 1), "share" (default 0.5).
// Periodic, secondary and already redirected hits are never parried.
type ParryEffect struct {
	chance float64
	share  float64
}

func NewParryEffect(params map[string]string) Effect {
	return &ParryEffect{
		chance: paramFloat(params, "chance", 1),
		share:  math.Max(0, math.Min(1, paramFloat(params, "share", 0.5))),
	}
}

func (e *ParryEffect) Name() string { return "Parry" }

func (e *ParryEffect) OnStart(Env, *ActiveEffect)            {}
func (e *ParryEffect) OnActionTime(Env, *ActiveEffect) bool { return true }
func (e *ParryEffect) OnExit(Env, *ActiveEffect)             {}

func (e *ParryEffect) InterceptDamage(env Env, ae *ActiveEffect, hit *Hit) bool {
	if hit.Kind != model.DamagePhysical || hit.Periodic || hit.Secondary || hit.RedirectTo != nil {
		return false
	}
	if hit.Source == nil || hit.Source == hit.Target || hit.Source.IsDead() || hit.Amount <= 0 {
		return false
	}
	if !dice.Chance(env.Roller(), e.chance) {
		return false
	}

	share := hit.Amount * e.share
	hit.Amount -= share
	hit.RedirectTo = hit.Source
	hit.Redirected += share

	slog.Debug("parry", "target", ae.Target.ID(), "attacker", hit.Source.ID(), "redirected", share)
	return false
}

// ReflectEffect returns a percent of damage actually taken to the attacker
// as true damage. Params: "percent" (fraction).
type ReflectEffect struct {
	percent float64
}

func NewReflectEffect(params map[string]string) Effect {
	return &ReflectEffect{percent: paramFloat(params, "percent", 0)}
}

func (e *ReflectEffect) Name() string { return "Reflect" }

func (e *ReflectEffect) OnStart(Env, *ActiveEffect)            {}
func (e *ReflectEffect) OnActionTime(Env, *ActiveEffect) bool { return true }
func (e *ReflectEffect) OnExit(Env, *ActiveEffect)             {}

func (e *ReflectEffect) InterceptDamage(_ Env, _ *ActiveEffect, hit *Hit) bool {
	if hit.Periodic || hit.Secondary || hit.Source == nil || hit.Source == hit.Target {
		return false
	}
	hit.Reflect += e.percent
	return false
}
