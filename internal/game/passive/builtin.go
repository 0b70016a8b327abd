package passive

import (
	"log/slog"
	"maps"
	"strconv"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/game/effect"
	"github.com/udisondev/skirmish/internal/model"
)

func init() {
	Register("lifesteal_on_kill", newLifestealOnKill)
	Register("counter_on_dodge", newCounterOnDodge)
	Register("mana_on_crit", newManaOnCrit)
	Register("vigil", newVigil)
	Register("shadowstep", newShadowstep)
	Register("enrage_below", newEnrageBelow)
	Register("stat_aura", newStatAura)

	needsEffect["counter_on_dodge"] = true
	needsEffect["enrage_below"] = true
	needsEffect["stat_aura"] = true
}

type base struct {
	def    *Definition
	params model.Params
}

func (b base) ID() string { return b.def.ID }

// proc rolls the "chance" param (default 1).
func (b base) proc(host Host) bool {
	return dice.Chance(host.Resolver().Roller(), b.params.Get("chance", 1))
}

// spec returns the definition's effect with "value"/"duration" overrides from params.
func (b base) spec() ability.EffectSpec {
	spec := *b.def.Effect
	spec.Params = maps.Clone(spec.Params)
	if spec.Params == nil {
		spec.Params = map[string]string{}
	}
	if v, ok := b.params["value"]; ok {
		spec.Params["value"] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if d, ok := b.params["duration"]; ok {
		spec.Duration = int(d)
	}
	return spec
}

// lifesteal_on_kill: heals "percent" (default 0.1) of max HP on kill.
type lifestealOnKill struct{ base }

func newLifestealOnKill(def *Definition, params model.Params) Passive {
	return &lifestealOnKill{base{def, params}}
}

func (p *lifestealOnKill) Handle(host Host, ev Event) {
	if ev.Kind != EventKill || !p.proc(host) {
		return
	}
	amount := p.params.Get("percent", 0.1) * float64(ev.Owner.MaxHP())
	healed := host.Resolver().Heal(ev.Owner, ev.Owner, amount, p.def.ID)
	host.Log("%s feeds on the kill (+%d HP)", ev.Owner.Name(), healed)
}

// counter_on_dodge: applies the configured buff to the owner after a dodge.
type counterOnDodge struct{ base }

func newCounterOnDodge(def *Definition, params model.Params) Passive {
	return &counterOnDodge{base{def, params}}
}

func (p *counterOnDodge) Handle(host Host, ev Event) {
	if ev.Kind != EventDodge || !p.proc(host) {
		return
	}
	ability.Apply(host, ev.Owner, ev.Owner, p.def.ID, p.spec())
}

// mana_on_crit: restores "mana" (default 10) on a critical hit.
type manaOnCrit struct{ base }

func newManaOnCrit(def *Definition, params model.Params) Passive {
	return &manaOnCrit{base{def, params}}
}

func (p *manaOnCrit) Handle(host Host, ev Event) {
	if ev.Kind != EventCrit || !p.proc(host) {
		return
	}
	if restored := ev.Owner.RestoreMana(int32(p.params.Get("mana", 10))); restored > 0 {
		host.Log("%s regains %d mana", ev.Owner.Name(), restored)
	}
}

// vigil: at turn start heals the lowest ally below "threshold" (default 0.5)
// for "percent" (default 0.05) of its max HP.
type vigil struct{ base }

func newVigil(def *Definition, params model.Params) Passive {
	return &vigil{base{def, params}}
}

func (p *vigil) Handle(host Host, ev Event) {
	if ev.Kind != EventTurnStart {
		return
	}
	threshold := p.params.Get("threshold", 0.5)
	var target *model.Character
	for _, c := range host.Allies(ev.Owner) {
		if c.HPPercentage() < threshold && (target == nil || c.HPPercentage() < target.HPPercentage()) {
			target = c
		}
	}
	if target == nil || !p.proc(host) {
		return
	}
	amount := p.params.Get("percent", 0.05) * float64(target.MaxHP())
	healed := host.Resolver().Heal(ev.Owner, target, amount, p.def.ID)
	host.Log("%s watches over %s (+%d HP)", ev.Owner.Name(), target.Name(), healed)
}

// shadowstep: hides the owner after a dodge for "turns" (default 1).
type shadowstep struct{ base }

func newShadowstep(def *Definition, params model.Params) Passive {
	return &shadowstep{base{def, params}}
}

func (p *shadowstep) Handle(host Host, ev Event) {
	if ev.Kind != EventDodge || !p.proc(host) {
		return
	}
	params := model.Params{"turns": p.params.Get("turns", 1), "keepOnAttack": p.params.Get("keepOnAttack", 0)}
	if ability.Apply(host, ev.Owner, ev.Owner, p.def.ID, ability.HideSpec(params)) && ev.Owner.IsHidden() {
		host.Log("%s steps into the shadows", ev.Owner.Name())
	}
}

// enrage_below: applies the configured effect once, when HP drops below
// "threshold" (default 0.3).
type enrageBelow struct {
	base
	triggered bool
}

func newEnrageBelow(def *Definition, params model.Params) Passive {
	return &enrageBelow{base: base{def, params}}
}

func (p *enrageBelow) Handle(host Host, ev Event) {
	if p.triggered || ev.Kind != EventDamageTaken || ev.Owner.IsDead() {
		return
	}
	if ev.Owner.HPPercentage() >= p.params.Get("threshold", 0.3) {
		return
	}
	p.triggered = true
	if ability.Apply(host, ev.Owner, ev.Owner, p.def.ID, p.spec()) {
		host.Log("%s becomes enraged", ev.Owner.Name())
	}
}

// stat_aura: adds the configured effect as a permanent passive at battle start.
type statAura struct{ base }

func newStatAura(def *Definition, params model.Params) Passive {
	return &statAura{base{def, params}}
}

func (p *statAura) Handle(host Host, ev Event) {
	if ev.Kind != EventBattleStart {
		return
	}
	mgr := host.Effects(ev.Owner)
	if mgr == nil {
		return
	}
	spec := p.spec()
	eff, err := effect.CreateEffect(spec.Name, spec.Params)
	if err != nil {
		slog.Warn("stat aura skipped", "passive", p.def.ID, "error", err)
		return
	}
	mgr.AddPassive(&effect.ActiveEffect{
		Caster: ev.Owner,
		Target: ev.Owner,
		Source: p.def.ID,
		Effect: eff,
	})
}
