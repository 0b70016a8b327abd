package effect

import (
	"log/slog"
	"math"
	"strings"

	"github.com/udisondev/skirmish/internal/model"
)

// StatUpEffect modifies one stat while active.
// Params: "stat" (StatID), "type" ("ADD" or "MUL", default ADD), "value".
// Additive values scale linearly with stacks, multiplicative ones compound.
type StatUpEffect struct {
	stat    model.StatID
	modType model.StatModType
	value   float64
}

func NewStatUpEffect(params map[string]string) Effect {
	stat := model.StatID(params["stat"])
	if !model.IsKnownStat(stat) {
		slog.Warn("StatUp with unknown stat", "stat", stat)
	}

	modType := model.StatModAdd
	if strings.EqualFold(params["type"], "MUL") {
		modType = model.StatModMul
	}

	def := 0.0
	if modType == model.StatModMul {
		def = 1.0
	}
	return &StatUpEffect{
		stat:    stat,
		modType: modType,
		value:   paramFloat(params, "value", def),
	}
}

func (e *StatUpEffect) Name() string { return "StatUp" }

func (e *StatUpEffect) OnStart(_ Env, ae *ActiveEffect) {
	slog.Debug("stat modifier applied",
		"stat", e.stat,
		"value", e.value,
		"target", ae.Target.ID())
}

func (e *StatUpEffect) OnActionTime(Env, *ActiveEffect) bool { return true }

func (e *StatUpEffect) OnExit(_ Env, ae *ActiveEffect) {
	slog.Debug("stat modifier removed", "stat", e.stat, "target", ae.Target.ID())
}

func (e *StatUpEffect) StatModifiers(ae *ActiveEffect) []model.StatModifier {
	v := e.value
	stacks := ae.StackCount()
	if e.modType == model.StatModMul {
		v = math.Pow(v, float64(stacks))
	} else {
		v *= float64(stacks)
	}
	return []model.StatModifier{{Stat: e.stat, Type: e.modType, Value: v}}
}

// TargetLockEffect marks a target so it takes amplified damage from every source.
// Params: "amplify" (fraction, default 0.2), stacks additively.
type TargetLockEffect struct {
	amplify float64
}

func NewTargetLockEffect(params map[string]string) Effect {
	return &TargetLockEffect{amplify: paramFloat(params, "amplify", 0.2)}
}

func (e *TargetLockEffect) Name() string { return "TargetLock" }

func (e *TargetLockEffect) OnStart(_ Env, ae *ActiveEffect) {
	slog.Debug("target locked", "target", ae.Target.ID(), "amplify", e.amplify)
}

func (e *TargetLockEffect) OnActionTime(Env, *ActiveEffect) bool { return true }

func (e *TargetLockEffect) OnExit(Env, *ActiveEffect) {}

func (e *TargetLockEffect) StatModifiers(ae *ActiveEffect) []model.StatModifier {
	return []model.StatModifier{{
		Stat:  model.StatDamageTaken,
		Type:  model.StatModAdd,
		Value: e.amplify * float64(ae.StackCount()),
	}}
}
