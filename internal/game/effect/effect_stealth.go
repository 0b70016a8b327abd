package effect

import (
	"log/slog"

	"github.com/udisondev/skirmish/internal/game/stealth"
)

// StealthEffect hides the owner through its stealth machine.
// Params: "turns" (default 1), "keepOnAttack" (default false).
// The effect lives while the machine stays Hidden.
type StealthEffect struct {
	opts stealth.Options
}

func NewStealthEffect(params map[string]string) Effect {
	return &StealthEffect{opts: stealth.Options{
		Turns:        paramInt(params, "turns", 1),
		KeepOnAttack: paramBool(params, "keepOnAttack", false),
	}}
}

func (e *StealthEffect) Name() string { return "Stealth" }

func (e *StealthEffect) OnStart(env Env, ae *ActiveEffect) {
	m := env.Stealth(ae.Target)
	if m == nil {
		return
	}
	if _, err := m.Hide(e.opts); err != nil {
		slog.Debug("hide rejected", "target", ae.Target.ID(), "error", err)
	}
}

func (e *StealthEffect) OnActionTime(env Env, ae *ActiveEffect) bool {
	m := env.Stealth(ae.Target)
	return m != nil && m.State() == stealth.Hidden
}

func (e *StealthEffect) OnExit(env Env, ae *ActiveEffect) {
	m := env.Stealth(ae.Target)
	if m != nil && m.State() == stealth.Hidden {
		_, _ = m.Fire(stealth.EventReveal)
	}
}
