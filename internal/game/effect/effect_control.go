package effect

import "log/slog"

// StunEffect blocks all actions for its duration.
type StunEffect struct{}

func NewStunEffect(_ map[string]string) Effect {
	return &StunEffect{}
}

func (e *StunEffect) Name() string    { return "Stun" }
func (e *StunEffect) Blocks() Control { return ControlStun }

func (e *StunEffect) OnStart(_ Env, ae *ActiveEffect) {
	slog.Debug("stun applied", "target", ae.Target.ID())
}

func (e *StunEffect) OnActionTime(Env, *ActiveEffect) bool { return true }

func (e *StunEffect) OnExit(_ Env, ae *ActiveEffect) {
	slog.Debug("stun removed", "target", ae.Target.ID())
}

// SilenceEffect blocks abilities that cost mana.
type SilenceEffect struct{}

func NewSilenceEffect(_ map[string]string) Effect {
	return &SilenceEffect{}
}

func (e *SilenceEffect) Name() string    { return "Silence" }
func (e *SilenceEffect) Blocks() Control { return ControlSilence }

func (e *SilenceEffect) OnStart(Env, *ActiveEffect)            {}
func (e *SilenceEffect) OnActionTime(Env, *ActiveEffect) bool { return true }
func (e *SilenceEffect) OnExit(Env, *ActiveEffect)             {}

// TauntEffect forces the owner's single-target abilities onto the caster.
type TauntEffect struct{}

func NewTauntEffect(_ map[string]string) Effect {
	return &TauntEffect{}
}

func (e *TauntEffect) Name() string { return "Taunt" }

func (e *TauntEffect) OnStart(_ Env, ae *ActiveEffect) {
	if ae.Caster == nil {
		return
	}
	ae.Target.SetTauntedBy(ae.Caster.ID())
	slog.Debug("taunt applied", "target", ae.Target.ID(), "taunter", ae.Caster.ID())
}

func (e *TauntEffect) OnActionTime(_ Env, ae *ActiveEffect) bool {
	// Taunt ends when the taunter dies
	return ae.Caster == nil || !ae.Caster.IsDead()
}

func (e *TauntEffect) OnExit(_ Env, ae *ActiveEffect) {
	if ae.Caster != nil && ae.Target.TauntedBy() == ae.Caster.ID() {
		ae.Target.SetTauntedBy("")
	}
}
