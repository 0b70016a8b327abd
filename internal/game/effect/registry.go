package effect

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Factory builds an effect from content params.
type Factory func(params map[string]string) Effect

// registry maps effect name → factory function.
// Populated by init() below; content may only reference registered names.
var registry = map[string]Factory{}

// RegisterEffect registers an effect factory by name.
func RegisterEffect(name string, factory Factory) {
	registry[name] = factory
}

// CreateEffect creates an effect by name using the registered factory.
// Returns error if name is not registered.
func CreateEffect(name string, params map[string]string) (Effect, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown effect type: %s", name)
	}
	return factory(params), nil
}

// IsRegistered reports whether an effect factory exists for name.
func IsRegistered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns registered effect names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

func init() {
	RegisterEffect("StatUp", NewStatUpEffect)
	RegisterEffect("DamageOverTime", NewDamageOverTimeEffect)
	RegisterEffect("HealOverTime", NewHealOverTimeEffect)
	RegisterEffect("Stun", NewStunEffect)
	RegisterEffect("Silence", NewSilenceEffect)
	RegisterEffect("Taunt", NewTauntEffect)
	RegisterEffect("Shield", NewShieldEffect)
	RegisterEffect("Parry", NewParryEffect)
	RegisterEffect("TargetLock", NewTargetLockEffect)
	RegisterEffect("Reflect", NewReflectEffect)
	RegisterEffect("Stealth", NewStealthEffect)
}

// paramFloat reads a float param; missing or malformed values fall back to def.
func paramFloat(params map[string]string, key string, def float64) float64 {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		slog.Warn("bad effect param, using default", "param", key, "value", raw, "default", def)
		return def
	}
	return v
}

func paramBool(params map[string]string, key string, def bool) bool {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("bad effect param, using default", "param", key, "value", raw, "default", def)
		return def
	}
	return v
}

func paramInt(params map[string]string, key string, def int) int {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("bad effect param, using default", "param", key, "value", raw, "default", def)
		return def
	}
	return v
}
