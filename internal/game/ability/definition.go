// Package ability implements castable abilities: content definitions,
// target resolution, the cast pipeline and effect functions registered by key.
package ability

import (
	"errors"
	"fmt"

	"github.com/udisondev/skirmish/internal/game/effect"
	"github.com/udisondev/skirmish/internal/model"
)

// TargetType selects who an ability can hit.
type TargetType string

const (
	TargetSelf          TargetType = "self"
	TargetAlly          TargetType = "ally"
	TargetEnemy         TargetType = "enemy"
	TargetAllEnemies    TargetType = "all_enemies"
	TargetAllAllies     TargetType = "all_allies"
	TargetRandomEnemies TargetType = "random_enemies"
	TargetLowestAlly    TargetType = "lowest_ally"
)

// Offensive reports whether the target type picks enemies.
func (t TargetType) Offensive() bool {
	switch t {
	case TargetEnemy, TargetAllEnemies, TargetRandomEnemies:
		return true
	}
	return false
}

func (t TargetType) valid() bool {
	switch t {
	case TargetSelf, TargetAlly, TargetEnemy, TargetAllEnemies,
		TargetAllAllies, TargetRandomEnemies, TargetLowestAlly:
		return true
	}
	return false
}

// EffectSpec describes a buff or debuff an ability applies to its targets.
type EffectSpec struct {
	Name        string            `yaml:"name"`
	Kind        string            `yaml:"kind"`     // buff | debuff (default by target side)
	OnSelf      bool              `yaml:"onSelf"`   // apply to caster instead of targets
	Duration    int               `yaml:"duration"` // turns, -1 = permanent
	StackKey    string            `yaml:"stackKey"`
	Level       int32             `yaml:"level"`
	MaxStacks   int               `yaml:"maxStacks"`
	Chance      float64           `yaml:"chance"` // 0 = always
	Dispellable *bool             `yaml:"dispellable"`
	Params      map[string]string `yaml:"params"`
}

// IsDispellable defaults to true.
func (s EffectSpec) IsDispellable() bool {
	return s.Dispellable == nil || *s.Dispellable
}

// Definition is an ability as loaded from content.
type Definition struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	ManaCost    int32        `yaml:"manaCost"`
	Cooldown    int          `yaml:"cooldown"`
	Target      TargetType   `yaml:"target"`
	Count       int          `yaml:"count"` // random_enemies pick count
	Func        string       `yaml:"func"`
	DamageKind  string       `yaml:"damageKind"`
	Scaling     model.StatID `yaml:"scaling"` // stat the "ratio" param scales with
	Params      model.Params `yaml:"params"`
	Effects     []EffectSpec `yaml:"effects"`
	Script      string       `yaml:"script,omitempty"`
	AIPriority  int          `yaml:"aiPriority"`
}

// Kind returns the damage kind, physical by default.
func (d *Definition) Kind() model.DamageKind {
	return model.ParseDamageKind(d.DamageKind)
}

// ScalingStat returns the stat "ratio" scales with, magicalDamage by default.
func (d *Definition) ScalingStat() model.StatID {
	if d.Scaling == "" {
		return model.StatMagicalDamage
	}
	return d.Scaling
}

// Damaging reports whether casting deals damage (breaks stealth on the caster).
func (d *Definition) Damaging() bool {
	switch d.Func {
	case "damage", "multi_hit", "drain":
		return true
	case "script":
		return d.Target.Offensive()
	}
	return false
}

// Healing reports whether the ability restores HP.
func (d *Definition) Healing() bool {
	return d.Func == "heal"
}

// Validate checks a definition against registered funcs and effects.
func (d *Definition) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("missing id"))
	}
	if !d.Target.valid() {
		errs = append(errs, fmt.Errorf("unknown target type %q", d.Target))
	}
	if d.Func == "" {
		errs = append(errs, errors.New("missing func"))
	} else if _, ok := lookup(d.Func); !ok {
		errs = append(errs, fmt.Errorf("unknown func %q", d.Func))
	}
	if d.Func == "script" && d.Script == "" {
		errs = append(errs, errors.New("script func without script"))
	}
	if d.Scaling != "" && !model.IsKnownStat(d.Scaling) {
		errs = append(errs, fmt.Errorf("unknown scaling stat %q", d.Scaling))
	}
	if d.ManaCost < 0 || d.Cooldown < 0 {
		errs = append(errs, errors.New("negative mana cost or cooldown"))
	}
	for _, spec := range d.Effects {
		if !effect.IsRegistered(spec.Name) {
			errs = append(errs, fmt.Errorf("unknown effect %q", spec.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ability %s: %w", d.ID, err)
	}
	return nil
}
