package model

import "maps"

// Params holds numeric tuning values of an ability or passive
// (base, ratio, hits, chance, ...). Talents override them per character.
type Params map[string]float64

// Get returns the param or def when it is not set.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Flag reports whether a param is set to a non-zero value.
func (p Params) Flag(key string) bool {
	return p[key] != 0
}

// Clone returns a copy safe to mutate.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}

// Talent modifies an ability's or a passive's params.
// Set replaces values, Scale multiplies them (applied after Set).
type Talent struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Ability     string `yaml:"ability,omitempty" json:"ability,omitempty"`
	Passive     string `yaml:"passive,omitempty" json:"passive,omitempty"`
	Set         Params `yaml:"set,omitempty" json:"set,omitempty"`
	Scale       Params `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// ForAbility applies all talents targeting abilityID to base.
func ForAbility(base Params, talents []*Talent, abilityID string) Params {
	return applyTalents(base, talents, func(t *Talent) bool { return t.Ability == abilityID })
}

// ForPassive applies all talents targeting passiveID to base.
func ForPassive(base Params, talents []*Talent, passiveID string) Params {
	return applyTalents(base, talents, func(t *Talent) bool { return t.Passive == passiveID })
}

func applyTalents(base Params, talents []*Talent, match func(*Talent) bool) Params {
	out := base.Clone()
	for _, t := range talents {
		if t == nil || !match(t) {
			continue
		}
		for k, v := range t.Set {
			out[k] = v
		}
		for k, v := range t.Scale {
			if cur, ok := out[k]; ok {
				out[k] = cur * v
			}
		}
	}
	return out
}
