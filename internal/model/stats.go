package model

import "math"

// StatID names a combat stat. Effects and talents reference stats by these names.
type StatID string

const (
	StatMaxHP           StatID = "maxHp"
	StatMaxMana         StatID = "maxMana"
	StatPhysicalDamage  StatID = "physicalDamage"
	StatMagicalDamage   StatID = "magicalDamage"
	StatArmor           StatID = "armor"         // percent reduction of physical damage
	StatMagicalShield   StatID = "magicalShield" // percent reduction of magical damage
	StatDodgeChance     StatID = "dodgeChance"   // 0.0-1.0
	StatCritChance      StatID = "critChance"    // 0.0-1.0
	StatCritDamage      StatID = "critDamage"    // multiplier applied on crit
	StatHealingPower    StatID = "healingPower"  // bonus fraction on outgoing heals
	StatHealingReceived StatID = "healingReceived"
	StatLifesteal       StatID = "lifesteal"
	StatHPRegen         StatID = "hpPerTurn"
	StatManaRegen       StatID = "manaPerTurn"
	StatDamageTaken     StatID = "damageTaken" // incoming amplification, Target Lock lives here
	StatDamageDealt     StatID = "damageDealt"
)

// AllStats lists every stat in recalculation order.
var AllStats = []StatID{
	StatMaxHP, StatMaxMana,
	StatPhysicalDamage, StatMagicalDamage,
	StatArmor, StatMagicalShield,
	StatDodgeChance, StatCritChance, StatCritDamage,
	StatHealingPower, StatHealingReceived, StatLifesteal,
	StatHPRegen, StatManaRegen,
	StatDamageTaken, StatDamageDealt,
}

// DefaultCritDamage is used when a template leaves critDamage unset.
const DefaultCritDamage = 1.5

// Stats holds the numeric combat attributes of a character.
// Base stats come from the character template; the current snapshot is
// base plus effect modifiers (see Character.Recalculate).
type Stats struct {
	MaxHP           int32   `yaml:"maxHp" json:"maxHp"`
	MaxMana         int32   `yaml:"maxMana" json:"maxMana"`
	PhysicalDamage  float64 `yaml:"physicalDamage" json:"physicalDamage"`
	MagicalDamage   float64 `yaml:"magicalDamage" json:"magicalDamage"`
	Armor           float64 `yaml:"armor" json:"armor"`
	MagicalShield   float64 `yaml:"magicalShield" json:"magicalShield"`
	DodgeChance     float64 `yaml:"dodgeChance" json:"dodgeChance"`
	CritChance      float64 `yaml:"critChance" json:"critChance"`
	CritDamage      float64 `yaml:"critDamage" json:"critDamage"`
	HealingPower    float64 `yaml:"healingPower" json:"healingPower"`
	HealingReceived float64 `yaml:"healingReceived" json:"healingReceived"`
	Lifesteal       float64 `yaml:"lifesteal" json:"lifesteal"`
	HPRegen         float64 `yaml:"hpPerTurn" json:"hpPerTurn"`
	ManaRegen       float64 `yaml:"manaPerTurn" json:"manaPerTurn"`
	DamageTaken     float64 `yaml:"damageTaken" json:"damageTaken"`
	DamageDealt     float64 `yaml:"damageDealt" json:"damageDealt"`
}

// Get returns the value of a stat by ID. Unknown IDs return 0.
func (s Stats) Get(id StatID) float64 {
	switch id {
	case StatMaxHP:
		return float64(s.MaxHP)
	case StatMaxMana:
		return float64(s.MaxMana)
	case StatPhysicalDamage:
		return s.PhysicalDamage
	case StatMagicalDamage:
		return s.MagicalDamage
	case StatArmor:
		return s.Armor
	case StatMagicalShield:
		return s.MagicalShield
	case StatDodgeChance:
		return s.DodgeChance
	case StatCritChance:
		return s.CritChance
	case StatCritDamage:
		return s.CritDamage
	case StatHealingPower:
		return s.HealingPower
	case StatHealingReceived:
		return s.HealingReceived
	case StatLifesteal:
		return s.Lifesteal
	case StatHPRegen:
		return s.HPRegen
	case StatManaRegen:
		return s.ManaRegen
	case StatDamageTaken:
		return s.DamageTaken
	case StatDamageDealt:
		return s.DamageDealt
	default:
		return 0
	}
}

// Set assigns a stat by ID. Integer stats are rounded. Unknown IDs are ignored.
func (s *Stats) Set(id StatID, v float64) {
	switch id {
	case StatMaxHP:
		s.MaxHP = int32(math.Round(v))
	case StatMaxMana:
		s.MaxMana = int32(math.Round(v))
	case StatPhysicalDamage:
		s.PhysicalDamage = v
	case StatMagicalDamage:
		s.MagicalDamage = v
	case StatArmor:
		s.Armor = v
	case StatMagicalShield:
		s.MagicalShield = v
	case StatDodgeChance:
		s.DodgeChance = v
	case StatCritChance:
		s.CritChance = v
	case StatCritDamage:
		s.CritDamage = v
	case StatHealingPower:
		s.HealingPower = v
	case StatHealingReceived:
		s.HealingReceived = v
	case StatLifesteal:
		s.Lifesteal = v
	case StatHPRegen:
		s.HPRegen = v
	case StatManaRegen:
		s.ManaRegen = v
	case StatDamageTaken:
		s.DamageTaken = v
	case StatDamageDealt:
		s.DamageDealt = v
	}
}

// IsKnownStat reports whether id names a stat.
func IsKnownStat(id StatID) bool {
	for _, s := range AllStats {
		if s == id {
			return true
		}
	}
	return false
}

// StatModType defines how a stat modifier is applied.
type StatModType int8

const (
	StatModAdd StatModType = iota // Additive bonus (e.g. +100 physicalDamage)
	StatModMul                    // Multiplicative bonus (e.g. ×1.2 armor)
)

// StatModifier represents a single stat modification from an effect.
// Multiple modifiers can stack on the same stat.
type StatModifier struct {
	Stat  StatID
	Type  StatModType
	Value float64
}

// StatBonusProvider provides stat bonuses from active effects (buffs/debuffs).
// Returns the summed additive bonus and the product of multiplicative bonuses
// (1.0 when there are none).
type StatBonusProvider interface {
	StatBonus(stat StatID) (add, mul float64)
}

// DamageKind selects which mitigation stat applies to a hit.
type DamageKind string

const (
	DamagePhysical DamageKind = "physical"
	DamageMagical  DamageKind = "magical"
	DamageTrue     DamageKind = "true"
)

// ParseDamageKind maps a content string to DamageKind, defaulting to physical.
func ParseDamageKind(s string) DamageKind {
	switch DamageKind(s) {
	case DamageMagical:
		return DamageMagical
	case DamageTrue:
		return DamageTrue
	default:
		return DamagePhysical
	}
}
