package model

import (
	"math"
	"sync"
	"sync/atomic"
)

// Team identifies the side a character fights on.
type Team int8

const (
	TeamPlayer Team = iota
	TeamEnemy
)

// String returns human-readable team name
func (t Team) String() string {
	switch t {
	case TeamPlayer:
		return "PLAYER"
	case TeamEnemy:
		return "ENEMY"
	default:
		return "UNKNOWN"
	}
}

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamPlayer {
		return TeamEnemy
	}
	return TeamPlayer
}

// Character is a battle participant (player hero or enemy).
// Хранит базовые статы, текущий снимок статов после эффектов, HP/мана,
// кулдауны способностей и флаги контроля.
type Character struct {
	mu sync.RWMutex

	id         string
	templateID string
	name       string
	team       Team
	level      int32

	base  Stats
	stats Stats

	hp   int32
	mana int32

	abilities []string
	cooldowns map[string]int
	passives  []string
	talents   []string

	bonuses StatBonusProvider

	// Control flags set by effects (Stun, Silence) and the stealth machine.
	// Atomic for lock-free reads from targeting code.
	stunned  atomic.Bool
	silenced atomic.Bool
	hidden   atomic.Bool

	tauntedBy string
}

// NewCharacter создаёт персонажа с полными HP и маной.
func NewCharacter(id, templateID, name string, team Team, level int32, base Stats) *Character {
	if base.CritDamage == 0 {
		base.CritDamage = DefaultCritDamage
	}
	if base.MaxHP < 1 {
		base.MaxHP = 1
	}
	c := &Character{
		id:         id,
		templateID: templateID,
		name:       name,
		team:       team,
		level:      level,
		base:       base,
		stats:      base,
		hp:         base.MaxHP,
		mana:       base.MaxMana,
		cooldowns:  make(map[string]int),
	}
	return c
}

// ID возвращает уникальный ID персонажа внутри боя.
func (c *Character) ID() string { return c.id }

// TemplateID returns the content template the character was built from.
func (c *Character) TemplateID() string { return c.templateID }

// Name возвращает имя персонажа.
func (c *Character) Name() string { return c.name }

// Team returns the character's side.
func (c *Character) Team() Team { return c.team }

// Level возвращает уровень персонажа.
func (c *Character) Level() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// SetBonusProvider attaches the effect manager that feeds Recalculate.
func (c *Character) SetBonusProvider(p StatBonusProvider) {
	c.mu.Lock()
	c.bonuses = p
	c.mu.Unlock()
	c.Recalculate()
}

// BaseStats returns a copy of the template stats.
func (c *Character) BaseStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base
}

// Stats returns the current stat snapshot (base + modifiers).
func (c *Character) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Stat returns a single stat from the current snapshot.
func (c *Character) Stat(id StatID) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.Get(id)
}

// Recalculate rebuilds the current stat snapshot from base stats and the
// bonus provider: additive bonuses are summed first, then multiplicative
// bonuses are applied. Current HP/mana are clamped to the new maximums.
func (c *Character) Recalculate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.base
	if c.bonuses != nil {
		for _, id := range AllStats {
			add, mul := c.bonuses.StatBonus(id)
			if add == 0 && mul == 1 {
				continue
			}
			next.Set(id, (c.base.Get(id)+add)*mul)
		}
	}
	if next.MaxHP < 1 {
		next.MaxHP = 1
	}
	if next.MaxMana < 0 {
		next.MaxMana = 0
	}
	c.stats = next

	if c.hp > c.stats.MaxHP {
		c.hp = c.stats.MaxHP
	}
	if c.mana > c.stats.MaxMana {
		c.mana = c.stats.MaxMana
	}
}

// HP возвращает текущее HP.
func (c *Character) HP() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hp
}

// MaxHP возвращает максимальное HP из текущего снимка статов.
func (c *Character) MaxHP() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.MaxHP
}

// HPPercentage возвращает процент текущего HP (0.0 - 1.0).
func (c *Character) HPPercentage() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats.MaxHP == 0 {
		return 0
	}
	return float64(c.hp) / float64(c.stats.MaxHP)
}

// SetHP устанавливает HP с валидацией (clamp 0..maxHP).
func (c *Character) SetHP(hp int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hp = min(max(hp, 0), c.stats.MaxHP)
}

// ReduceHP subtracts damage from HP and returns the amount actually removed
// and whether this call killed the character. Damage on a dead character is
// ignored.
func (c *Character) ReduceHP(damage int32) (dealt int32, killed bool) {
	if damage <= 0 {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hp <= 0 {
		return 0, false
	}
	dealt = min(damage, c.hp)
	c.hp -= dealt
	return dealt, c.hp == 0
}

// RestoreHP adds HP (clamped to max) and returns the amount restored.
// Dead characters are not healed.
func (c *Character) RestoreHP(amount int32) int32 {
	if amount <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hp <= 0 {
		return 0
	}
	restored := min(amount, c.stats.MaxHP-c.hp)
	c.hp += restored
	return restored
}

// IsDead проверяет мёртв ли персонаж (HP <= 0).
func (c *Character) IsDead() bool {
	return c.HP() <= 0
}

// Mana returns current mana.
func (c *Character) Mana() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mana
}

// MaxMana returns maximum mana from the current snapshot.
func (c *Character) MaxMana() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.MaxMana
}

// SpendMana deducts cost if affordable. Returns false without change otherwise.
func (c *Character) SpendMana(cost int32) bool {
	if cost <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mana < cost {
		return false
	}
	c.mana -= cost
	return true
}

// RestoreMana adds mana (clamped) and returns the amount restored.
func (c *Character) RestoreMana(amount int32) int32 {
	if amount <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	restored := min(amount, c.stats.MaxMana-c.mana)
	c.mana += restored
	return restored
}

// --- Abilities & cooldowns ---

// SetAbilities replaces the ability list (order is the AI priority order).
func (c *Character) SetAbilities(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abilities = append([]string(nil), ids...)
}

// Abilities returns a copy of the ability IDs.
func (c *Character) Abilities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.abilities...)
}

// HasAbility reports whether the character knows the ability.
func (c *Character) HasAbility(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.abilities {
		if a == id {
			return true
		}
	}
	return false
}

// StartCooldown puts an ability on cooldown for the given number of turns.
func (c *Character) StartCooldown(abilityID string, turns int) {
	if turns <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldowns[abilityID] = turns
}

// CooldownRemaining returns the number of turns until the ability is ready.
func (c *Character) CooldownRemaining(abilityID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cooldowns[abilityID]
}

// TickCooldowns decrements every running cooldown by one turn.
func (c *Character) TickCooldowns() {
	c.ReduceCooldowns(1)
}

// ReduceCooldowns shortens every running cooldown by n turns (never below 0).
func (c *Character) ReduceCooldowns(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, left := range c.cooldowns {
		left -= n
		if left <= 0 {
			delete(c.cooldowns, id)
			continue
		}
		c.cooldowns[id] = left
	}
}

// SetPassives replaces the passive IDs.
func (c *Character) SetPassives(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passives = append([]string(nil), ids...)
}

// Passives returns a copy of the passive IDs.
func (c *Character) Passives() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.passives...)
}

// SetTalents replaces the chosen talent IDs.
func (c *Character) SetTalents(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.talents = append([]string(nil), ids...)
}

// Talents returns a copy of the talent IDs.
func (c *Character) Talents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.talents...)
}

// --- Control flags ---

// IsStunned reports whether the character is stunned.
func (c *Character) IsStunned() bool { return c.stunned.Load() }

// SetStunned sets or clears the stun flag.
func (c *Character) SetStunned(v bool) { c.stunned.Store(v) }

// IsSilenced reports whether the character is silenced.
func (c *Character) IsSilenced() bool { return c.silenced.Load() }

// SetSilenced sets or clears the silence flag.
func (c *Character) SetSilenced(v bool) { c.silenced.Store(v) }

// IsHidden reports whether the character is in stealth.
func (c *Character) IsHidden() bool { return c.hidden.Load() }

// SetHidden is driven by the stealth state machine.
func (c *Character) SetHidden(v bool) { c.hidden.Store(v) }

// TauntedBy returns the ID of the character forcing this one's target, or "".
func (c *Character) TauntedBy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tauntedBy
}

// SetTauntedBy sets the forced target ("" clears it).
func (c *Character) SetTauntedBy(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tauntedBy = id
}

// CanAct reports whether the character may take a turn action at all.
func (c *Character) CanAct() bool {
	return !c.IsDead() && !c.IsStunned()
}

// CanCast reports whether the character may use abilities with a mana cost.
func (c *Character) CanCast() bool {
	return c.CanAct() && !c.IsSilenced()
}

// RoundHP converts a fractional combat amount to whole HP, rounding half up.
func RoundHP(v float64) int32 {
	if v <= 0 {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(math.Floor(v + 0.5))
}
