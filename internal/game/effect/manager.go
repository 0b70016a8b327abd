package effect

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/udisondev/skirmish/internal/model"
)

const (
	maxBuffs   = 24
	maxDebuffs = 8
)

var nextEffectID atomic.Uint64

// Manager tracks active buffs, debuffs and passives of one character.
// Implements model.StatBonusProvider.
//
// Thread-safe. Effect callbacks (OnStart/OnExit) and the owner's stat
// recalculation run after the lock is released, so callbacks may deal damage
// through Env which in turn reads this manager's interceptors.
type Manager struct {
	mu       sync.RWMutex
	owner    *model.Character
	env      Env
	buffs    []*ActiveEffect
	debuffs  []*ActiveEffect
	passives []*ActiveEffect

	modifiers []model.StatModifier
	controls  Control
}

// NewManager creates an empty Manager and installs it as owner's bonus provider.
func NewManager(owner *model.Character, env Env) *Manager {
	m := &Manager{
		owner:     owner,
		env:       env,
		buffs:     make([]*ActiveEffect, 0, maxBuffs),
		debuffs:   make([]*ActiveEffect, 0, maxDebuffs),
		passives:  make([]*ActiveEffect, 0, 4),
		modifiers: make([]model.StatModifier, 0, 16),
	}
	owner.SetBonusProvider(m)
	return m
}

// Owner returns the character this manager belongs to.
func (m *Manager) Owner() *model.Character { return m.owner }

// pending collects callbacks to run once the lock is released.
type pending struct {
	exited  []*ActiveEffect
	started []*ActiveEffect
	changed bool
}

func (p *pending) exit(ae *ActiveEffect) {
	p.exited = append(p.exited, ae)
	p.changed = true
}

func (p *pending) start(ae *ActiveEffect) {
	p.started = append(p.started, ae)
	p.changed = true
}

// flush runs collected callbacks and syncs the owner. Must be called without mu held.
func (m *Manager) flush(p *pending) {
	for _, ae := range p.exited {
		ae.Effect.OnExit(m.env, ae)
	}
	for _, ae := range p.started {
		ae.Effect.OnStart(m.env, ae)
	}
	if p.changed {
		m.syncOwner()
	}
}

func (m *Manager) syncOwner() {
	m.mu.RLock()
	controls := m.controls
	m.mu.RUnlock()

	m.owner.SetStunned(controls&ControlStun != 0)
	m.owner.SetSilenced(controls&ControlSilence != 0)
	m.owner.Recalculate()
}

// AddBuff adds a buff effect with stacking check.
// Returns true if the effect was added, replaced or refreshed, false if rejected.
//
// Stacking rules (same StackKey):
//   - Higher Level → replaces existing
//   - Same Level → refreshes duration and adds a stack up to MaxStacks
//   - Lower Level → rejected
//
// If the buff limit (24) is reached, the oldest buff is removed.
func (m *Manager) AddBuff(ae *ActiveEffect) bool {
	ae.Kind = KindBuff
	return m.add(ae, &m.buffs, maxBuffs)
}

// AddDebuff adds a debuff effect. Same stacking rules as AddBuff, with 8 debuff limit.
func (m *Manager) AddDebuff(ae *ActiveEffect) bool {
	ae.Kind = KindDebuff
	return m.add(ae, &m.debuffs, maxDebuffs)
}

// AddPassive adds a permanent passive effect. A passive with the same Source
// replaces the existing one.
func (m *Manager) AddPassive(ae *ActiveEffect) bool {
	ae.Kind = KindPassive
	ae.RemainingTurns = Permanent
	ae.Dispellable = false
	if ae.StackKey == "" {
		ae.StackKey = "passive:" + ae.Source
	}
	return m.add(ae, &m.passives, math.MaxInt)
}

func (m *Manager) add(ae *ActiveEffect, list *[]*ActiveEffect, limit int) bool {
	if m.owner.IsDead() {
		return false
	}
	if ae.ID == 0 {
		ae.ID = nextEffectID.Add(1)
	}
	if ae.Target == nil {
		ae.Target = m.owner
	}
	if ae.Stacks < 1 {
		ae.Stacks = 1
	}

	var p pending
	m.mu.Lock()
	accepted := m.addLocked(ae, list, limit, &p)
	if p.changed {
		m.rebuildModifiers()
	}
	m.mu.Unlock()

	m.flush(&p)
	return accepted
}

func (m *Manager) addLocked(ae *ActiveEffect, list *[]*ActiveEffect, limit int, p *pending) bool {
	effects := *list

	if ae.StackKey != "" {
		for i, existing := range effects {
			if existing.StackKey != ae.StackKey {
				continue
			}
			switch {
			case ae.Level > existing.Level:
				p.exit(existing)
				effects[i] = ae
				p.start(ae)
				return true
			case ae.Level == existing.Level:
				existing.RemainingTurns = ae.RemainingTurns
				if existing.Stacks < existing.MaxStacks {
					existing.Stacks++
				}
				// stack count feeds modifiers
				p.changed = true
				return true
			default:
				slog.Debug("effect rejected by stacking",
					"effect", ae.Effect.Name(),
					"stackKey", ae.StackKey,
					"level", ae.Level,
					"existingLevel", existing.Level)
				return false
			}
		}
	}

	if len(effects) >= limit {
		oldest := effects[0]
		effects = effects[1:]
		p.exit(oldest)

		slog.Debug("effect limit reached, removed oldest",
			"kind", ae.Kind,
			"removed", oldest.Effect.Name(),
			"target", m.owner.ID())
	}

	*list = append(effects, ae)
	p.start(ae)
	return true
}

// Remove removes the effect with the given ID. Returns false if not found.
func (m *Manager) Remove(id uint64) bool {
	return m.removeWhere(func(ae *ActiveEffect) bool { return ae.ID == id }) > 0
}

// RemoveByStackKey removes all buffs and debuffs with the given stack key.
func (m *Manager) RemoveByStackKey(key string) int {
	return m.removeWhere(func(ae *ActiveEffect) bool {
		return ae.Kind != KindPassive && ae.StackKey == key
	})
}

// RemoveBySource removes all effects applied by the given ability or passive.
func (m *Manager) RemoveBySource(source string) int {
	return m.removeWhere(func(ae *ActiveEffect) bool { return ae.Source == source })
}

// Clear removes every effect, passives included. Used on death.
func (m *Manager) Clear() int {
	return m.removeWhere(func(*ActiveEffect) bool { return true })
}

func (m *Manager) removeWhere(match func(*ActiveEffect) bool) int {
	var p pending
	m.mu.Lock()
	m.buffs = removeMatching(m.buffs, match, &p)
	m.debuffs = removeMatching(m.debuffs, match, &p)
	m.passives = removeMatching(m.passives, match, &p)
	if p.changed {
		m.rebuildModifiers()
	}
	m.mu.Unlock()

	m.flush(&p)
	return len(p.exited)
}

// Dispel removes up to n dispellable effects of the given kind, newest first.
// n <= 0 removes all of them. Passives cannot be dispelled.
func (m *Manager) Dispel(kind Kind, n int) int {
	var p pending
	m.mu.Lock()
	var list *[]*ActiveEffect
	switch kind {
	case KindBuff:
		list = &m.buffs
	case KindDebuff:
		list = &m.debuffs
	default:
		m.mu.Unlock()
		return 0
	}

	effects := *list
	removed := make(map[uint64]struct{})
	for i := len(effects) - 1; i >= 0; i-- {
		if n > 0 && len(removed) >= n {
			break
		}
		if effects[i].Dispellable {
			removed[effects[i].ID] = struct{}{}
		}
	}
	*list = removeMatching(effects, func(ae *ActiveEffect) bool {
		_, ok := removed[ae.ID]
		return ok
	}, &p)
	if p.changed {
		m.rebuildModifiers()
	}
	m.mu.Unlock()

	m.flush(&p)
	return len(p.exited)
}

// ProcessTurnStart runs OnActionTime for every effect in application order.
// Effects that return false are removed. Stops once the owner dies.
func (m *Manager) ProcessTurnStart() {
	for _, ae := range m.all() {
		if m.owner.IsDead() {
			return
		}
		if !m.has(ae.ID) {
			// removed by an earlier effect in this pass
			continue
		}
		if !ae.Effect.OnActionTime(m.env, ae) {
			m.Remove(ae.ID)
		}
	}
}

// Tick decrements durations of buffs and debuffs by turns.
// Expired effects are removed and their OnExit called.
func (m *Manager) Tick(turns int) {
	var p pending
	m.mu.Lock()
	m.buffs = tickEffects(m.buffs, turns, &p)
	m.debuffs = tickEffects(m.debuffs, turns, &p)
	if p.changed {
		m.rebuildModifiers()
	}
	m.mu.Unlock()

	m.flush(&p)
}

// StatBonus returns the summed additive bonus and the product of
// multiplicative bonuses for a stat. Implements model.StatBonusProvider.
func (m *Manager) StatBonus(stat model.StatID) (add, mul float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mul = 1.0
	for _, mod := range m.modifiers {
		if mod.Stat != stat {
			continue
		}
		switch mod.Type {
		case model.StatModAdd:
			add += mod.Value
		case model.StatModMul:
			mul *= mod.Value
		}
	}
	return add, mul
}

// Blocks reports whether any active effect applies the given control.
func (m *Manager) Blocks(c Control) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controls&c != 0
}

// Interceptors returns effects that intercept incoming damage, in application order.
func (m *Manager) Interceptors() []*ActiveEffect {
	var out []*ActiveEffect
	for _, ae := range m.all() {
		if _, ok := ae.Effect.(DamageInterceptor); ok {
			out = append(out, ae)
		}
	}
	return out
}

// Has reports whether an effect with the given name is active.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, list := range [][]*ActiveEffect{m.buffs, m.debuffs, m.passives} {
		for _, ae := range list {
			if ae.Effect.Name() == name {
				return true
			}
		}
	}
	return false
}

// ActiveBuffs returns a copy of active buff effects.
func (m *Manager) ActiveBuffs() []*ActiveEffect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.buffs)
}

// ActiveDebuffs returns a copy of active debuff effects.
func (m *Manager) ActiveDebuffs() []*ActiveEffect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.debuffs)
}

// Passives returns a copy of active passive effects.
func (m *Manager) Passives() []*ActiveEffect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.passives)
}

// BuffCount returns current number of active buffs.
func (m *Manager) BuffCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buffs)
}

// DebuffCount returns current number of active debuffs.
func (m *Manager) DebuffCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.debuffs)
}

// Snapshots describes all buffs and debuffs for clients.
func (m *Manager) Snapshots() []Snapshot {
	var out []Snapshot
	for _, ae := range m.all() {
		if ae.Kind == KindPassive {
			continue
		}
		out = append(out, ae.Snapshot())
	}
	return out
}

// all returns every effect sorted by ID (application order).
func (m *Manager) all() []*ActiveEffect {
	m.mu.RLock()
	out := make([]*ActiveEffect, 0, len(m.buffs)+len(m.debuffs)+len(m.passives))
	out = append(out, m.passives...)
	out = append(out, m.buffs...)
	out = append(out, m.debuffs...)
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *ActiveEffect) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (m *Manager) has(id uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, list := range [][]*ActiveEffect{m.buffs, m.debuffs, m.passives} {
		for _, ae := range list {
			if ae.ID == id {
				return true
			}
		}
	}
	return false
}

// rebuildModifiers recalculates stat modifiers and controls from all active effects.
// Must be called with mu held.
func (m *Manager) rebuildModifiers() {
	m.modifiers = m.modifiers[:0]
	m.controls = 0

	collect := func(effects []*ActiveEffect) {
		for _, ae := range effects {
			if provider, ok := ae.Effect.(StatModifierProvider); ok {
				m.modifiers = append(m.modifiers, provider.StatModifiers(ae)...)
			}
			if blocker, ok := ae.Effect.(ActionBlocker); ok {
				m.controls |= blocker.Blocks()
			}
		}
	}

	collect(m.buffs)
	collect(m.debuffs)
	collect(m.passives)
}

// removeMatching removes matching effects, queueing OnExit.
func removeMatching(effects []*ActiveEffect, match func(*ActiveEffect) bool, p *pending) []*ActiveEffect {
	n := 0
	for _, ae := range effects {
		if match(ae) {
			p.exit(ae)
		} else {
			effects[n] = ae
			n++
		}
	}
	clear(effects[n:])
	return effects[:n]
}

// tickEffects decrements durations and removes expired effects.
func tickEffects(effects []*ActiveEffect, turns int, p *pending) []*ActiveEffect {
	n := 0
	for _, ae := range effects {
		if !ae.Tick(turns) {
			p.exit(ae)
		} else {
			effects[n] = ae
			n++
		}
	}
	clear(effects[n:])
	return effects[:n]
}
