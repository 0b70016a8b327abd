package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/game/stealth"
	"github.com/udisondev/skirmish/internal/model"
)

// fakeEnv applies periodic damage and heals directly to HP.
type fakeEnv struct {
	roller   dice.Roller
	machines map[string]*stealth.Machine
	periodic []float64
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{roller: dice.NewFixed(), machines: map[string]*stealth.Machine{}}
}

func (e *fakeEnv) DealPeriodic(_, target *model.Character, amount float64, _ model.DamageKind, canKill bool) int32 {
	e.periodic = append(e.periodic, amount)
	dmg := model.RoundHP(amount)
	if !canKill && dmg >= target.HP() {
		dmg = target.HP() - 1
	}
	dealt, _ := target.ReduceHP(dmg)
	return dealt
}

func (e *fakeEnv) Heal(_, target *model.Character, amount float64) int32 {
	return target.RestoreHP(model.RoundHP(amount))
}

func (e *fakeEnv) Stealth(c *model.Character) *stealth.Machine {
	m, ok := e.machines[c.ID()]
	if !ok {
		m = stealth.NewMachine()
		e.machines[c.ID()] = m
	}
	return m
}

func (e *fakeEnv) Roller() dice.Roller { return e.roller }

func newTestChar(id string) *model.Character {
	return model.NewCharacter(id, id, id, model.TeamPlayer, 1, model.Stats{
		MaxHP:          1000,
		MaxMana:        100,
		PhysicalDamage: 100,
		MagicalDamage:  200,
	})
}

func statUp(t *testing.T, stat, typ, value string) Effect {
	t.Helper()
	eff, err := CreateEffect("StatUp", map[string]string{"stat": stat, "type": typ, "value": value})
	require.NoError(t, err)
	return eff
}

func TestAddBuff_StackingHigherLevelReplaces(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	require.True(t, m.AddBuff(&ActiveEffect{
		Effect: statUp(t, "physicalDamage", "ADD", "10"), StackKey: "might", Level: 1, RemainingTurns: 3,
	}))
	require.True(t, m.AddBuff(&ActiveEffect{
		Effect: statUp(t, "physicalDamage", "ADD", "50"), StackKey: "might", Level: 2, RemainingTurns: 3,
	}))

	assert.Equal(t, 1, m.BuffCount())
	assert.InDelta(t, 150, c.Stat(model.StatPhysicalDamage), 1e-9)
}

func TestAddBuff_StackingSameLevelRefreshesAndStacks(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	first := &ActiveEffect{
		Effect: statUp(t, "physicalDamage", "ADD", "10"), StackKey: "might", Level: 1,
		RemainingTurns: 1, MaxStacks: 2,
	}
	require.True(t, m.AddBuff(first))
	for range 3 {
		require.True(t, m.AddBuff(&ActiveEffect{
			Effect: statUp(t, "physicalDamage", "ADD", "10"), StackKey: "might", Level: 1,
			RemainingTurns: 4, MaxStacks: 2,
		}))
	}

	assert.Equal(t, 1, m.BuffCount())
	assert.Equal(t, 4, first.RemainingTurns, "duration refreshed")
	assert.Equal(t, 2, first.Stacks, "stacks capped at MaxStacks")
	assert.InDelta(t, 120, c.Stat(model.StatPhysicalDamage), 1e-9)
}

func TestAddBuff_StackingLowerLevelRejected(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	require.True(t, m.AddBuff(&ActiveEffect{
		Effect: statUp(t, "physicalDamage", "ADD", "50"), StackKey: "might", Level: 2, RemainingTurns: 3,
	}))
	assert.False(t, m.AddBuff(&ActiveEffect{
		Effect: statUp(t, "physicalDamage", "ADD", "10"), StackKey: "might", Level: 1, RemainingTurns: 3,
	}))
	assert.InDelta(t, 150, c.Stat(model.StatPhysicalDamage), 1e-9)
}

func TestAddBuff_LimitEvictsOldest(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	var firstID uint64
	for i := range maxBuffs + 1 {
		ae := &ActiveEffect{Effect: statUp(t, "armor", "ADD", "1"), RemainingTurns: 5}
		require.True(t, m.AddBuff(ae))
		if i == 0 {
			firstID = ae.ID
		}
	}

	assert.Equal(t, maxBuffs, m.BuffCount())
	for _, ae := range m.ActiveBuffs() {
		assert.NotEqual(t, firstID, ae.ID)
	}
}

func TestAddDebuff_Limit(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	for range maxDebuffs + 3 {
		m.AddDebuff(&ActiveEffect{Effect: statUp(t, "armor", "ADD", "-1"), RemainingTurns: 5})
	}
	assert.Equal(t, maxDebuffs, m.DebuffCount())
}

func TestAdd_RejectedOnDeadOwner(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())
	c.ReduceHP(c.HP())

	assert.False(t, m.AddBuff(&ActiveEffect{Effect: &StunEffect{}, RemainingTurns: 1}))
	assert.Zero(t, m.BuffCount())
}

func TestStatBonus_AddThenMul(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	m.AddBuff(&ActiveEffect{Effect: statUp(t, "magicalDamage", "ADD", "100"), RemainingTurns: 2})
	m.AddBuff(&ActiveEffect{Effect: statUp(t, "magicalDamage", "MUL", "1.5"), RemainingTurns: 2})

	add, mul := m.StatBonus(model.StatMagicalDamage)
	assert.InDelta(t, 100, add, 1e-9)
	assert.InDelta(t, 1.5, mul, 1e-9)
	assert.InDelta(t, 450, c.Stat(model.StatMagicalDamage), 1e-9)

	add, mul = m.StatBonus(model.StatArmor)
	assert.Zero(t, add)
	assert.Equal(t, 1.0, mul)
}

func TestTick_ExpiresAndRestoresStats(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	m.AddBuff(&ActiveEffect{Effect: statUp(t, "physicalDamage", "ADD", "40"), RemainingTurns: 2})
	m.AddPassive(&ActiveEffect{Effect: statUp(t, "armor", "ADD", "5"), Source: "aura"})

	m.Tick(1)
	assert.Equal(t, 1, m.BuffCount())
	m.Tick(1)
	assert.Zero(t, m.BuffCount())

	assert.InDelta(t, 100, c.Stat(model.StatPhysicalDamage), 1e-9)
	assert.InDelta(t, 5, c.Stat(model.StatArmor), 1e-9, "passives never expire")
}

func TestControls_SyncOwnerFlags(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	m.AddDebuff(&ActiveEffect{Effect: &StunEffect{}, RemainingTurns: 1})
	assert.True(t, c.IsStunned())
	assert.True(t, m.Blocks(ControlStun))
	assert.False(t, m.Blocks(ControlSilence))
	assert.False(t, c.CanAct())

	m.Tick(1)
	assert.False(t, c.IsStunned())
	assert.True(t, c.CanAct())
}

func TestDispel_NewestFirstDispellableOnly(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	locked := &ActiveEffect{Effect: &StunEffect{}, RemainingTurns: 3}
	old := &ActiveEffect{Effect: &SilenceEffect{}, RemainingTurns: 3, Dispellable: true}
	newest := &ActiveEffect{Effect: statUp(t, "armor", "ADD", "-5"), RemainingTurns: 3, Dispellable: true}
	m.AddDebuff(locked)
	m.AddDebuff(old)
	m.AddDebuff(newest)

	assert.Equal(t, 1, m.Dispel(KindDebuff, 1))
	ids := []uint64{}
	for _, ae := range m.ActiveDebuffs() {
		ids = append(ids, ae.ID)
	}
	assert.ElementsMatch(t, []uint64{locked.ID, old.ID}, ids)

	assert.Equal(t, 1, m.Dispel(KindDebuff, 0))
	assert.Equal(t, 1, m.DebuffCount())
	assert.Zero(t, m.Dispel(KindPassive, 0))
}

func TestRemoveBySourceAndStackKey(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())

	m.AddBuff(&ActiveEffect{Effect: &ParryEffect{chance: 1, share: 0.5}, Source: "riposte", RemainingTurns: 2})
	m.AddDebuff(&ActiveEffect{Effect: &TargetLockEffect{amplify: 0.2}, StackKey: "lock", RemainingTurns: 2})

	assert.Equal(t, 1, m.RemoveBySource("riposte"))
	assert.Equal(t, 1, m.RemoveByStackKey("lock"))
	assert.Zero(t, m.RemoveByStackKey("lock"))
	assert.Zero(t, m.BuffCount()+m.DebuffCount())
}

func TestProcessTurnStart_DamageOverTime(t *testing.T) {
	caster := newTestChar("mage")
	target := newTestChar("dummy")
	env := newFakeEnv()
	m := NewManager(target, env)

	dot, err := CreateEffect("DamageOverTime", map[string]string{"power": "50", "ratio": "0.5"})
	require.NoError(t, err)
	m.AddDebuff(&ActiveEffect{Caster: caster, Effect: dot, RemainingTurns: 2})

	m.ProcessTurnStart()
	assert.Equal(t, int32(850), target.HP(), "50 + 50% of 200 magicalDamage")
	require.Len(t, env.periodic, 1)
}

func TestProcessTurnStart_NonLethalDot(t *testing.T) {
	target := newTestChar("dummy")
	m := NewManager(target, newFakeEnv())
	target.SetHP(10)

	dot, err := CreateEffect("DamageOverTime", map[string]string{"power": "500", "canKill": "false"})
	require.NoError(t, err)
	m.AddDebuff(&ActiveEffect{Effect: dot, RemainingTurns: 3})

	m.ProcessTurnStart()
	assert.Equal(t, int32(1), target.HP())
	assert.False(t, target.IsDead())
}

func TestProcessTurnStart_HealOverTime(t *testing.T) {
	target := newTestChar("hero")
	m := NewManager(target, newFakeEnv())
	target.SetHP(500)

	hot, err := CreateEffect("HealOverTime", map[string]string{"power": "20", "percentMaxHp": "0.05"})
	require.NoError(t, err)
	m.AddBuff(&ActiveEffect{Effect: hot, RemainingTurns: 2})

	m.ProcessTurnStart()
	assert.Equal(t, int32(570), target.HP())
}

func TestClear_RemovesEverything(t *testing.T) {
	c := newTestChar("hero")
	m := NewManager(c, newFakeEnv())
	m.AddBuff(&ActiveEffect{Effect: statUp(t, "armor", "ADD", "5"), RemainingTurns: 2})
	m.AddDebuff(&ActiveEffect{Effect: &StunEffect{}, RemainingTurns: 2})
	m.AddPassive(&ActiveEffect{Effect: statUp(t, "armor", "ADD", "5"), Source: "aura"})

	assert.Equal(t, 3, m.Clear())
	assert.False(t, c.IsStunned())
	assert.Zero(t, c.Stat(model.StatArmor))
}

func TestRegistry(t *testing.T) {
	_, err := CreateEffect("NoSuchEffect", nil)
	assert.Error(t, err)

	for _, name := range []string{"StatUp", "DamageOverTime", "HealOverTime", "Stun", "Silence",
		"Taunt", "Shield", "Parry", "TargetLock", "Reflect", "Stealth"} {
		assert.True(t, IsRegistered(name), name)
		eff, err := CreateEffect(name, map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, name, eff.Name())
	}
	assert.Contains(t, Names(), "Parry")
}
