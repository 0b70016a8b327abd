package ability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/model"
)

const ribbonScript = `
local power = stat(caster.id, "magicalDamage")
for i, t in ipairs(targets) do
  local dealt = damage(t.id, params.base + params.ratio * power, "magical")
  log(t.name .. " took " .. dealt)
end
apply(caster.id, "StatUp", 2, { stat = "critChance", value = 0.25 })
`

func TestScript_DamageWithStatFallback(t *testing.T) {
	h := newTestHost(dice.NewFixed().WithInts(0))
	// magicalDamage 0 falls back to 300 inside scripts
	mage := h.add("mage", model.TeamPlayer, model.Stats{}, "ribbon")
	orc := h.add("orc", model.TeamEnemy, model.Stats{})

	def := &Definition{
		ID: "ribbon", Name: "Ribbon", Target: TargetRandomEnemies, Count: 1,
		Func: "script", Script: ribbonScript,
		Params: model.Params{"base": 100, "ratio": 0.5},
	}
	require.NoError(t, def.Validate())

	_, err := Cast(h, mage, def, "")
	require.NoError(t, err)
	assert.Equal(t, int32(750), orc.HP(), "100 + 50% of fallback 300")
	assert.Contains(t, h.lines, "orc took 250")
	assert.InDelta(t, 0.25, mage.Stat(model.StatCritChance), 1e-9)
}

func TestScript_HealAndTables(t *testing.T) {
	h := newTestHost(dice.NewFixed())
	cleric := h.add("cleric", model.TeamPlayer, model.Stats{}, "prayer")
	hero := h.add("hero", model.TeamPlayer, model.Stats{})
	hero.SetHP(100)

	def := &Definition{
		ID: "prayer", Name: "Prayer", Target: TargetAllAllies, Func: "script",
		Script: `
for _, t in ipairs(targets) do
  if t.hp < t.maxHp then heal(t.id, 50) end
end
log("team " .. caster.team)
`,
	}
	_, err := Cast(h, cleric, def, "")
	require.NoError(t, err)
	assert.Equal(t, int32(150), hero.HP())
	assert.Contains(t, h.lines, "team PLAYER")
}

func TestScript_Errors(t *testing.T) {
	h := newTestHost(dice.NewFixed())
	mage := h.add("mage", model.TeamPlayer, model.Stats{}, "broken", "bad_target")

	_, err := Cast(h, mage, &Definition{ID: "broken", Target: TargetSelf, Func: "script", Script: "this is not lua"}, "")
	assert.ErrorIs(t, err, ErrScript)

	_, err = Cast(h, mage, &Definition{ID: "bad_target", Target: TargetSelf, Func: "script", Script: `damage("ghost", 10)`}, "")
	assert.ErrorIs(t, err, ErrScript)
}

func TestScript_RuntimeErrorKeepsCast(t *testing.T) {
	h := newTestHost(dice.NewFixed())
	mage := h.add("mage", model.TeamPlayer, model.Stats{}, "boom")
	orc := h.add("orc", model.TeamEnemy, model.Stats{})

	def := &Definition{
		ID: "boom", Name: "Boom", Target: TargetEnemy, Func: "script", ManaCost: 10,
		Script: "damage(targets[1].id, 100)\nerror(\"boom\")",
	}
	out, err := Cast(h, mage, def, "")
	assert.ErrorIs(t, err, ErrScript)
	require.NotNil(t, out)
	assert.True(t, out.Failed)
	assert.Equal(t, []string{"orc"}, out.Targets)
	assert.Equal(t, int32(900), orc.HP())
	assert.Equal(t, int32(90), mage.Mana())
}

func TestScript_NoFileAccess(t *testing.T) {
	h := newTestHost(dice.NewFixed())
	mage := h.add("mage", model.TeamPlayer, model.Stats{}, "peek")

	def := &Definition{
		ID: "peek", Name: "Peek", Target: TargetSelf, Func: "script",
		Script: `
for _, name in ipairs({"io", "os", "dofile", "loadfile"}) do
  if _G[name] ~= nil then error(name .. " is reachable") end
end
`,
	}
	_, err := Cast(h, mage, def, "")
	assert.NoError(t, err)
}
