package data

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skirmish/internal/model"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"abilities/a.yaml": {Data: []byte(`
- id: strike
  name: Strike
  target: enemy
  func: damage
  params: {base: 100}
- id: mend
  name: Mend
  target: ally
  func: heal
  params: {base: 50}
`)},
		"passives/p.yaml": {Data: []byte(`
- id: focus
  func: mana_on_crit
`)},
		"talents.yaml": {Data: []byte(`
- id: big_mend
  ability: mend
  scale: {base: 2}
`)},
		"characters/c.yaml": {Data: []byte(`
- id: hero
  name: Hero
  level: 2
  stats: {maxHp: 800, maxMana: 60, critChance: 0.1}
  abilities: [strike, mend]
  passives: [focus]
  talents: [big_mend]
- id: orc
  name: Orc
  stats: {maxHp: 500}
  abilities: [strike]
`)},
		"campaigns/c.yaml": {Data: []byte(`
id: tiny
title: Tiny
roster: [hero]
stages:
  - id: one
    kind: battle
    enemies: [orc]
`)},
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(context.Background(), testFS())
	require.NoError(t, err)

	def, ok := c.Ability("strike")
	require.True(t, ok)
	assert.Equal(t, 100.0, def.Params.Get("base", 0))

	_, ok = c.Passive("focus")
	assert.True(t, ok)
	tl, ok := c.Talent("big_mend")
	require.True(t, ok)
	assert.Equal(t, 2.0, tl.Scale["base"])

	assert.Equal(t, []string{"tiny"}, c.CampaignIDs())
	assert.Equal(t, []string{"hero", "orc"}, c.CharacterIDs())
}

func TestNewCharacter(t *testing.T) {
	c, err := Load(context.Background(), testFS())
	require.NoError(t, err)

	hero, err := c.NewCharacter("hero", "p1-hero", model.TeamPlayer)
	require.NoError(t, err)
	assert.Equal(t, "p1-hero", hero.ID())
	assert.Equal(t, "hero", hero.TemplateID())
	assert.Equal(t, int32(2), hero.Level())
	assert.Equal(t, int32(800), hero.MaxHP())
	assert.Equal(t, []string{"strike", "mend"}, hero.Abilities())
	assert.Equal(t, []string{"focus"}, hero.Passives())
	assert.Equal(t, []string{"big_mend"}, hero.Talents())

	orc, err := c.NewCharacter("orc", "e1-orc", model.TeamEnemy)
	require.NoError(t, err)
	assert.Equal(t, int32(1), orc.Level(), "level defaults to 1")

	_, err = c.NewCharacter("dragon", "x", model.TeamEnemy)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	team, err := c.Team([]string{"orc", "orc"}, model.TeamEnemy, "e")
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "e1-orc", team[0].ID())
	assert.Equal(t, "e2-orc", team[1].ID())
}

func TestLoad_BrokenReferences(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"unknown ability", "characters/x.yaml", "- {id: x, stats: {maxHp: 10}, abilities: [nope]}"},
		{"unknown passive", "characters/x.yaml", "- {id: x, stats: {maxHp: 10}, passives: [nope]}"},
		{"zero hp", "characters/x.yaml", "- {id: x, stats: {maxHp: 0}}"},
		{"duplicate character", "characters/x.yaml", "- {id: hero, stats: {maxHp: 10}}"},
		{"bad ability", "abilities/x.yaml", "- {id: x, target: enemy, func: teleport}"},
		{"talent without target", "talents.yaml", "- {id: t}"},
		{"campaign enemy", "campaigns/x.yaml", "id: x\nstages:\n  - {id: s, kind: battle, enemies: [dragon]}"},
		{"bad yaml", "abilities/x.yaml", "- id: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := testFS()
			fsys[tt.file] = &fstest.MapFile{Data: []byte(tt.data)}
			_, err := Load(context.Background(), fsys)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ShippedContent(t *testing.T) {
	c, err := LoadDir(context.Background(), "../../content")
	require.NoError(t, err)

	ribbon, ok := c.Ability("ribbon_wave_rush")
	require.True(t, ok)
	assert.Equal(t, 365.0, ribbon.Params.Get("base", 0))
	assert.Equal(t, 0.85, ribbon.Params.Get("ratio", 0))
	assert.Equal(t, 2, ribbon.Count)

	ashfall, ok := c.Campaign("ashfall")
	require.True(t, ok)
	for _, id := range ashfall.Roster {
		_, ok := c.Character(id)
		assert.True(t, ok, id)
	}
}
