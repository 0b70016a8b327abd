package story

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const campaignYAML = `
id: ashfall
title: Ashfall
roster: [knight, ranger]
stages:
  - id: gate
    kind: battle
    title: The Gate
    position: {x: 0, y: 0}
    enemies: [goblin, goblin]
  - id: crossroads
    kind: choice
    title: Crossroads
    requires: [gate]
    position: {x: 1, y: 0}
    choices:
      - key: forest
        text: Through the forest
        setFlags: [forest]
      - key: river
        text: Along the river
        recruits: [ferryman]
  - id: camp
    kind: recruit
    title: Camp
    requires: [gate]
    position: {x: 1, y: 1}
    recruit: [cleric]
    rewards:
      flags: [rested]
  - id: grove
    kind: battle
    title: Grove
    requires: [crossroads]
    requiresFlag: forest
    hidden: true
    enemies: [wolf]
  - id: ford
    kind: battle
    title: Ford
    requires: [crossroads]
    requiresFlag: "!forest"
    enemies: [troll]
    rewards:
      recruits: [troll]
`

func loadTestCampaign(t *testing.T) *Campaign {
	t.Helper()
	c, err := ParseCampaign([]byte(campaignYAML))
	require.NoError(t, err)
	return c
}

func TestLoadCampaign(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ashfall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(campaignYAML), 0o600))

	c, err := LoadCampaign(path)
	require.NoError(t, err)
	assert.Equal(t, "Ashfall", c.Title)
	require.Len(t, c.Stages, 5)

	s, ok := c.Stage("camp")
	require.True(t, ok)
	assert.Equal(t, KindRecruit, s.Kind)
	assert.Equal(t, Position{X: 1, Y: 1}, s.Position)

	_, err = LoadCampaign(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Campaign
	}{
		{"no id", Campaign{Stages: []*Stage{{ID: "a", Kind: KindRecruit, Recruit: []string{"x"}}}}},
		{"no stages", Campaign{ID: "c"}},
		{"duplicate", Campaign{ID: "c", Stages: []*Stage{
			{ID: "a", Kind: KindRecruit, Recruit: []string{"x"}},
			{ID: "a", Kind: KindRecruit, Recruit: []string{"x"}},
		}}},
		{"unknown requirement", Campaign{ID: "c", Stages: []*Stage{
			{ID: "a", Kind: KindRecruit, Recruit: []string{"x"}, Requires: []string{"ghost"}},
		}}},
		{"battle without enemies", Campaign{ID: "c", Stages: []*Stage{{ID: "a", Kind: KindBattle}}}},
		{"duplicate choice", Campaign{ID: "c", Stages: []*Stage{
			{ID: "a", Kind: KindChoice, Choices: []Choice{{Key: "k"}, {Key: "k"}}},
		}}},
		{"unknown kind", Campaign{ID: "c", Stages: []*Stage{{ID: "a", Kind: "shop"}}}},
		{"cycle", Campaign{ID: "c", Stages: []*Stage{
			{ID: "a", Kind: KindRecruit, Recruit: []string{"x"}, Requires: []string{"c"}},
			{ID: "b", Kind: KindRecruit, Recruit: []string{"x"}, Requires: []string{"a"}},
			{ID: "c", Kind: KindRecruit, Recruit: []string{"x"}, Requires: []string{"b"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.c.Validate())
		})
	}

	assert.NoError(t, loadTestCampaign(t).Validate())
}

func TestValidate_CycleIsNamed(t *testing.T) {
	c := Campaign{ID: "c", Stages: []*Stage{
		{ID: "a", Kind: KindRecruit, Recruit: []string{"x"}, Requires: []string{"b"}},
		{ID: "b", Kind: KindRecruit, Recruit: []string{"x"}, Requires: []string{"a"}},
	}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestEngine_StatusAndAvailable(t *testing.T) {
	e := NewEngine(loadTestCampaign(t))
	p := NewProgress(e.Campaign)

	st, err := e.Status(p, "gate")
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, st)

	st, err = e.Status(p, "crossroads")
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, st)

	_, err = e.Status(p, "nowhere")
	assert.ErrorIs(t, err, ErrUnknownStage)

	require.Len(t, e.Available(p), 1)
	assert.Equal(t, "gate", e.Available(p)[0].ID)
}

func TestEngine_CampaignFlow(t *testing.T) {
	e := NewEngine(loadTestCampaign(t))
	p := NewProgress(e.Campaign)

	_, err := e.Choose(p, "crossroads", "forest")
	assert.ErrorIs(t, err, ErrStageLocked)

	_, err = e.Choose(p, "gate", "forest")
	assert.ErrorIs(t, err, ErrWrongStageKind)

	lost, err := e.CompleteBattle(p, "gate", false)
	require.NoError(t, err)
	assert.False(t, lost.Completed["gate"], "defeat keeps the stage open")

	p2, err := e.CompleteBattle(p, "gate", true)
	require.NoError(t, err)
	assert.True(t, p2.Completed["gate"])
	assert.False(t, p.Completed["gate"], "input progress is not modified")

	_, err = e.CompleteBattle(p2, "gate", true)
	assert.ErrorIs(t, err, ErrStageCompleted)

	_, err = e.Choose(p2, "crossroads", "mountain")
	assert.ErrorIs(t, err, ErrUnknownChoice)

	p3, err := e.Choose(p2, "crossroads", "river")
	require.NoError(t, err)
	assert.Equal(t, "river", p3.Choices["crossroads"])
	assert.Equal(t, []string{"knight", "ranger", "ferryman"}, p3.Roster)

	st, _ := e.Status(p3, "grove")
	assert.Equal(t, StatusLocked, st, "forest flag not set")
	st, _ = e.Status(p3, "ford")
	assert.Equal(t, StatusAvailable, st)

	p4, err := e.Recruit(p3, "camp")
	require.NoError(t, err)
	assert.Contains(t, p4.Roster, "cleric")
	assert.True(t, p4.Flags["rested"])

	p5, err := e.CompleteBattle(p4, "ford", true)
	require.NoError(t, err)
	assert.Contains(t, p5.Roster, "troll")
	assert.True(t, e.Finished(p5), "grove is hidden and never opened")
}

func TestEngine_ForestBranch(t *testing.T) {
	e := NewEngine(loadTestCampaign(t))
	p, err := e.CompleteBattle(NewProgress(e.Campaign), "gate", true)
	require.NoError(t, err)
	p, err = e.Choose(p, "crossroads", "forest")
	require.NoError(t, err)

	st, _ := e.Status(p, "grove")
	assert.Equal(t, StatusAvailable, st)
	st, _ = e.Status(p, "ford")
	assert.Equal(t, StatusLocked, st)
}

func TestMapView(t *testing.T) {
	e := NewEngine(loadTestCampaign(t))
	p := NewProgress(e.Campaign)

	nodes := e.MapView(p)
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"gate", "crossroads", "camp", "ford"}, ids, "hidden grove is not shown while locked")
	assert.Equal(t, StatusAvailable, nodes[0].Status)
	assert.Equal(t, []string{"gate"}, nodes[1].Edges)
	assert.Len(t, nodes[1].Choices, 2)
	assert.Equal(t, []string{"cleric"}, nodes[2].Recruit)
}

func TestProgress_CloneNilMaps(t *testing.T) {
	var p Progress
	c := p.Clone()
	c.Flags["x"] = true
	c.Completed["y"] = true
	c.Choices["z"] = "k"
	assert.Nil(t, p.Flags)
}
