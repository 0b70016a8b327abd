package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skirmish/internal/data"
	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/game/story"
)

func testCatalog(t *testing.T) *data.Catalog {
	t.Helper()
	c, err := data.Load(context.Background(), fstest.MapFS{
		"abilities/a.yaml": {Data: []byte(`
- id: smash
  name: Smash
  target: enemy
  func: damage
  params: {base: 10000}
- id: poke
  name: Poke
  target: enemy
  func: damage
  params: {base: 10}
`)},
		"characters/c.yaml": {Data: []byte(`
- id: hero
  name: Hero
  stats: {maxHp: 800}
  abilities: [smash, poke]
- id: mage
  name: Mage
  stats: {maxHp: 500}
  abilities: [poke]
- id: orc
  name: Orc
  stats: {maxHp: 500}
  abilities: [poke]
`)},
		"campaigns/tiny.yaml": {Data: []byte(`
id: tiny
title: Tiny
roster: [hero]
stages:
  - id: gate
    kind: battle
    title: Gate
    enemies: [orc]
  - id: fork
    kind: choice
    requires: [gate]
    choices:
      - {key: left, text: Left, setFlags: [left]}
      - {key: right, text: Right}
  - id: camp
    kind: recruit
    requires: [gate]
    recruit: [mage]
  - id: keep
    kind: battle
    requires: [fork]
    enemies: [orc, orc]
`)},
	})
	require.NoError(t, err)
	return c
}

type fakeHistory struct {
	results []battle.Result
	err     error
}

func (f *fakeHistory) ListByPlayer(_ context.Context, playerID string, _ int) ([]battle.Result, error) {
	var out []battle.Result
	for _, r := range f.results {
		if r.PlayerID == playerID {
			out = append(out, r)
		}
	}
	return out, f.err
}

type env struct {
	t        *testing.T
	handler  http.Handler
	manager  *battle.Manager
	progress *MemoryProgress
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	catalog := testCatalog(t)
	progress := NewMemoryProgress()
	campaigns := NewCampaigns(catalog, progress)
	manager := battle.NewManager(battle.ManagerConfig{}, catalog, campaigns)
	srv := NewServer(catalog, manager, campaigns, opts...)
	return &env{t: t, handler: srv.Handler(), manager: manager, progress: progress}
}

func (e *env) do(method, path, player string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if player != "" {
		req.Header.Set(playerHeader, player)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func statusByID(nodes []story.MapNode) map[string]story.Status {
	out := map[string]story.Status{}
	for _, n := range nodes {
		out[n.ID] = n.Status
	}
	return out
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

func TestHealthz_StorageDown(t *testing.T) {
	e := newEnv(t, WithPinger(failingPinger{}))
	rec := e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPlayerHeaderRequired(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/campaigns/tiny/map", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCampaignList(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/campaigns", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]campaignInfo](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "tiny", list[0].ID)
}

func TestMap_FreshPlayer(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/campaigns/tiny/map", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[mapResponse](t, rec)
	assert.Equal(t, []string{"hero"}, m.Roster)
	assert.Equal(t, map[string]story.Status{
		"gate": story.StatusAvailable,
		"fork": story.StatusLocked,
		"camp": story.StatusLocked,
		"keep": story.StatusLocked,
	}, statusByID(m.Nodes))
	assert.False(t, m.Finished)

	rec = e.do(http.MethodGet, "/api/campaigns/nope/map", "p1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStart_Rejections(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		path string
		body any
		code int
	}{
		{"locked stage", "/api/campaigns/tiny/stages/keep/start", nil, http.StatusConflict},
		{"choice stage", "/api/campaigns/tiny/stages/fork/start", nil, http.StatusBadRequest},
		{"unknown stage", "/api/campaigns/tiny/stages/nope/start", nil, http.StatusNotFound},
		{"unknown campaign", "/api/campaigns/nope/stages/gate/start", nil, http.StatusNotFound},
		{"party outside roster", "/api/campaigns/tiny/stages/gate/start", startRequest{Party: []string{"mage"}}, http.StatusBadRequest},
		{"bad json", "/api/campaigns/tiny/stages/gate/start", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, tt.path, "p1", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, e.manager.Count())
}

func startGate(t *testing.T, e *env, player string) battle.View {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/campaigns/tiny/stages/gate/start", player, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decode[battle.View](t, rec)
	require.Len(t, v.Players, 1)
	require.Len(t, v.Enemies, 1)
	assert.Equal(t, "p1-hero", v.Players[0].ID)
	assert.Equal(t, "e1-orc", v.Enemies[0].ID)
	assert.Equal(t, "PLAYER", v.ActiveTeam)
	return v
}

func TestBattleVictoryCompletesStage(t *testing.T) {
	e := newEnv(t)
	v := startGate(t, e, "p1")

	rec := e.do(http.MethodPost, "/api/battles/"+v.ID+"/abilities", "p1",
		abilityRequest{Actor: "p1-hero", Ability: "smash", Target: "e1-orc"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[abilityResponse](t, rec)
	assert.Equal(t, battle.StatusVictory, res.Battle.Status)
	assert.Equal(t, []string{"e1-orc"}, res.Outcome.Targets)

	m := decode[mapResponse](t, e.do(http.MethodGet, "/api/campaigns/tiny/map", "p1", nil))
	st := statusByID(m.Nodes)
	assert.Equal(t, story.StatusCompleted, st["gate"])
	assert.Equal(t, story.StatusAvailable, st["fork"])
	assert.Equal(t, story.StatusAvailable, st["camp"])

	rec = e.do(http.MethodPost, "/api/battles/"+v.ID+"/end-turn", "p1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "battle is over")

	rec = e.do(http.MethodPost, "/api/campaigns/tiny/stages/gate/start", "p1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "stage already completed")
}

func TestBattleIsPrivate(t *testing.T) {
	e := newEnv(t)
	v := startGate(t, e, "p1")

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/battles/"+v.ID, "p1", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/battles/"+v.ID, "p2", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/battles/missing", "p1", nil).Code)
}

func TestEndTurnRunsEnemyTurn(t *testing.T) {
	e := newEnv(t)
	v := startGate(t, e, "p1")
	path := "/api/battles/" + v.ID

	rec := e.do(http.MethodPost, path+"/abilities", "p1",
		abilityRequest{Actor: "p1-hero", Ability: "fireball", Target: "e1-orc"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPost, path+"/abilities", "p1",
		abilityRequest{Actor: "p1-hero", Ability: "poke", Target: "e1-orc"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, path+"/abilities", "p1",
		abilityRequest{Actor: "p1-hero", Ability: "poke", Target: "e1-orc"})
	assert.Equal(t, http.StatusConflict, rec.Code, "one action per turn")

	rec = e.do(http.MethodPost, path+"/abilities", "p1", abilityRequest{Actor: "p1-hero"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, path+"/end-turn", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	after := decode[battle.View](t, rec)
	assert.Equal(t, battle.StatusActive, after.Status)
	assert.Equal(t, 2, after.Turn)
	assert.Equal(t, "PLAYER", after.ActiveTeam)
	assert.Equal(t, int32(490), after.Enemies[0].HP)
	assert.Equal(t, int32(790), after.Players[0].HP, "orc poked back")
}

func TestChooseAndRecruit(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/api/campaigns/tiny/stages/fork/choose", "p1", chooseRequest{Key: "left"})
	assert.Equal(t, http.StatusConflict, rec.Code, "fork is locked before the gate")

	v := startGate(t, e, "p1")
	rec = e.do(http.MethodPost, "/api/battles/"+v.ID+"/abilities", "p1",
		abilityRequest{Actor: "p1-hero", Ability: "smash", Target: "e1-orc"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/api/campaigns/tiny/stages/fork/choose", "p1", chooseRequest{Key: "up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(http.MethodPost, "/api/campaigns/tiny/stages/fork/choose", "p1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "key is required")

	rec = e.do(http.MethodPost, "/api/campaigns/tiny/stages/fork/choose", "p1", chooseRequest{Key: "left"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[mapResponse](t, rec)
	assert.Equal(t, []string{"left"}, m.Flags)
	assert.Equal(t, story.StatusAvailable, statusByID(m.Nodes)["keep"])

	rec = e.do(http.MethodPost, "/api/campaigns/tiny/stages/fork/choose", "p1", chooseRequest{Key: "right"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodPost, "/api/campaigns/tiny/stages/camp/recruit", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m = decode[mapResponse](t, rec)
	assert.Equal(t, []string{"hero", "mage"}, m.Roster)

	p, found, err := e.progress.Load(context.Background(), "p1", "tiny")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "left", p.Choices["fork"])

	rec = e.do(http.MethodPost, "/api/campaigns/tiny/stages/keep/start", "p1", startRequest{Party: []string{"mage"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	kv := decode[battle.View](t, rec)
	require.Len(t, kv.Players, 1)
	assert.Equal(t, "p1-mage", kv.Players[0].ID)
	assert.Len(t, kv.Enemies, 2)
}

func TestSheet(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/campaigns/tiny/sheet.pdf", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusNotImplemented, e.do(http.MethodGet, "/api/battles", "p1", nil).Code)

	h := &fakeHistory{results: []battle.Result{
		{BattleID: "b1", PlayerID: "p1", Status: battle.StatusVictory},
		{BattleID: "b2", PlayerID: "p2", Status: battle.StatusDefeat},
	}}
	e = newEnv(t, WithHistory(h))
	rec := e.do(http.MethodGet, "/api/battles?limit=5", "p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]battle.Result](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "b1", list[0].BattleID)

	rec = e.do(http.MethodGet, "/api/battles", "p3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	h.err = errors.New("boom")
	rec = e.do(http.MethodGet, "/api/battles", "p1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestCampaigns_SaveResultIgnoresReplays(t *testing.T) {
	catalog := testCatalog(t)
	c := NewCampaigns(catalog, NewMemoryProgress())
	ctx := context.Background()
	res := battle.Result{BattleID: "b", PlayerID: "p1", CampaignID: "tiny", StageID: "gate", Status: battle.StatusVictory}

	require.NoError(t, c.SaveResult(ctx, res))
	require.NoError(t, c.SaveResult(ctx, res), "replay of a completed stage")
	require.NoError(t, c.SaveResult(ctx, battle.Result{BattleID: "free", PlayerID: "p1"}), "battles outside campaigns")

	_, p, err := c.Progress(ctx, "p1", "tiny")
	require.NoError(t, err)
	assert.True(t, p.Completed["gate"])

	defeat := res
	defeat.PlayerID = "p2"
	defeat.Status = battle.StatusDefeat
	require.NoError(t, c.SaveResult(ctx, defeat))
	_, p, err = c.Progress(ctx, "p2", "tiny")
	require.NoError(t, err)
	assert.False(t, p.Completed["gate"])
}
