package battle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/model"
)

func TestRunAITurn_HealsWoundedAlly(t *testing.T) {
	ctx := context.Background()
	hero := newChar("hero", model.TeamPlayer, model.Stats{})
	knight := newChar("knight", model.TeamPlayer, model.Stats{})
	shaman := newChar("shaman", model.TeamEnemy, model.Stats{}, "strike", "fireball", "mend")
	brute := newChar("brute", model.TeamEnemy, model.Stats{}, "strike")
	b := newBattle(t, []*model.Character{hero, knight}, []*model.Character{shaman, brute}, Options{})
	knight.SetHP(500)
	brute.SetHP(300)

	require.NoError(t, b.EndTurn(ctx))
	require.NoError(t, b.RunAITurn(ctx))

	assert.Equal(t, int32(600), brute.HP(), "shaman heals the ally below 40%")
	assert.Equal(t, int32(80), shaman.Mana())
	assert.Equal(t, int32(400), knight.HP(), "brute hits the lowest HP enemy")
	assert.Equal(t, int32(1000), hero.HP())

	turn, team := b.Turn()
	assert.Equal(t, 2, turn)
	assert.Equal(t, model.TeamPlayer, team)
}

func TestRunAITurn_PrefersCostlyDamage(t *testing.T) {
	ctx := context.Background()
	hero := newChar("hero", model.TeamPlayer, model.Stats{})
	knight := newChar("knight", model.TeamPlayer, model.Stats{})
	shaman := newChar("shaman", model.TeamEnemy, model.Stats{}, "strike", "fireball", "mend")
	b := newBattle(t, []*model.Character{hero, knight}, []*model.Character{shaman}, Options{})
	knight.SetHP(500)

	require.NoError(t, b.EndTurn(ctx))
	require.NoError(t, b.RunAITurn(ctx))

	assert.Equal(t, int32(300), knight.HP(), "fireball over strike")
	assert.Equal(t, int32(70), shaman.Mana())
}

func TestRunAITurn_StopsOnVictory(t *testing.T) {
	ctx := context.Background()
	hero := newChar("hero", model.TeamPlayer, model.Stats{}, "strike")
	orc := newChar("orc", model.TeamEnemy, model.Stats{})
	b := newBattle(t, []*model.Character{hero}, []*model.Character{orc}, Options{})
	orc.SetHP(50)

	require.NoError(t, b.RunAITurn(ctx))
	assert.Equal(t, StatusVictory, b.Status())
	assert.ErrorIs(t, b.RunAITurn(ctx), ErrBattleOver)
}

type recordingSink struct {
	results []Result
	fail    int
}

func (s *recordingSink) SaveResult(_ context.Context, res Result) error {
	if s.fail > 0 {
		s.fail--
		return errors.New("db down")
	}
	s.results = append(s.results, res)
	return nil
}

func TestManager_CreateGetRemove(t *testing.T) {
	m := NewManager(ManagerConfig{}, newContent())

	b, err := m.Create(
		[]*model.Character{newChar("hero", model.TeamPlayer, model.Stats{})},
		[]*model.Character{newChar("orc", model.TeamEnemy, model.Stats{})},
		Options{Roller: dice.NewFixed()},
	)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID())
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(b.ID())
	require.NoError(t, err)
	assert.Same(t, b, got)

	assert.True(t, m.Remove(b.ID()))
	assert.False(t, m.Remove(b.ID()))
	_, err = m.Get(b.ID())
	assert.ErrorIs(t, err, ErrBattleNotFound)
	assert.Zero(t, m.Count())

	_, err = m.Create(nil, nil, Options{})
	assert.Error(t, err)
}

func TestManager_FinishHandsOffOnce(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{fail: 1}
	m := NewManager(ManagerConfig{}, newContent(), sink)

	orc := newChar("orc", model.TeamEnemy, model.Stats{})
	b, err := m.Create(
		[]*model.Character{newChar("hero", model.TeamPlayer, model.Stats{}, "fireball")},
		[]*model.Character{orc},
		Options{Roller: dice.NewFixed(), PlayerID: "p1"},
	)
	require.NoError(t, err)

	require.NoError(t, m.Finish(ctx, b), "active battles are skipped")
	assert.Empty(t, sink.results)

	orc.SetHP(10)
	_, err = b.UseAbility(ctx, "hero", "fireball", "")
	require.NoError(t, err)

	assert.Error(t, m.Finish(ctx, b))
	require.NoError(t, m.Finish(ctx, b), "retried after failure")
	require.NoError(t, m.Finish(ctx, b))
	require.Len(t, sink.results, 1)
	assert.Equal(t, StatusVictory, sink.results[0].Status)
	assert.Equal(t, "p1", sink.results[0].PlayerID)
}

func TestManager_Sweep(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	m := NewManager(ManagerConfig{IdleTimeout: 10 * time.Minute, Retention: time.Minute}, newContent(), sink)
	m.now = func() time.Time { return t0 }

	idle, err := m.Create(
		[]*model.Character{newChar("a", model.TeamPlayer, model.Stats{})},
		[]*model.Character{newChar("b", model.TeamEnemy, model.Stats{})},
		Options{Roller: dice.NewFixed()},
	)
	require.NoError(t, err)

	orc := newChar("orc", model.TeamEnemy, model.Stats{})
	done, err := m.Create(
		[]*model.Character{newChar("hero", model.TeamPlayer, model.Stats{}, "strike")},
		[]*model.Character{orc},
		Options{Roller: dice.NewFixed()},
	)
	require.NoError(t, err)
	orc.SetHP(1)
	_, err = done.UseAbility(ctx, "hero", "strike", "")
	require.NoError(t, err)

	assert.Zero(t, m.Sweep(ctx, t0.Add(30*time.Second)))
	assert.Len(t, sink.results, 1, "finished battle handed off on sweep")

	assert.Equal(t, 1, m.Sweep(ctx, t0.Add(2*time.Minute)))
	_, err = m.Get(done.ID())
	assert.ErrorIs(t, err, ErrBattleNotFound)

	assert.Equal(t, 1, m.Sweep(ctx, t0.Add(11*time.Minute)))
	_, err = m.Get(idle.ID())
	assert.ErrorIs(t, err, ErrBattleNotFound)
	assert.Len(t, sink.results, 1)
}

func TestManager_StartStopsOnCancel(t *testing.T) {
	m := NewManager(ManagerConfig{SweepInterval: time.Millisecond}, newContent())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- m.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}
