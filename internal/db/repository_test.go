package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skirmish/internal/db"
	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/game/story"
	"github.com/udisondev/skirmish/internal/testutil"
)

func TestProgressRepository(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := db.NewProgressRepository(pool)
	ctx := context.Background()

	_, found, err := repo.Load(ctx, "p1", "ashfall")
	require.NoError(t, err)
	assert.False(t, found)

	p := story.Progress{
		CampaignID: "ashfall",
		Completed:  map[string]bool{"gate": true, "camp": true},
		Flags:      map[string]bool{"forest": true, "unused": false},
		Roster:     []string{"knight", "cleric"},
		Choices:    map[string]string{"crossroads": "forest"},
	}
	require.NoError(t, repo.Save(ctx, "p1", p))

	got, found, err := repo.Load(ctx, "p1", "ashfall")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]bool{"gate": true, "camp": true}, got.Completed)
	assert.Equal(t, map[string]bool{"forest": true}, got.Flags, "false flags are not stored")
	assert.Equal(t, []string{"knight", "cleric"}, got.Roster)
	assert.Equal(t, "forest", got.Choices["crossroads"])

	p.Roster = append(p.Roster, "rogue")
	require.NoError(t, repo.Save(ctx, "p1", p))
	got, _, err = repo.Load(ctx, "p1", "ashfall")
	require.NoError(t, err)
	assert.Equal(t, []string{"knight", "cleric", "rogue"}, got.Roster)

	_, found, err = repo.Load(ctx, "p2", "ashfall")
	require.NoError(t, err)
	assert.False(t, found, "progress is per player")

	require.NoError(t, repo.Delete(ctx, "p1", "ashfall"))
	_, found, err = repo.Load(ctx, "p1", "ashfall")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBattleRepository(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := db.NewBattleRepository(pool)
	ctx := context.Background()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	older := battle.Result{
		BattleID:   "b-old",
		PlayerID:   "p1",
		CampaignID: "ashfall",
		StageID:    "gate",
		Status:     battle.StatusDefeat,
		Turns:      4,
		Seed:       "skirmish",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
	}
	newer := battle.Result{
		BattleID:   "b-new",
		PlayerID:   "p1",
		CampaignID: "ashfall",
		StageID:    "gate",
		Status:     battle.StatusVictory,
		Turns:      7,
		Seed:       "skirmish",
		StartedAt:  start.Add(time.Hour),
		FinishedAt: start.Add(time.Hour + 2*time.Minute),
		Participants: []battle.CharacterStats{
			{CharacterID: "p1-knight", TemplateID: "knight", Name: "Knight", Team: "PLAYER", DamageDealt: 1200, Kills: 2, AbilitiesUsed: 5, Survived: true},
			{CharacterID: "e1-goblin", TemplateID: "goblin", Name: "Goblin", Team: "ENEMY", DamageTaken: 700, Dodges: 1},
		},
	}

	require.NoError(t, repo.SaveResult(ctx, older))
	require.NoError(t, repo.SaveResult(ctx, newer))
	require.NoError(t, repo.SaveResult(ctx, newer), "saving twice is a no-op")

	list, err := repo.ListByPlayer(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b-new", list[0].BattleID)
	assert.Equal(t, battle.StatusVictory, list[0].Status)
	assert.Equal(t, 7, list[0].Turns)
	assert.True(t, newer.FinishedAt.Equal(list[0].FinishedAt))
	require.Len(t, list[0].Participants, 2)
	assert.Equal(t, "p1-knight", list[0].Participants[0].CharacterID)
	assert.Equal(t, int64(1200), list[0].Participants[0].DamageDealt)
	assert.True(t, list[0].Participants[0].Survived)
	assert.Empty(t, list[1].Participants)

	list, err = repo.ListByPlayer(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	dsn := pool.Config().ConnString()

	// testutil already applied everything
	require.NoError(t, db.RunMigrations(context.Background(), dsn))

	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('campaign_progress', 'battle_results', 'battle_participant_stats')`,
	).Scan(&n))
	assert.Equal(t, 3, n)
}
