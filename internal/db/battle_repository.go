package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/skirmish/internal/game/battle"
)

// BattleRepository stores finished battles with per-character statistics.
// Implements battle.ResultSink.
type BattleRepository struct {
	pool *pgxpool.Pool
}

func NewBattleRepository(pool *pgxpool.Pool) *BattleRepository {
	return &BattleRepository{pool: pool}
}

// SaveResult writes the result and its participants in one transaction.
// Saving the same battle twice is a no-op.
func (r *BattleRepository) SaveResult(ctx context.Context, res battle.Result) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !strings.Contains(err.Error(), "tx is closed") {
			slog.Error("rollback failed", "battle", res.BattleID, "error", err)
		}
	}()

	tag, err := tx.Exec(ctx,
		`INSERT INTO battle_results
		   (battle_id, player_id, campaign_id, stage_id, status, turns, seed, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (battle_id) DO NOTHING`,
		res.BattleID, res.PlayerID, res.CampaignID, res.StageID, string(res.Status),
		res.Turns, res.Seed, res.StartedAt, res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert battle %s: %w", res.BattleID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range res.Participants {
		batch.Queue(
			`INSERT INTO battle_participant_stats
			   (battle_id, character_id, template_id, name, team, damage_dealt, damage_taken,
			    healing_done, dodges, crits, kills, abilities_used, survived)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			res.BattleID, p.CharacterID, p.TemplateID, p.Name, p.Team, p.DamageDealt, p.DamageTaken,
			p.HealingDone, p.Dodges, p.Crits, p.Kills, p.AbilitiesUsed, p.Survived,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert participants of %s: %w", res.BattleID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("battle result saved",
		"battle", res.BattleID,
		"player", res.PlayerID,
		"status", res.Status,
		"participants", len(res.Participants))
	return nil
}

// ListByPlayer returns the latest results of a player, newest first.
func (r *BattleRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]battle.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT battle_id, player_id, campaign_id, stage_id, status, turns, seed, started_at, finished_at
		 FROM battle_results WHERE player_id = $1
		 ORDER BY finished_at DESC LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query battles of %s: %w", playerID, err)
	}
	defer rows.Close()

	var (
		results []battle.Result
		ids     []string
	)
	for rows.Next() {
		var (
			res    battle.Result
			status string
		)
		if err := rows.Scan(&res.BattleID, &res.PlayerID, &res.CampaignID, &res.StageID, &status,
			&res.Turns, &res.Seed, &res.StartedAt, &res.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		res.Status = battle.Status(status)
		results = append(results, res)
		ids = append(ids, res.BattleID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battles: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	participants, err := r.participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Participants = participants[results[i].BattleID]
	}
	return results, nil
}

func (r *BattleRepository) participants(ctx context.Context, battleIDs []string) (map[string][]battle.CharacterStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT battle_id, character_id, template_id, name, team, damage_dealt, damage_taken,
		        healing_done, dodges, crits, kills, abilities_used, survived
		 FROM battle_participant_stats WHERE battle_id = ANY($1)
		 ORDER BY battle_id, team DESC, character_id`,
		battleIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]battle.CharacterStats, len(battleIDs))
	for rows.Next() {
		var (
			battleID string
			p        battle.CharacterStats
		)
		if err := rows.Scan(&battleID, &p.CharacterID, &p.TemplateID, &p.Name, &p.Team, &p.DamageDealt,
			&p.DamageTaken, &p.HealingDone, &p.Dodges, &p.Crits, &p.Kills, &p.AbilitiesUsed, &p.Survived); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[battleID] = append(out[battleID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}
