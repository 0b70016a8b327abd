package db

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/skirmish/internal/game/story"
)

// ProgressRepository stores campaign progress, one row per player and campaign.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Load returns saved progress. found is false when the player never
// started the campaign.
func (r *ProgressRepository) Load(ctx context.Context, playerID, campaignID string) (story.Progress, bool, error) {
	var (
		completed, flags, roster []string
		choices                  map[string]string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT completed, flags, roster, choices
		 FROM campaign_progress WHERE player_id = $1 AND campaign_id = $2`,
		playerID, campaignID,
	).Scan(&completed, &flags, &roster, &choices)
	if errors.Is(err, pgx.ErrNoRows) {
		return story.Progress{}, false, nil
	}
	if err != nil {
		return story.Progress{}, false, fmt.Errorf("loading progress %s/%s: %w", playerID, campaignID, err)
	}

	p := story.Progress{
		CampaignID: campaignID,
		Completed:  toSet(completed),
		Flags:      toSet(flags),
		Roster:     roster,
		Choices:    choices,
	}
	return p.Clone(), true, nil
}

// Save upserts progress.
func (r *ProgressRepository) Save(ctx context.Context, playerID string, p story.Progress) error {
	choices := p.Choices
	if choices == nil {
		choices = map[string]string{}
	}
	roster := p.Roster
	if roster == nil {
		roster = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO campaign_progress (player_id, campaign_id, completed, flags, roster, choices, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (player_id, campaign_id) DO UPDATE SET
		   completed = EXCLUDED.completed,
		   flags = EXCLUDED.flags,
		   roster = EXCLUDED.roster,
		   choices = EXCLUDED.choices,
		   updated_at = now()`,
		playerID, p.CampaignID, fromSet(p.Completed), fromSet(p.Flags), roster, choices,
	)
	if err != nil {
		return fmt.Errorf("saving progress %s/%s: %w", playerID, p.CampaignID, err)
	}
	return nil
}

// Delete drops saved progress (campaign restart).
func (r *ProgressRepository) Delete(ctx context.Context, playerID, campaignID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM campaign_progress WHERE player_id = $1 AND campaign_id = $2`,
		playerID, campaignID,
	)
	if err != nil {
		return fmt.Errorf("deleting progress %s/%s: %w", playerID, campaignID, err)
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// fromSet keeps only true keys, sorted for stable rows.
func fromSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if m[k] {
			out = append(out, k)
		}
	}
	return out
}
