package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/skirmish/internal/data"
	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/game/story"
)

var ErrUnknownCampaign = errors.New("unknown campaign")

// ProgressStore persists campaign progress. db.ProgressRepository implements it.
type ProgressStore interface {
	Load(ctx context.Context, playerID, campaignID string) (story.Progress, bool, error)
	Save(ctx context.Context, playerID string, p story.Progress) error
}

// Campaigns serializes progress updates and applies finished battles.
// Implements battle.ResultSink.
type Campaigns struct {
	catalog *data.Catalog
	store   ProgressStore
	mu      sync.Mutex
}

func NewCampaigns(catalog *data.Catalog, store ProgressStore) *Campaigns {
	return &Campaigns{catalog: catalog, store: store}
}

// Progress returns the campaign and the player's progress in it.
// A player who never played gets a fresh progress (not saved).
func (c *Campaigns) Progress(ctx context.Context, playerID, campaignID string) (*story.Campaign, story.Progress, error) {
	camp, ok := c.catalog.Campaign(campaignID)
	if !ok {
		return nil, story.Progress{}, fmt.Errorf("%w: %s", ErrUnknownCampaign, campaignID)
	}
	p, found, err := c.store.Load(ctx, playerID, campaignID)
	if err != nil {
		return nil, story.Progress{}, err
	}
	if !found {
		p = story.NewProgress(camp)
	}
	return camp, p, nil
}

// Update applies fn to the stored progress and saves the result.
func (c *Campaigns) Update(ctx context.Context, playerID, campaignID string,
	fn func(e *story.Engine, p story.Progress) (story.Progress, error)) (story.Progress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	camp, p, err := c.Progress(ctx, playerID, campaignID)
	if err != nil {
		return story.Progress{}, err
	}
	next, err := fn(story.NewEngine(camp), p)
	if err != nil {
		return p, err
	}
	if err := c.store.Save(ctx, playerID, next); err != nil {
		return p, err
	}
	return next, nil
}

// SaveResult records a finished campaign battle. Battles outside a campaign
// are ignored. Replays of the same result are harmless.
func (c *Campaigns) SaveResult(ctx context.Context, res battle.Result) error {
	if res.CampaignID == "" || res.StageID == "" {
		return nil
	}
	victory := res.Status == battle.StatusVictory
	_, err := c.Update(ctx, res.PlayerID, res.CampaignID, func(e *story.Engine, p story.Progress) (story.Progress, error) {
		return e.CompleteBattle(p, res.StageID, victory)
	})
	switch {
	case errors.Is(err, story.ErrStageCompleted), errors.Is(err, story.ErrStageLocked):
		slog.Warn("battle result does not change progress",
			"battleID", res.BattleID, "player", res.PlayerID, "stage", res.StageID, "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("applying battle %s to progress: %w", res.BattleID, err)
	}
	slog.Info("campaign progress updated",
		"player", res.PlayerID, "campaign", res.CampaignID, "stage", res.StageID, "victory", victory)
	return nil
}

// MemoryProgress keeps progress in memory. Used by tests and by skirmishd
// started without a database.
type MemoryProgress struct {
	mu   sync.RWMutex
	data map[[2]string]story.Progress
}

func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{data: map[[2]string]story.Progress{}}
}

func (m *MemoryProgress) Load(_ context.Context, playerID, campaignID string) (story.Progress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data[[2]string{playerID, campaignID}]
	if !ok {
		return story.Progress{}, false, nil
	}
	return p.Clone(), true, nil
}

func (m *MemoryProgress) Save(_ context.Context, playerID string, p story.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[[2]string{playerID, p.CampaignID}] = p.Clone()
	return nil
}
