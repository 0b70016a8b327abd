package battle

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/skirmish/internal/model"
)

// Result is a finished battle as handed to ResultSinks.
type Result struct {
	BattleID     string           `json:"battleId"`
	PlayerID     string           `json:"playerId"`
	CampaignID   string           `json:"campaignId,omitempty"`
	StageID      string           `json:"stageId,omitempty"`
	Status       Status           `json:"status"`
	Turns        int              `json:"turns"`
	Seed         string           `json:"seed"` // hex dice seed, replays the battle
	StartedAt    time.Time        `json:"startedAt"`
	FinishedAt   time.Time        `json:"finishedAt"`
	Participants []CharacterStats `json:"participants"`
}

// ResultSink receives finished battles (persistence, campaign progress).
type ResultSink interface {
	SaveResult(ctx context.Context, res Result) error
}

// ResultSinkFunc adapts a function to ResultSink.
type ResultSinkFunc func(ctx context.Context, res Result) error

func (f ResultSinkFunc) SaveResult(ctx context.Context, res Result) error { return f(ctx, res) }

// Result returns the battle result. ok is false while the battle is active.
func (b *Battle) Result() (Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.status.Finished() {
		return Result{}, false
	}
	return Result{
		BattleID:     b.id,
		PlayerID:     b.opts.PlayerID,
		CampaignID:   b.opts.CampaignID,
		StageID:      b.opts.StageID,
		Status:       b.status,
		Turns:        b.turn,
		Seed:         hex.EncodeToString(b.seed[:]),
		StartedAt:    b.startedAt,
		FinishedAt:   b.finishedAt,
		Participants: b.stats.All(),
	}, true
}

func (b *Battle) isHandedOff() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handedOff
}

func (b *Battle) markHandedOff() {
	b.mu.Lock()
	b.handedOff = true
	b.mu.Unlock()
}

// ManagerConfig tunes the battle registry.
type ManagerConfig struct {
	IdleTimeout   time.Duration // active battles untouched this long are dropped
	Retention     time.Duration // finished battles stay readable this long
	SweepInterval time.Duration
	Salt          string
	MaxTurns      int
}

func (c *ManagerConfig) withDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Manager is a concurrent registry of live battles.
type Manager struct {
	cfg     ManagerConfig
	content Content
	sinks   []ResultSink
	now     func() time.Time

	battles sync.Map // battleID -> *Battle
	count   atomic.Int32
}

// NewManager creates a battle registry. Sinks are called in order for each
// finished battle.
func NewManager(cfg ManagerConfig, content Content, sinks ...ResultSink) *Manager {
	cfg.withDefaults()
	return &Manager{cfg: cfg, content: content, sinks: sinks, now: time.Now}
}

// Create starts a battle with a fresh id.
func (m *Manager) Create(players, enemies []*model.Character, opts Options) (*Battle, error) {
	if opts.Salt == "" {
		opts.Salt = m.cfg.Salt
	}
	if opts.MaxTurns == 0 {
		opts.MaxTurns = m.cfg.MaxTurns
	}
	if opts.Now == nil {
		opts.Now = m.now
	}
	b, err := New(uuid.NewString(), players, enemies, m.content, opts)
	if err != nil {
		return nil, fmt.Errorf("creating battle: %w", err)
	}
	m.battles.Store(b.ID(), b)
	m.count.Add(1)

	slog.Info("battle registered", "battleID", b.ID(), "playerID", opts.PlayerID, "stage", opts.StageID)
	return b, nil
}

// Get returns a registered battle.
func (m *Manager) Get(id string) (*Battle, error) {
	v, ok := m.battles.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBattleNotFound, id)
	}
	return v.(*Battle), nil
}

// Remove drops a battle from the registry.
func (m *Manager) Remove(id string) bool {
	if _, ok := m.battles.LoadAndDelete(id); !ok {
		return false
	}
	m.count.Add(-1)
	slog.Debug("battle removed", "battleID", id)
	return true
}

// Count returns the number of registered battles.
func (m *Manager) Count() int { return int(m.count.Load()) }

// Finish hands a finished battle to the sinks once. It is a no-op for
// active battles and for battles already handed off. On error the
// hand-off is retried by the next Sweep.
func (m *Manager) Finish(ctx context.Context, b *Battle) error {
	b.handoff.Lock()
	defer b.handoff.Unlock()

	if b.isHandedOff() {
		return nil
	}
	res, ok := b.Result()
	if !ok {
		return nil
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.SaveResult(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("battle result hand-off failed", "battleID", res.BattleID, "error", err)
		return fmt.Errorf("battle %s result: %w", res.BattleID, err)
	}
	b.markHandedOff()
	return nil
}

// Start runs the sweep loop until ctx is canceled.
func (m *Manager) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	slog.Info("battle manager started", "interval", m.cfg.SweepInterval, "idleTimeout", m.cfg.IdleTimeout)

	for {
		select {
		case <-ctx.Done():
			slog.Info("battle manager stopping", "battles", m.Count())
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(ctx, m.now())
		}
	}
}

// Sweep hands off finished battles and drops idle or expired ones.
// Returns the number of removed battles.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	removed := 0
	m.battles.Range(func(key, value any) bool {
		b := value.(*Battle)
		idle := now.Sub(b.LastActive())

		if b.Status().Finished() {
			if err := m.Finish(ctx, b); err != nil {
				// retried on the next sweep
				return true
			}
			if idle >= m.cfg.Retention && m.Remove(b.ID()) {
				removed++
			}
			return true
		}
		if idle >= m.cfg.IdleTimeout && m.Remove(b.ID()) {
			slog.Info("idle battle dropped", "battleID", b.ID(), "idle", idle)
			removed++
		}
		return true
	})
	if removed > 0 {
		slog.Debug("battle sweep completed", "removed", removed, "battles", m.Count())
	}
	return removed
}
