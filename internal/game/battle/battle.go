// Package battle runs turn-based fights between a player team and an enemy
// team: turn processing, passives dispatch, statistics and the simple AI.
package battle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/combat"
	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/game/effect"
	"github.com/udisondev/skirmish/internal/game/passive"
	"github.com/udisondev/skirmish/internal/game/stealth"
	"github.com/udisondev/skirmish/internal/model"
)

const (
	DefaultMaxTurns = 50
	DefaultSalt     = "skirmish"

	// maxPassiveDepth limits passive chains (a passive heal triggering a heal passive...).
	maxPassiveDepth = 3
)

var (
	ErrBattleOver       = errors.New("battle is over")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrUnknownCharacter = errors.New("unknown character")
	ErrAlreadyActed     = errors.New("character already acted this turn")
	ErrBattleNotFound   = errors.New("battle not found")
)

// Status of a battle.
type Status string

const (
	StatusActive  Status = "active"
	StatusVictory Status = "victory"
	StatusDefeat  Status = "defeat"
	StatusDraw    Status = "draw"
)

// Finished reports whether the battle has ended.
func (s Status) Finished() bool { return s != StatusActive }

// Content resolves ids carried by characters into definitions.
type Content interface {
	Ability(id string) (*ability.Definition, bool)
	Passive(id string) (*passive.Definition, bool)
	Talent(id string) (*model.Talent, bool)
}

// Options configure a new battle.
type Options struct {
	Salt     string // mixed with the battle id into the dice seed
	MaxTurns int    // rounds before a draw, DefaultMaxTurns if zero

	// Campaign context, carried into the Result.
	PlayerID   string
	CampaignID string
	StageID    string

	Roller dice.Roller // overrides the seeded roller
	Now    func() time.Time
}

// unit is everything the battle tracks for one character.
type unit struct {
	char     *model.Character
	effects  *effect.Manager
	stealth  *stealth.Machine
	passives []passive.Passive
	talents  []*model.Talent
}

// Battle is a single fight. All exported methods are safe for concurrent use;
// actions are serialised by the battle mutex.
type Battle struct {
	mu sync.Mutex

	id       string
	opts     Options
	content  Content
	seed     [32]byte // dice seed derived from id and salt
	roller   dice.Roller
	resolver *combat.Resolver

	players []*model.Character
	enemies []*model.Character
	units   map[string]*unit
	order   []string

	turn   int
	active model.Team
	acted  map[string]bool
	status Status

	log   *Log
	stats *Statistics
	depth int

	startedAt  time.Time
	finishedAt time.Time
	lastActive time.Time

	handoff   sync.Mutex // serialises Manager.Finish
	handedOff bool
}

// New creates a battle. Characters must have unique ids and belong to the
// team they are passed as. Passives are attached and see BattleStart, then
// the player team starts its first turn.
func New(id string, players, enemies []*model.Character, content Content, opts Options) (*Battle, error) {
	if len(players) == 0 || len(enemies) == 0 {
		return nil, errors.New("battle: both teams need at least one character")
	}
	if opts.Salt == "" {
		opts.Salt = DefaultSalt
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	b := &Battle{
		id:      id,
		opts:    opts,
		content: content,
		seed:    dice.SeedFor(id, opts.Salt),
		roller:  opts.Roller,
		players: players,
		enemies: enemies,
		units:   make(map[string]*unit, len(players)+len(enemies)),
		turn:    1,
		active:  model.TeamPlayer,
		acted:   make(map[string]bool),
		status:  StatusActive,
		log:     newLog(),
	}
	if b.roller == nil {
		b.roller = dice.New(b.seed)
	}
	b.resolver = combat.NewResolver(b.roller, b.Effects, b, b)

	for team, chars := range map[model.Team][]*model.Character{model.TeamPlayer: players, model.TeamEnemy: enemies} {
		for _, c := range chars {
			if c.Team() != team {
				return nil, fmt.Errorf("battle: character %s is on team %s, passed as %s", c.ID(), c.Team(), team)
			}
		}
	}
	for _, c := range append(append([]*model.Character{}, players...), enemies...) {
		if _, dup := b.units[c.ID()]; dup {
			return nil, fmt.Errorf("battle: duplicate character id %s", c.ID())
		}
		b.units[c.ID()] = b.newUnit(c)
		b.order = append(b.order, c.ID())
	}
	b.stats = newStatistics(append(append([]*model.Character{}, players...), enemies...))

	now := opts.Now()
	b.startedAt, b.lastActive = now, now

	b.log.Add(b.turn, "battle %s begins", id)
	for _, id := range b.order {
		b.dispatch(passive.Event{Kind: passive.EventBattleStart, Owner: b.units[id].char})
	}
	b.startTurn()
	b.checkOutcome()

	slog.Debug("battle created", "battleID", id, "players", len(players), "enemies", len(enemies))
	return b, nil
}

func (b *Battle) newUnit(c *model.Character) *unit {
	u := &unit{char: c}
	u.effects = effect.NewManager(c, b)
	u.stealth = stealth.NewMachine()
	u.stealth.
		OnEnter(stealth.Hidden, func(stealth.State) {
			c.SetHidden(true)
			b.log.Add(b.turn, "%s vanishes into the shadows", c.Name())
		}).
		OnExit(stealth.Hidden, func(to stealth.State) {
			c.SetHidden(false)
			// бафф живёт не дольше состояния, иначе повторный hide только обновит его
			u.effects.RemoveByStackKey(ability.StealthStackKey)
			if to == stealth.Exposed {
				b.log.Add(b.turn, "%s is revealed", c.Name())
			}
		})

	for _, tid := range c.Talents() {
		t, ok := b.content.Talent(tid)
		if !ok {
			slog.Warn("unknown talent", "character", c.ID(), "talent", tid)
			continue
		}
		u.talents = append(u.talents, t)
	}
	for _, pid := range c.Passives() {
		def, ok := b.content.Passive(pid)
		if !ok {
			slog.Warn("unknown passive", "character", c.ID(), "passive", pid)
			continue
		}
		p, err := passive.Create(def, u.talents)
		if err != nil {
			slog.Warn("passive not attached", "character", c.ID(), "passive", pid, "error", err)
			continue
		}
		u.passives = append(u.passives, p)
	}
	c.Recalculate()
	return u
}

// ID returns the battle id.
func (b *Battle) ID() string { return b.id }

// Status returns the current status.
func (b *Battle) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Turn returns the current round number and the team to act.
func (b *Battle) Turn() (int, model.Team) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turn, b.active
}

// Options returns the options the battle was created with.
func (b *Battle) Options() Options { return b.opts }

// LastActive returns the time of the last action.
func (b *Battle) LastActive() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastActive
}

// LogEntries returns a copy of the battle log.
func (b *Battle) LogEntries() []LogEntry { return b.log.Entries() }

// Statistics returns per-character statistics in roster order.
func (b *Battle) Statistics() []CharacterStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats.All()
}

// ability.Host, passive.Host and effect.Env.
// These are called with b.mu held by the action in progress.

func (b *Battle) Allies(c *model.Character) []*model.Character  { return living(b.team(c.Team())) }
func (b *Battle) Enemies(c *model.Character) []*model.Character { return living(b.team(c.Team().Opponent())) }
func (b *Battle) Resolver() *combat.Resolver                    { return b.resolver }
func (b *Battle) Roller() dice.Roller                           { return b.roller }

func (b *Battle) Character(id string) *model.Character {
	if u, ok := b.units[id]; ok {
		return u.char
	}
	return nil
}

func (b *Battle) Effects(c *model.Character) *effect.Manager {
	if u := b.unitOf(c); u != nil {
		return u.effects
	}
	return nil
}

func (b *Battle) Stealth(c *model.Character) *stealth.Machine {
	if u := b.unitOf(c); u != nil {
		return u.stealth
	}
	return nil
}

func (b *Battle) Talents(c *model.Character) []*model.Talent {
	if u := b.unitOf(c); u != nil {
		return u.talents
	}
	return nil
}

func (b *Battle) Log(format string, args ...any) { b.log.Add(b.turn, format, args...) }

func (b *Battle) DealPeriodic(source, target *model.Character, amount float64, kind model.DamageKind, canKill bool) int32 {
	return b.resolver.ApplyDamage(combat.Hit{
		Source:    source,
		Target:    target,
		Amount:    amount,
		Kind:      kind,
		Periodic:  true,
		NonLethal: !canKill,
	}).Dealt
}

func (b *Battle) Heal(source, target *model.Character, amount float64) int32 {
	return b.resolver.Heal(source, target, amount, "")
}

// OnCombatEvent feeds statistics, the log and passives. Implements combat.EventSink.
func (b *Battle) OnCombatEvent(ev combat.Event) {
	b.stats.Record(ev)

	switch ev.Kind {
	case combat.EventDamage:
		if ev.Periodic {
			b.log.Add(b.turn, "%s suffers %d periodic damage", ev.Target.Name(), ev.Amount)
		}
		if ev.Source != nil && ev.Source != ev.Target {
			b.dispatch(passive.Event{Kind: passive.EventDamageDealt, Owner: ev.Source, Other: ev.Target, Amount: ev.Amount, Ability: ev.Ability})
		}
		b.dispatch(passive.Event{Kind: passive.EventDamageTaken, Owner: ev.Target, Other: ev.Source, Amount: ev.Amount, Ability: ev.Ability})

	case combat.EventDodge:
		b.dispatch(passive.Event{Kind: passive.EventDodge, Owner: ev.Target, Other: ev.Source, Ability: ev.Ability})

	case combat.EventCrit:
		b.log.Add(b.turn, "critical hit on %s!", ev.Target.Name())
		b.dispatch(passive.Event{Kind: passive.EventCrit, Owner: ev.Source, Other: ev.Target, Amount: ev.Amount, Ability: ev.Ability})

	case combat.EventKill:
		b.log.Add(b.turn, "%s is defeated", ev.Target.Name())
		b.onDeath(ev.Target)
		b.dispatch(passive.Event{Kind: passive.EventKill, Owner: ev.Source, Other: ev.Target, Ability: ev.Ability})

	case combat.EventHeal:
		b.dispatch(passive.Event{Kind: passive.EventHealReceived, Owner: ev.Target, Other: ev.Source, Amount: ev.Amount, Ability: ev.Ability})
	}
}

func (b *Battle) onDeath(c *model.Character) {
	u := b.unitOf(c)
	if u == nil {
		return
	}
	if _, err := u.stealth.Fire(stealth.EventDeath); err != nil {
		slog.Debug("stealth death transition", "character", c.ID(), "error", err)
	}
	u.effects.Clear()
	c.SetTauntedBy("")
}

// dispatch delivers ev to the owner's passives. Dead owners only hear nothing.
func (b *Battle) dispatch(ev passive.Event) {
	if ev.Owner == nil || ev.Owner.IsDead() {
		return
	}
	u := b.unitOf(ev.Owner)
	if u == nil || len(u.passives) == 0 {
		return
	}
	if b.depth >= maxPassiveDepth {
		slog.Debug("passive chain cut", "battleID", b.id, "event", ev.Kind, "owner", ev.Owner.ID())
		return
	}
	b.depth++
	defer func() { b.depth-- }()

	for _, p := range u.passives {
		p.Handle(b, ev)
	}
}

func (b *Battle) unitOf(c *model.Character) *unit {
	if c == nil {
		return nil
	}
	u, ok := b.units[c.ID()]
	if !ok || u.char != c {
		return nil
	}
	return u
}

func (b *Battle) team(t model.Team) []*model.Character {
	if t == model.TeamPlayer {
		return b.players
	}
	return b.enemies
}

func living(cs []*model.Character) []*model.Character {
	out := make([]*model.Character, 0, len(cs))
	for _, c := range cs {
		if !c.IsDead() {
			out = append(out, c)
		}
	}
	return out
}
