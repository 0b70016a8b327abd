package battle

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/passive"
	"github.com/udisondev/skirmish/internal/game/stealth"
	"github.com/udisondev/skirmish/internal/model"
)

var tracer = otel.Tracer("github.com/udisondev/skirmish/internal/game/battle")

// UseAbility makes actorID cast abilityID. targetID may be empty for
// auto-targeting. The actor must be on the active team and not have acted
// this turn.
func (b *Battle) UseAbility(ctx context.Context, actorID, abilityID, targetID string) (*ability.Outcome, error) {
	_, span := tracer.Start(ctx, "battle.UseAbility", trace.WithAttributes(
		attribute.String("battle.id", b.id),
		attribute.String("battle.actor", actorID),
		attribute.String("battle.ability", abilityID),
		attribute.String("battle.target", targetID),
	))
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	out, err := b.useAbility(actorID, abilityID, targetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("battle.status", string(b.status)))
	return out, nil
}

func (b *Battle) useAbility(actorID, abilityID, targetID string) (*ability.Outcome, error) {
	if b.status.Finished() {
		return nil, ErrBattleOver
	}
	u, ok := b.units[actorID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharacter, actorID)
	}
	actor := u.char
	if actor.Team() != b.active {
		return nil, fmt.Errorf("%w: %s is on team %s", ErrNotYourTurn, actorID, actor.Team())
	}
	if b.acted[actorID] {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyActed, actorID)
	}
	def, ok := b.content.Ability(abilityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ability.ErrUnknownAbility, abilityID)
	}

	b.lastActive = b.opts.Now()
	out, err := ability.Cast(b, actor, def, targetID)
	switch {
	case err != nil && out == nil:
		return nil, err
	case err != nil:
		// ошибка контента: мана уже потрачена, ход засчитан
		slog.Warn("ability failed mid-cast", "battleID", b.id, "character", actorID, "ability", def.ID, "error", err)
		b.log.Add(b.turn, "%s fizzles", def.Name)
	}
	b.acted[actorID] = true
	b.stats.AbilityUsed(actorID)

	if def.Damaging() && u.stealth.State() == stealth.Hidden {
		if _, err := u.stealth.Fire(stealth.EventAttack); err != nil {
			slog.Debug("stealth attack transition", "character", actorID, "error", err)
		}
	}
	b.dispatch(passive.Event{Kind: passive.EventAbilityUsed, Owner: actor, Ability: def.ID})
	b.checkOutcome()
	return out, nil
}

// EndTurn finishes the active team's turn and starts the opponent's.
// A round ends when the enemy team ends its turn.
func (b *Battle) EndTurn(ctx context.Context) error {
	_, span := tracer.Start(ctx, "battle.EndTurn", trace.WithAttributes(attribute.String("battle.id", b.id)))
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status.Finished() {
		span.RecordError(ErrBattleOver)
		return ErrBattleOver
	}
	span.SetAttributes(attribute.Int("battle.turn", b.turn), attribute.String("battle.team", b.active.String()))

	b.lastActive = b.opts.Now()
	b.endTurn()
	if b.checkOutcome() {
		return nil
	}

	b.active = b.active.Opponent()
	if b.active == model.TeamPlayer {
		b.turn++
		if b.turn > b.opts.MaxTurns {
			b.finish(StatusDraw)
			return nil
		}
	}
	b.startTurn()
	b.checkOutcome()
	span.SetAttributes(attribute.String("battle.status", string(b.status)))
	return nil
}

// endTurn: durations and cooldowns tick, stealth counts down, passives see TurnEnd.
func (b *Battle) endTurn() {
	for _, c := range living(b.team(b.active)) {
		u := b.units[c.ID()]
		u.effects.Tick(1)
		c.TickCooldowns()
		if _, err := u.stealth.Fire(stealth.EventTurnEnd); err != nil {
			slog.Debug("stealth turn end", "character", c.ID(), "error", err)
		}
		b.dispatch(passive.Event{Kind: passive.EventTurnEnd, Owner: c})
	}
}

// startTurn runs periodic effects, regeneration, stealth and TurnStart passives
// for the active team.
func (b *Battle) startTurn() {
	clear(b.acted)
	b.log.Add(b.turn, "turn %d: %s acts", b.turn, b.active)

	for _, c := range living(b.team(b.active)) {
		u := b.units[c.ID()]
		u.effects.ProcessTurnStart()
		if c.IsDead() {
			continue
		}
		if hp := model.RoundHP(c.Stat(model.StatHPRegen)); hp > 0 {
			c.RestoreHP(hp)
		}
		if mana := model.RoundHP(c.Stat(model.StatManaRegen)); mana > 0 {
			c.RestoreMana(mana)
		}
		if _, err := u.stealth.Fire(stealth.EventTurnStart); err != nil {
			slog.Debug("stealth turn start", "character", c.ID(), "error", err)
		}
		b.dispatch(passive.Event{Kind: passive.EventTurnStart, Owner: c})
	}
}

// checkOutcome finishes the battle when a team is wiped. Player wipe wins ties.
func (b *Battle) checkOutcome() bool {
	if b.status.Finished() {
		return true
	}
	switch {
	case len(living(b.players)) == 0:
		b.finish(StatusDefeat)
	case len(living(b.enemies)) == 0:
		b.finish(StatusVictory)
	default:
		return false
	}
	return true
}

func (b *Battle) finish(s Status) {
	b.status = s
	b.finishedAt = b.opts.Now()
	b.log.Add(b.turn, "battle ends: %s", s)
	slog.Info("battle finished", "battleID", b.id, "status", s, "turn", b.turn)
}
