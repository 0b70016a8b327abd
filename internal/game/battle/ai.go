package battle

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/model"
)

// healThreshold is the HP fraction below which the AI prefers healing.
const healThreshold = 0.4

// RunAITurn lets the AI act with every able character of the active team,
// then ends the turn.
func (b *Battle) RunAITurn(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "battle.RunAITurn", trace.WithAttributes(attribute.String("battle.id", b.id)))
	defer span.End()

	b.mu.Lock()
	if b.status.Finished() {
		b.mu.Unlock()
		return ErrBattleOver
	}
	for _, c := range living(b.team(b.active)) {
		if b.status.Finished() {
			break
		}
		if !c.CanAct() || b.acted[c.ID()] {
			continue
		}
		b.actAI(c)
	}
	finished := b.status.Finished()
	b.mu.Unlock()

	if finished {
		return nil
	}
	return b.EndTurn(ctx)
}

// actAI tries candidate abilities in priority order until one casts.
func (b *Battle) actAI(c *model.Character) {
	for _, pick := range b.aiCandidates(c) {
		_, err := b.useAbility(c.ID(), pick.def.ID, pick.target)
		if err == nil {
			return
		}
		if !errors.Is(err, ability.ErrNoValidTargets) {
			slog.Debug("ai cast rejected", "battleID", b.id, "character", c.ID(), "ability", pick.def.ID, "error", err)
		}
	}
	slog.Debug("ai skips", "battleID", b.id, "character", c.ID())
}

type aiPick struct {
	def    *ability.Definition
	target string
}

// aiCandidates orders usable abilities: heals first when an ally is below
// healThreshold, then damage by cost (AIPriority breaks ties), then the rest.
func (b *Battle) aiCandidates(c *model.Character) []aiPick {
	var heals, damage, other []*ability.Definition
	for _, id := range c.Abilities() {
		def, ok := b.content.Ability(id)
		if !ok || ability.CheckUsable(c, def) != nil {
			continue
		}
		switch {
		case def.Healing():
			heals = append(heals, def)
		case def.Damaging():
			damage = append(damage, def)
		default:
			other = append(other, def)
		}
	}

	byCost := func(x, y *ability.Definition) int {
		if n := cmp.Compare(y.ManaCost, x.ManaCost); n != 0 {
			return n
		}
		return cmp.Compare(y.AIPriority, x.AIPriority)
	}
	slices.SortStableFunc(heals, byCost)
	slices.SortStableFunc(damage, byCost)
	slices.SortStableFunc(other, func(x, y *ability.Definition) int { return cmp.Compare(y.AIPriority, x.AIPriority) })

	var picks []aiPick
	if wounded := b.woundedAlly(c); wounded != nil {
		for _, def := range heals {
			picks = append(picks, aiPick{def: def, target: wounded.ID()})
		}
	}
	target := ""
	if visible := ability.Visible(b.Enemies(c)); len(visible) > 0 {
		target = slices.MinFunc(visible, func(x, y *model.Character) int {
			return cmp.Compare(x.HP(), y.HP())
		}).ID()
	}
	for _, def := range damage {
		picks = append(picks, aiPick{def: def, target: target})
	}
	for _, def := range other {
		picks = append(picks, aiPick{def: def})
	}
	return picks
}

func (b *Battle) woundedAlly(c *model.Character) *model.Character {
	var worst *model.Character
	for _, a := range b.Allies(c) {
		if a.HPPercentage() >= healThreshold {
			continue
		}
		if worst == nil || a.HPPercentage() < worst.HPPercentage() {
			worst = a
		}
	}
	return worst
}
