package ability

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/udisondev/skirmish/internal/game/combat"
	"github.com/udisondev/skirmish/internal/game/dice"
	"github.com/udisondev/skirmish/internal/game/effect"
	"github.com/udisondev/skirmish/internal/game/stealth"
	"github.com/udisondev/skirmish/internal/model"
)

var (
	ErrCasterDead     = errors.New("caster is dead")
	ErrCannotAct      = errors.New("caster cannot act")
	ErrSilenced       = errors.New("caster is silenced")
	ErrUnknownAbility = errors.New("unknown ability")
	ErrOnCooldown     = errors.New("ability on cooldown")
	ErrNotEnoughMana  = errors.New("not enough mana")
	ErrNoValidTargets = errors.New("no valid targets")
	ErrCannotHide     = errors.New("cannot hide while exposed")
)

// Host is the battle seen from an ability.
type Host interface {
	// Allies returns living characters on c's team, c included.
	Allies(c *model.Character) []*model.Character
	// Enemies returns living characters on the opposing team.
	Enemies(c *model.Character) []*model.Character
	Character(id string) *model.Character
	Resolver() *combat.Resolver
	Effects(c *model.Character) *effect.Manager
	Stealth(c *model.Character) *stealth.Machine
	Talents(c *model.Character) []*model.Talent
	Log(format string, args ...any)
}

// Context is handed to effect functions.
type Context struct {
	Host    Host
	Caster  *model.Character
	Def     *Definition
	Targets []*model.Character
	Params  model.Params // definition params with talent overrides

	dodged map[*model.Character]bool
}

// Roller returns the battle's random source.
func (ctx *Context) Roller() dice.Roller { return ctx.Host.Resolver().Roller() }

// Hit deals amount of the definition's damage kind to target through the resolver.
func (ctx *Context) Hit(target *model.Character, amount float64) combat.Result {
	return ctx.HitAs(target, amount, ctx.Def.Kind())
}

// HitAs is Hit with an explicit damage kind.
func (ctx *Context) HitAs(target *model.Character, amount float64, kind model.DamageKind) combat.Result {
	res := ctx.Host.Resolver().ApplyDamage(combat.Hit{
		Source:  ctx.Caster,
		Target:  target,
		Amount:  amount,
		Kind:    kind,
		CanCrit: ctx.Params.Get("canCrit", 1) != 0,
		Ability: ctx.Def.ID,
	})
	if res.Dodged {
		if ctx.dodged == nil {
			ctx.dodged = make(map[*model.Character]bool)
		}
		ctx.dodged[target] = true
		ctx.Host.Log("%s dodges %s", target.Name(), ctx.Def.Name)
	} else {
		ctx.Host.Log("%s hits %s for %d", ctx.Def.Name, target.Name(), res.Dealt)
	}
	return res
}

// Amount returns "base + ratio × scaling stat" from params.
func (ctx *Context) Amount() float64 {
	return combat.Scaled(ctx.Caster, ctx.Params.Get("base", 0), ctx.Params.Get("ratio", 0), ctx.Def.ScalingStat())
}

// Outcome describes a successful cast.
type Outcome struct {
	Ability string   `json:"ability"`
	Caster  string   `json:"caster"`
	Targets []string `json:"targets"`
	Failed  bool     `json:"failed,omitempty"` // effect function failed after mana was spent
}

// CheckUsable validates that caster can cast def right now, without targets.
func CheckUsable(caster *model.Character, def *Definition) error {
	switch {
	case caster.IsDead():
		return ErrCasterDead
	case !caster.CanAct():
		return ErrCannotAct
	case def.ManaCost > 0 && caster.IsSilenced():
		return ErrSilenced
	case !caster.HasAbility(def.ID):
		return fmt.Errorf("%w: %s", ErrUnknownAbility, def.ID)
	case caster.CooldownRemaining(def.ID) > 0:
		return fmt.Errorf("%w: %s (%d turns)", ErrOnCooldown, def.ID, caster.CooldownRemaining(def.ID))
	case caster.Mana() < def.ManaCost:
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughMana, def.ManaCost, caster.Mana())
	}
	return nil
}

// Cast validates and executes an ability. targetID picks the target for
// single-target abilities and may be empty (auto-pick).
// Mana and cooldown are only spent once targets resolve. If the effect
// function fails after that, Cast returns both the Failed outcome and the
// error: the cast counts as made.
func Cast(host Host, caster *model.Character, def *Definition, targetID string) (*Outcome, error) {
	if err := CheckUsable(caster, def); err != nil {
		return nil, err
	}
	fn, ok := lookup(def.Func)
	if !ok {
		return nil, fmt.Errorf("ability %s: unknown func %q", def.ID, def.Func)
	}
	if def.Func == "hide" {
		if m := host.Stealth(caster); m != nil && m.State() == stealth.Exposed {
			return nil, ErrCannotHide
		}
	}

	params := model.ForAbility(def.Params, host.Talents(caster), def.ID)
	targets := ResolveTargets(host, caster, def, targetID, params)
	if len(targets) == 0 {
		slog.Warn("no valid targets!", "ability", def.ID, "caster", caster.ID(), "target", targetID)
		return nil, fmt.Errorf("%w: %s", ErrNoValidTargets, def.ID)
	}

	caster.SpendMana(def.ManaCost)
	caster.StartCooldown(def.ID, int(params.Get("cooldown", float64(def.Cooldown))))
	host.Log("%s uses %s", caster.Name(), def.Name)

	out := &Outcome{Ability: def.ID, Caster: caster.ID()}
	for _, t := range targets {
		out.Targets = append(out.Targets, t.ID())
	}

	ctx := &Context{Host: host, Caster: caster, Def: def, Targets: targets, Params: params}
	if err := fn(ctx); err != nil {
		out.Failed = true
		return out, fmt.Errorf("ability %s: %w", def.ID, err)
	}
	if def.Func != "apply" {
		ApplyEffects(ctx)
	}
	return out, nil
}

// ApplyEffects applies the definition's effect specs to living targets in
// order. Debuffs skip targets that dodged this cast.
func ApplyEffects(ctx *Context) {
	for _, spec := range ctx.Def.Effects {
		if spec.OnSelf {
			applySpec(ctx, spec, ctx.Caster)
			continue
		}
		for _, t := range ctx.Targets {
			applySpec(ctx, spec, t)
		}
	}
}

func applySpec(ctx *Context, spec EffectSpec, target *model.Character) bool {
	if target.IsDead() {
		return false
	}
	kind := specKind(spec, ctx.Caster, target)
	if kind == effect.KindDebuff && ctx.dodged[target] {
		return false
	}
	if spec.Chance > 0 && !dice.Chance(ctx.Roller(), spec.Chance) {
		return false
	}
	return Apply(ctx.Host, ctx.Caster, target, ctx.Def.ID, spec)
}

// Apply creates the effect described by spec and adds it to target.
// Unknown effect names are logged and skipped.
func Apply(host Host, caster, target *model.Character, source string, spec EffectSpec) bool {
	mgr := host.Effects(target)
	if mgr == nil {
		return false
	}
	eff, err := effect.CreateEffect(spec.Name, spec.Params)
	if err != nil {
		slog.Warn("skipping effect", "source", source, "error", err)
		return false
	}

	duration := spec.Duration
	if duration == 0 {
		duration = 1
	}
	ae := &effect.ActiveEffect{
		Caster:         caster,
		Target:         target,
		Source:         source,
		Effect:         eff,
		RemainingTurns: duration,
		StackKey:       spec.StackKey,
		Level:          spec.Level,
		MaxStacks:      spec.MaxStacks,
		Dispellable:    spec.IsDispellable(),
	}

	var ok bool
	if specKind(spec, caster, target) == effect.KindDebuff {
		ok = mgr.AddDebuff(ae)
	} else {
		ok = mgr.AddBuff(ae)
	}
	if ok {
		host.Log("%s gains %s", target.Name(), spec.Name)
	}
	return ok
}

func specKind(spec EffectSpec, caster, target *model.Character) effect.Kind {
	switch spec.Kind {
	case "buff":
		return effect.KindBuff
	case "debuff":
		return effect.KindDebuff
	}
	if caster != nil && caster.Team() != target.Team() {
		return effect.KindDebuff
	}
	return effect.KindBuff
}

// ResolveTargets picks targets for a cast. Hidden enemies cannot be picked by
// single or random targeting; all_enemies still hits them. A taunted caster
// must pick its taunter with single-target offensive abilities.
func ResolveTargets(host Host, caster *model.Character, def *Definition, targetID string, params model.Params) []*model.Character {
	switch def.Target {
	case TargetSelf:
		return []*model.Character{caster}

	case TargetAlly:
		allies := host.Allies(caster)
		if targetID == "" {
			return []*model.Character{caster}
		}
		if c := findByID(allies, targetID); c != nil {
			return []*model.Character{c}
		}
		return nil

	case TargetAllAllies:
		return host.Allies(caster)

	case TargetLowestAlly:
		allies := host.Allies(caster)
		if len(allies) == 0 {
			return nil
		}
		return []*model.Character{lowestHP(allies)}

	case TargetEnemy:
		visible := Visible(host.Enemies(caster))
		if taunter := findByID(visible, caster.TauntedBy()); taunter != nil {
			return []*model.Character{taunter}
		}
		if targetID == "" {
			if len(visible) == 0 {
				return nil
			}
			return []*model.Character{lowestHP(visible)}
		}
		if c := findByID(visible, targetID); c != nil {
			return []*model.Character{c}
		}
		return nil

	case TargetAllEnemies:
		return host.Enemies(caster)

	case TargetRandomEnemies:
		pool := Visible(host.Enemies(caster))
		n := int(params.Get("count", float64(max(def.Count, 1))))
		return pickRandom(host.Resolver().Roller(), pool, n)
	}
	return nil
}

// Visible filters out hidden characters.
func Visible(cs []*model.Character) []*model.Character {
	out := make([]*model.Character, 0, len(cs))
	for _, c := range cs {
		if !c.IsHidden() {
			out = append(out, c)
		}
	}
	return out
}

func findByID(cs []*model.Character, id string) *model.Character {
	if id == "" {
		return nil
	}
	for _, c := range cs {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// lowestHP returns the character with the lowest HP fraction; ties keep order.
func lowestHP(cs []*model.Character) *model.Character {
	return slices.MinFunc(cs, func(a, b *model.Character) int {
		return cmp.Compare(a.HPPercentage(), b.HPPercentage())
	})
}

// pickRandom draws up to n distinct characters without replacement.
func pickRandom(r dice.Roller, pool []*model.Character, n int) []*model.Character {
	pool = slices.Clone(pool)
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]*model.Character, 0, n)
	for range n {
		i := r.IntN(len(pool))
		out = append(out, pool[i])
		pool = slices.Delete(pool, i, i+1)
	}
	return out
}
