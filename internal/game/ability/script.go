package ability

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Shopify/go-lua"

	"github.com/udisondev/skirmish/internal/model"
)

// ErrScript wraps Lua load and runtime failures.
var ErrScript = errors.New("ability script failed")

// statFallbacks are returned by stat() when a character has the stat at zero.
var statFallbacks = map[model.StatID]float64{
	model.StatMagicalDamage: 300,
}

func init() {
	Register("script", scriptFunc)
}

func scriptFunc(ctx *Context) error {
	return RunScript(ctx, ctx.Def.Script)
}

// RunScript executes Lua source against a cast context.
//
// Globals: caster (table), targets (array of tables), params (table) and
// functions damage(id, amount [, kind]), heal(id, amount),
// apply(id, effect, turns [, params]), stat(id, name), log(msg).
func RunScript(ctx *Context, src string) error {
	l := lua.NewState()
	lua.OpenLibraries(l)
	for _, lib := range []string{"io", "os", "dofile", "loadfile"} {
		l.PushNil()
		l.SetGlobal(lib)
	}

	pushCharacter(l, ctx.Caster)
	l.SetGlobal("caster")

	l.NewTable()
	for i, t := range ctx.Targets {
		pushCharacter(l, t)
		l.RawSetInt(-2, i+1)
	}
	l.SetGlobal("targets")

	l.NewTable()
	for k, v := range ctx.Params {
		l.PushNumber(v)
		l.SetField(-2, k)
	}
	l.SetGlobal("params")

	for name, fn := range scriptAPI(ctx) {
		l.PushGoFunction(fn)
		l.SetGlobal(name)
	}

	if err := lua.LoadString(l, src); err != nil {
		return fmt.Errorf("%w: load: %v", ErrScript, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrScript, err)
	}
	return nil
}

func pushCharacter(l *lua.State, c *model.Character) {
	l.NewTable()
	l.PushString(c.ID())
	l.SetField(-2, "id")
	l.PushString(c.Name())
	l.SetField(-2, "name")
	l.PushString(c.Team().String())
	l.SetField(-2, "team")
	l.PushInteger(int(c.HP()))
	l.SetField(-2, "hp")
	l.PushInteger(int(c.MaxHP()))
	l.SetField(-2, "maxHp")
	l.PushInteger(int(c.Mana()))
	l.SetField(-2, "mana")
	l.PushBoolean(c.IsHidden())
	l.SetField(-2, "hidden")
}

func scriptAPI(ctx *Context) map[string]lua.Function {
	checkChar := func(l *lua.State, index int) *model.Character {
		id := lua.CheckString(l, index)
		c := ctx.Host.Character(id)
		if c == nil {
			lua.ArgumentError(l, index, "unknown character "+id)
			return nil
		}
		return c
	}

	return map[string]lua.Function{
		"damage": func(l *lua.State) int {
			target := checkChar(l, 1)
			amount := lua.CheckNumber(l, 2)
			kind := ctx.Def.Kind()
			if s := lua.OptString(l, 3, ""); s != "" {
				kind = model.ParseDamageKind(s)
			}
			res := ctx.HitAs(target, amount, kind)
			l.PushInteger(int(res.Dealt))
			return 1
		},
		"heal": func(l *lua.State) int {
			target := checkChar(l, 1)
			amount := lua.CheckNumber(l, 2)
			healed := ctx.Host.Resolver().Heal(ctx.Caster, target, amount, ctx.Def.ID)
			l.PushInteger(int(healed))
			return 1
		},
		"apply": func(l *lua.State) int {
			target := checkChar(l, 1)
			spec := EffectSpec{
				Name:     lua.CheckString(l, 2),
				Duration: lua.OptInteger(l, 3, 1),
				Params:   stringTable(l, 4),
			}
			l.PushBoolean(Apply(ctx.Host, ctx.Caster, target, ctx.Def.ID, spec))
			return 1
		},
		"stat": func(l *lua.State) int {
			id := lua.CheckString(l, 1)
			stat := model.StatID(lua.CheckString(l, 2))
			var v float64
			if c := ctx.Host.Character(id); c != nil {
				v = c.Stat(stat)
			}
			if v == 0 {
				v = statFallbacks[stat]
			}
			l.PushNumber(v)
			return 1
		},
		"log": func(l *lua.State) int {
			ctx.Host.Log("%s", lua.CheckString(l, 1))
			return 0
		},
	}
}

// stringTable converts an optional Lua table of scalars to effect params.
func stringTable(l *lua.State, index int) map[string]string {
	out := map[string]string{}
	if l.IsNoneOrNil(index) || l.TypeOf(index) != lua.TypeTable {
		return out
	}
	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			switch l.TypeOf(-1) {
			case lua.TypeNumber:
				n, _ := l.ToNumber(-1)
				out[key] = strconv.FormatFloat(n, 'f', -1, 64)
			case lua.TypeBoolean:
				out[key] = strconv.FormatBool(l.ToBoolean(-1))
			case lua.TypeString:
				out[key], _ = l.ToString(-1)
			}
		}
		l.Pop(1)
	}
	return out
}
