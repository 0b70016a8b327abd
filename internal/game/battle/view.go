package battle

import (
	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/effect"
)

// View is a read-only snapshot of a battle for clients.
type View struct {
	ID         string           `json:"id"`
	Status     Status           `json:"status"`
	Turn       int              `json:"turn"`
	ActiveTeam string           `json:"activeTeam"`
	Players    []UnitView       `json:"players"`
	Enemies    []UnitView       `json:"enemies"`
	Log        []LogEntry       `json:"log"`
	Stats      []CharacterStats `json:"stats,omitempty"`
}

type UnitView struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Level     int32             `json:"level"`
	HP        int32             `json:"hp"`
	MaxHP     int32             `json:"maxHp"`
	Mana      int32             `json:"mana"`
	MaxMana   int32             `json:"maxMana"`
	Stealth   string            `json:"stealth"`
	Stunned   bool              `json:"stunned,omitempty"`
	Silenced  bool              `json:"silenced,omitempty"`
	Acted     bool              `json:"acted,omitempty"`
	Abilities []AbilityView     `json:"abilities"`
	Effects   []effect.Snapshot `json:"effects"`
}

type AbilityView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ManaCost int32  `json:"manaCost"`
	Cooldown int    `json:"cooldown"`
	Target   string `json:"target"`
	Usable   bool   `json:"usable"`
}

// View builds a snapshot with up to logTail newest log entries (all if <= 0).
func (b *Battle) View(logTail int) View {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := View{
		ID:         b.id,
		Status:     b.status,
		Turn:       b.turn,
		ActiveTeam: b.active.String(),
		Stats:      b.stats.All(),
	}
	if logTail > 0 {
		v.Log = b.log.Tail(logTail)
	} else {
		v.Log = b.log.Entries()
	}
	for _, c := range b.players {
		v.Players = append(v.Players, b.unitView(b.units[c.ID()]))
	}
	for _, c := range b.enemies {
		v.Enemies = append(v.Enemies, b.unitView(b.units[c.ID()]))
	}
	return v
}

func (b *Battle) unitView(u *unit) UnitView {
	c := u.char
	uv := UnitView{
		ID:       c.ID(),
		Name:     c.Name(),
		Level:    c.Level(),
		HP:       c.HP(),
		MaxHP:    c.MaxHP(),
		Mana:     c.Mana(),
		MaxMana:  c.MaxMana(),
		Stealth:  u.stealth.State().String(),
		Stunned:  c.IsStunned(),
		Silenced: c.IsSilenced(),
		Acted:    b.acted[c.ID()],
		Effects:  u.effects.Snapshots(),
	}
	for _, id := range c.Abilities() {
		av := AbilityView{ID: id, Cooldown: c.CooldownRemaining(id)}
		if def, ok := b.content.Ability(id); ok {
			av.Name = def.Name
			av.ManaCost = def.ManaCost
			av.Target = string(def.Target)
			av.Usable = c.Team() == b.active && !b.acted[c.ID()] && b.status == StatusActive && ability.CheckUsable(c, def) == nil
		}
		uv.Abilities = append(uv.Abilities, av)
	}
	return uv
}
