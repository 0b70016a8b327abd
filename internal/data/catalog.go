// Package data loads game content (characters, abilities, passives, talents
// and campaigns) from YAML and serves it to the engine.
package data

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/passive"
	"github.com/udisondev/skirmish/internal/game/story"
	"github.com/udisondev/skirmish/internal/model"
)

var ErrUnknownTemplate = errors.New("unknown character template")

// CharacterTemplate: шаблон персонажа из characters/*.yaml.
type CharacterTemplate struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description,omitempty"`
	Level       int32       `yaml:"level" json:"level"`
	Stats       model.Stats `yaml:"stats" json:"stats"`
	Abilities   []string    `yaml:"abilities" json:"abilities"`
	Passives    []string    `yaml:"passives" json:"passives,omitempty"`
	Talents     []string    `yaml:"talents" json:"talents,omitempty"`
}

// Catalog is loaded content. Read-only after Load, safe for concurrent use.
type Catalog struct {
	characters map[string]*CharacterTemplate
	abilities  map[string]*ability.Definition
	passives   map[string]*passive.Definition
	talents    map[string]*model.Talent
	campaigns  map[string]*story.Campaign
}

func newCatalog() *Catalog {
	return &Catalog{
		characters: map[string]*CharacterTemplate{},
		abilities:  map[string]*ability.Definition{},
		passives:   map[string]*passive.Definition{},
		talents:    map[string]*model.Talent{},
		campaigns:  map[string]*story.Campaign{},
	}
}

func (c *Catalog) Character(id string) (*CharacterTemplate, bool) {
	t, ok := c.characters[id]
	return t, ok
}

func (c *Catalog) Ability(id string) (*ability.Definition, bool) {
	d, ok := c.abilities[id]
	return d, ok
}

func (c *Catalog) Passive(id string) (*passive.Definition, bool) {
	d, ok := c.passives[id]
	return d, ok
}

func (c *Catalog) Talent(id string) (*model.Talent, bool) {
	t, ok := c.talents[id]
	return t, ok
}

func (c *Catalog) Campaign(id string) (*story.Campaign, bool) {
	cp, ok := c.campaigns[id]
	return cp, ok
}

// CampaignIDs returns campaign ids sorted.
func (c *Catalog) CampaignIDs() []string { return slices.Sorted(maps.Keys(c.campaigns)) }

// CharacterIDs returns character template ids sorted.
func (c *Catalog) CharacterIDs() []string { return slices.Sorted(maps.Keys(c.characters)) }

// NewCharacter instantiates a template for a battle.
// instanceID must be unique within the battle.
func (c *Catalog) NewCharacter(templateID, instanceID string, team model.Team) (*model.Character, error) {
	t, ok := c.characters[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	level := t.Level
	if level < 1 {
		level = 1
	}
	ch := model.NewCharacter(instanceID, t.ID, t.Name, team, level, t.Stats)
	ch.SetAbilities(slices.Clone(t.Abilities))
	ch.SetPassives(slices.Clone(t.Passives))
	ch.SetTalents(slices.Clone(t.Talents))
	return ch, nil
}

// Team instantiates templates in order with ids "<prefix><n>-<template>".
func (c *Catalog) Team(templateIDs []string, team model.Team, prefix string) ([]*model.Character, error) {
	out := make([]*model.Character, 0, len(templateIDs))
	for i, id := range templateIDs {
		ch, err := c.NewCharacter(id, fmt.Sprintf("%s%d-%s", prefix, i+1, id), team)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// validate checks definitions and every cross reference.
func (c *Catalog) validate() error {
	var errs []error

	for _, id := range slices.Sorted(maps.Keys(c.abilities)) {
		if err := c.abilities[id].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.passives)) {
		if err := c.passives[id].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.talents)) {
		t := c.talents[id]
		switch {
		case t.Ability == "" && t.Passive == "":
			errs = append(errs, fmt.Errorf("talent %s: targets neither an ability nor a passive", id))
		case t.Ability != "" && c.abilities[t.Ability] == nil:
			errs = append(errs, fmt.Errorf("talent %s: unknown ability %s", id, t.Ability))
		case t.Passive != "" && c.passives[t.Passive] == nil:
			errs = append(errs, fmt.Errorf("talent %s: unknown passive %s", id, t.Passive))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.characters)) {
		t := c.characters[id]
		if t.Stats.MaxHP <= 0 {
			errs = append(errs, fmt.Errorf("character %s: maxHp must be positive", id))
		}
		for _, a := range t.Abilities {
			if c.abilities[a] == nil {
				errs = append(errs, fmt.Errorf("character %s: unknown ability %s", id, a))
			}
		}
		for _, p := range t.Passives {
			if c.passives[p] == nil {
				errs = append(errs, fmt.Errorf("character %s: unknown passive %s", id, p))
			}
		}
		for _, tl := range t.Talents {
			if c.talents[tl] == nil {
				errs = append(errs, fmt.Errorf("character %s: unknown talent %s", id, tl))
			}
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.campaigns)) {
		for _, ref := range c.campaigns[id].CharacterRefs() {
			if c.characters[ref] == nil {
				errs = append(errs, fmt.Errorf("campaign %s: unknown character %s", id, ref))
			}
		}
	}
	return errors.Join(errs...)
}
