// Package story implements the campaign map: stage data, progress and the
// rules that lock, unlock and complete stages.
package story

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StageKind is what happens when a stage is played.
type StageKind string

const (
	KindBattle  StageKind = "battle"
	KindChoice  StageKind = "choice"
	KindRecruit StageKind = "recruit"
)

// Campaign is a story map loaded from YAML.
type Campaign struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Roster      []string `yaml:"roster"` // starting party (character template ids)
	Stages      []*Stage `yaml:"stages"`

	index map[string]*Stage
}

// Stage is one node of the story map.
type Stage struct {
	ID          string    `yaml:"id"`
	Kind        StageKind `yaml:"kind"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`

	// Requires lists stages that must be completed first.
	Requires []string `yaml:"requires"`
	// RequiresFlag must be set ("!flag" must be unset) for the stage to open.
	RequiresFlag string `yaml:"requiresFlag"`
	// Hidden stages are left off the map until they become available.
	Hidden bool `yaml:"hidden"`

	Position Position `yaml:"position"`

	Enemies  []string `yaml:"enemies"`  // battle: enemy template ids
	MaxTurns int      `yaml:"maxTurns"` // battle: 0 uses the server default
	Recruit  []string `yaml:"recruit"`  // recruit: template ids joining the roster
	Choices  []Choice `yaml:"choices"`  // choice: options
	Rewards  Rewards  `yaml:"rewards"`
}

// Position on the map, in abstract units.
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Choice is one option of a choice stage.
type Choice struct {
	Key      string   `yaml:"key" json:"key"`
	Text     string   `yaml:"text" json:"text"`
	SetFlags []string `yaml:"setFlags" json:"setFlags,omitempty"`
	Recruits []string `yaml:"recruits" json:"recruits,omitempty"`
}

// Rewards are granted when a stage completes.
type Rewards struct {
	Flags    []string `yaml:"flags"`
	Recruits []string `yaml:"recruits"`
}

// LoadCampaign reads and validates a campaign YAML file.
func LoadCampaign(path string) (*Campaign, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading campaign: %w", err)
	}
	c, err := ParseCampaign(b)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: %w", path, err)
	}
	return c, nil
}

// ParseCampaign decodes and validates a campaign.
func ParseCampaign(b []byte) (*Campaign, error) {
	var c Campaign
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parsing campaign: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Stage returns a stage by id.
func (c *Campaign) Stage(id string) (*Stage, bool) {
	if c.index == nil {
		c.buildIndex()
	}
	s, ok := c.index[id]
	return s, ok
}

func (c *Campaign) buildIndex() {
	c.index = make(map[string]*Stage, len(c.Stages))
	for _, s := range c.Stages {
		c.index[s.ID] = s
	}
}

// Validate checks ids, references, kind-specific fields and that
// requirements form no cycle. All problems are reported together.
func (c *Campaign) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("missing campaign id"))
	}
	if len(c.Stages) == 0 {
		errs = append(errs, errors.New("campaign has no stages"))
	}

	seen := make(map[string]bool, len(c.Stages))
	for i, s := range c.Stages {
		if s == nil || s.ID == "" {
			errs = append(errs, fmt.Errorf("stage #%d: missing id", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate stage id %s", s.ID))
		}
		seen[s.ID] = true
	}

	for _, s := range c.Stages {
		if s == nil || s.ID == "" {
			continue
		}
		for _, r := range s.Requires {
			if !seen[r] {
				errs = append(errs, fmt.Errorf("stage %s: requires unknown stage %s", s.ID, r))
			}
			if r == s.ID {
				errs = append(errs, fmt.Errorf("stage %s: requires itself", s.ID))
			}
		}
		if strings.TrimPrefix(s.RequiresFlag, "!") == "" && s.RequiresFlag != "" {
			errs = append(errs, fmt.Errorf("stage %s: empty requiresFlag", s.ID))
		}
		errs = append(errs, s.validateKind()...)
	}

	if len(errs) == 0 {
		c.buildIndex()
		if cycle := c.findCycle(); cycle != nil {
			errs = append(errs, fmt.Errorf("requirement cycle: %s", strings.Join(cycle, " -> ")))
		}
	}
	return errors.Join(errs...)
}

func (s *Stage) validateKind() []error {
	var errs []error
	switch s.Kind {
	case KindBattle:
		if len(s.Enemies) == 0 {
			errs = append(errs, fmt.Errorf("stage %s: battle without enemies", s.ID))
		}
	case KindChoice:
		if len(s.Choices) == 0 {
			errs = append(errs, fmt.Errorf("stage %s: choice without options", s.ID))
		}
		keys := make(map[string]bool, len(s.Choices))
		for _, ch := range s.Choices {
			if ch.Key == "" {
				errs = append(errs, fmt.Errorf("stage %s: choice without key", s.ID))
			} else if keys[ch.Key] {
				errs = append(errs, fmt.Errorf("stage %s: duplicate choice %s", s.ID, ch.Key))
			}
			keys[ch.Key] = true
		}
	case KindRecruit:
		if len(s.Recruit) == 0 {
			errs = append(errs, fmt.Errorf("stage %s: recruit without characters", s.ID))
		}
	default:
		errs = append(errs, fmt.Errorf("stage %s: unknown kind %q", s.ID, s.Kind))
	}
	return errs
}

// findCycle returns a requirement cycle or nil. Three-colour DFS.
func (c *Campaign) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(c.Stages))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = grey
		path = append(path, id)
		for _, r := range c.index[id].Requires {
			switch color[r] {
			case grey:
				start := 0
				for i, p := range path {
					if p == r {
						start = i
					}
				}
				return append(append([]string{}, path[start:]...), r)
			case white:
				if cyc := visit(r); cyc != nil {
					return cyc
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil
	}

	for _, s := range c.Stages {
		if color[s.ID] == white {
			if cyc := visit(s.ID); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// CharacterRefs returns every character template id the campaign mentions.
func (c *Campaign) CharacterRefs() []string {
	var refs []string
	refs = append(refs, c.Roster...)
	for _, s := range c.Stages {
		refs = append(refs, s.Enemies...)
		refs = append(refs, s.Recruit...)
		refs = append(refs, s.Rewards.Recruits...)
		for _, ch := range s.Choices {
			refs = append(refs, ch.Recruits...)
		}
	}
	return refs
}
