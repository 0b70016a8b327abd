package story

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	ErrUnknownStage   = errors.New("unknown stage")
	ErrStageLocked    = errors.New("stage is locked")
	ErrStageCompleted = errors.New("stage already completed")
	ErrWrongStageKind = errors.New("wrong stage kind")
	ErrUnknownChoice  = errors.New("unknown choice")
)

// Status of a stage for a given progress.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusAvailable Status = "available"
	StatusCompleted Status = "completed"
)

// Progress is one player's state in a campaign.
type Progress struct {
	CampaignID string            `json:"campaignId"`
	Completed  map[string]bool   `json:"completed"`
	Flags      map[string]bool   `json:"flags"`
	Roster     []string          `json:"roster"`
	Choices    map[string]string `json:"choices"` // stage id → chosen key
}

// NewProgress starts a campaign with its initial roster.
func NewProgress(c *Campaign) Progress {
	return Progress{
		CampaignID: c.ID,
		Completed:  map[string]bool{},
		Flags:      map[string]bool{},
		Roster:     slices.Clone(c.Roster),
		Choices:    map[string]string{},
	}
}

// Clone returns a deep copy. Nil maps come back allocated.
func (p Progress) Clone() Progress {
	out := Progress{
		CampaignID: p.CampaignID,
		Completed:  maps.Clone(p.Completed),
		Flags:      maps.Clone(p.Flags),
		Roster:     slices.Clone(p.Roster),
		Choices:    maps.Clone(p.Choices),
	}
	if out.Completed == nil {
		out.Completed = map[string]bool{}
	}
	if out.Flags == nil {
		out.Flags = map[string]bool{}
	}
	if out.Choices == nil {
		out.Choices = map[string]string{}
	}
	return out
}

func (p *Progress) recruit(ids ...string) {
	for _, id := range ids {
		if !slices.Contains(p.Roster, id) {
			p.Roster = append(p.Roster, id)
		}
	}
}

// Engine applies campaign rules. Operations take a progress and return the
// updated copy; the input is never modified.
type Engine struct {
	Campaign *Campaign
}

func NewEngine(c *Campaign) *Engine {
	return &Engine{Campaign: c}
}

// Status reports whether a stage is locked, available or completed.
func (e *Engine) Status(p Progress, stageID string) (Status, error) {
	s, ok := e.Campaign.Stage(stageID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStage, stageID)
	}
	return e.status(p, s), nil
}

func (e *Engine) status(p Progress, s *Stage) Status {
	if p.Completed[s.ID] {
		return StatusCompleted
	}
	for _, r := range s.Requires {
		if !p.Completed[r] {
			return StatusLocked
		}
	}
	if s.RequiresFlag != "" {
		flag, negate := strings.CutPrefix(s.RequiresFlag, "!")
		if p.Flags[flag] == negate {
			return StatusLocked
		}
	}
	return StatusAvailable
}

// Available returns stages that can be played now, in campaign order.
func (e *Engine) Available(p Progress) []*Stage {
	var out []*Stage
	for _, s := range e.Campaign.Stages {
		if e.status(p, s) == StatusAvailable {
			out = append(out, s)
		}
	}
	return out
}

// Playable returns the stage if it exists, is available and has the kind.
func (e *Engine) Playable(p Progress, stageID string, kind StageKind) (*Stage, error) {
	s, ok := e.Campaign.Stage(stageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stageID)
	}
	if s.Kind != kind {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrWrongStageKind, stageID, s.Kind, kind)
	}
	switch e.status(p, s) {
	case StatusCompleted:
		return nil, fmt.Errorf("%w: %s", ErrStageCompleted, stageID)
	case StatusLocked:
		return nil, fmt.Errorf("%w: %s", ErrStageLocked, stageID)
	}
	return s, nil
}

// CompleteBattle records a battle outcome. A defeat leaves the stage
// available for another attempt.
func (e *Engine) CompleteBattle(p Progress, stageID string, victory bool) (Progress, error) {
	s, err := e.Playable(p, stageID, KindBattle)
	if err != nil {
		return p, err
	}
	if !victory {
		return p, nil
	}
	return complete(p, s), nil
}

// Choose picks an option of a choice stage.
func (e *Engine) Choose(p Progress, stageID, key string) (Progress, error) {
	s, err := e.Playable(p, stageID, KindChoice)
	if err != nil {
		return p, err
	}
	idx := slices.IndexFunc(s.Choices, func(c Choice) bool { return c.Key == key })
	if idx < 0 {
		return p, fmt.Errorf("%w: %s on %s", ErrUnknownChoice, key, stageID)
	}
	ch := s.Choices[idx]

	out := complete(p, s)
	out.Choices[s.ID] = ch.Key
	for _, f := range ch.SetFlags {
		out.Flags[f] = true
	}
	out.recruit(ch.Recruits...)
	return out, nil
}

// Recruit adds the stage's characters to the roster.
func (e *Engine) Recruit(p Progress, stageID string) (Progress, error) {
	s, err := e.Playable(p, stageID, KindRecruit)
	if err != nil {
		return p, err
	}
	out := complete(p, s)
	out.recruit(s.Recruit...)
	return out, nil
}

// complete marks s done on a copy of p and grants its rewards.
func complete(p Progress, s *Stage) Progress {
	out := p.Clone()
	out.Completed[s.ID] = true
	for _, f := range s.Rewards.Flags {
		out.Flags[f] = true
	}
	out.recruit(s.Rewards.Recruits...)
	return out
}

// Finished reports whether every non-hidden stage is completed.
func (e *Engine) Finished(p Progress) bool {
	for _, s := range e.Campaign.Stages {
		if !s.Hidden && !p.Completed[s.ID] {
			return false
		}
	}
	return true
}
