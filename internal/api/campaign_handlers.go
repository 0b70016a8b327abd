package api

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/game/story"
	"github.com/udisondev/skirmish/internal/model"
	"github.com/udisondev/skirmish/internal/report"
)

type campaignInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type mapResponse struct {
	Campaign campaignInfo    `json:"campaign"`
	Nodes    []story.MapNode `json:"nodes"`
	Roster   []string        `json:"roster"`
	Flags    []string        `json:"flags"`
	Finished bool            `json:"finished"`
}

type startRequest struct {
	Party []string `json:"party"` // subset of the roster, whole roster if empty
}

type chooseRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	ids := s.catalog.CampaignIDs()
	out := make([]campaignInfo, 0, len(ids))
	for _, id := range ids {
		c, _ := s.catalog.Campaign(id)
		out = append(out, campaignInfo{ID: c.ID, Title: c.Title, Description: c.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request, playerID string) {
	camp, p, err := s.campaigns.Progress(r.Context(), playerID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.mapOf(camp, p))
}

func (s *Server) mapOf(camp *story.Campaign, p story.Progress) mapResponse {
	e := story.NewEngine(camp)
	flags := make([]string, 0, len(p.Flags))
	for f, on := range p.Flags {
		if on {
			flags = append(flags, f)
		}
	}
	slices.Sort(flags)
	return mapResponse{
		Campaign: campaignInfo{ID: camp.ID, Title: camp.Title, Description: camp.Description},
		Nodes:    e.MapView(p),
		Roster:   p.Roster,
		Flags:    flags,
		Finished: e.Finished(p),
	}
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request, playerID string) {
	camp, p, err := s.campaigns.Progress(r.Context(), playerID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	pdf, err := report.CampaignSheet(camp, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", camp.ID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, playerID string) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	campaignID, stageID := r.PathValue("id"), r.PathValue("stage")

	camp, p, err := s.campaigns.Progress(r.Context(), playerID, campaignID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stage, err := story.NewEngine(camp).Playable(p, stageID, story.KindBattle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	party, err := pickParty(p.Roster, req.Party)
	if err != nil {
		writeError(w, r, err)
		return
	}

	players, err := s.catalog.Team(party, model.TeamPlayer, "p")
	if err != nil {
		writeError(w, r, err)
		return
	}
	enemies, err := s.catalog.Team(stage.Enemies, model.TeamEnemy, "e")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.battles.Create(players, enemies, battle.Options{
		MaxTurns:   stage.MaxTurns,
		PlayerID:   playerID,
		CampaignID: campaignID,
		StageID:    stageID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b.View(defaultLogTail))
}

// pickParty validates a requested party against the roster.
func pickParty(roster, requested []string) ([]string, error) {
	if len(requested) == 0 {
		if len(roster) == 0 {
			return nil, fmt.Errorf("%w: roster is empty", errBadRequest)
		}
		return roster, nil
	}
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if !slices.Contains(roster, id) {
			return nil, fmt.Errorf("%w: %s is not in the roster", errBadRequest, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %s listed twice", errBadRequest, id)
		}
		seen[id] = true
	}
	return requested, nil
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request, playerID string) {
	var req chooseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Key == "" {
		writeError(w, r, fmt.Errorf("%w: key is required", errBadRequest))
		return
	}
	s.updateProgress(w, r, playerID, func(e *story.Engine, p story.Progress) (story.Progress, error) {
		return e.Choose(p, r.PathValue("stage"), req.Key)
	})
}

func (s *Server) handleRecruit(w http.ResponseWriter, r *http.Request, playerID string) {
	s.updateProgress(w, r, playerID, func(e *story.Engine, p story.Progress) (story.Progress, error) {
		return e.Recruit(p, r.PathValue("stage"))
	})
}

func (s *Server) updateProgress(w http.ResponseWriter, r *http.Request, playerID string,
	fn func(e *story.Engine, p story.Progress) (story.Progress, error)) {
	campaignID := r.PathValue("id")
	p, err := s.campaigns.Update(r.Context(), playerID, campaignID, fn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	camp, _ := s.catalog.Campaign(campaignID)
	writeJSON(w, http.StatusOK, s.mapOf(camp, p))
}
