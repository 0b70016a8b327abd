package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/model"
)

type abilityRequest struct {
	Actor   string `json:"actor"`
	Ability string `json:"ability"`
	Target  string `json:"target"`
}

type abilityResponse struct {
	Outcome *ability.Outcome `json:"outcome"`
	Battle  battle.View      `json:"battle"`
}

// battleOf returns the player's battle. Other players' battles are not found.
func (s *Server) battleOf(r *http.Request, playerID string) (*battle.Battle, error) {
	b, err := s.battles.Get(r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if b.Options().PlayerID != playerID {
		return nil, fmt.Errorf("%w: %s", battle.ErrBattleNotFound, b.ID())
	}
	return b, nil
}

func logTail(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("log"))
	if err != nil {
		return defaultLogTail
	}
	return n
}

func (s *Server) handleBattle(w http.ResponseWriter, r *http.Request, playerID string) {
	b, err := s.battleOf(r, playerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b.View(logTail(r)))
}

func (s *Server) handleAbility(w http.ResponseWriter, r *http.Request, playerID string) {
	b, err := s.battleOf(r, playerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req abilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Actor == "" || req.Ability == "" {
		writeError(w, r, fmt.Errorf("%w: actor and ability are required", errBadRequest))
		return
	}
	if _, team := b.Turn(); team != model.TeamPlayer {
		writeError(w, r, battle.ErrNotYourTurn)
		return
	}

	out, err := b.UseAbility(r.Context(), req.Actor, req.Ability, req.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.settle(r.Context(), b)
	writeJSON(w, http.StatusOK, abilityResponse{Outcome: out, Battle: b.View(logTail(r))})
}

// handleEndTurn ends the player's turn and plays the enemy turn.
func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request, playerID string) {
	b, err := s.battleOf(r, playerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, team := b.Turn(); team != model.TeamPlayer {
		writeError(w, r, battle.ErrNotYourTurn)
		return
	}
	if err := b.EndTurn(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	if _, team := b.Turn(); !b.Status().Finished() && team == model.TeamEnemy {
		if err := b.RunAITurn(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	s.settle(r.Context(), b)
	writeJSON(w, http.StatusOK, b.View(logTail(r)))
}

// settle hands a finished battle off. Failures are retried by the sweeper.
func (s *Server) settle(ctx context.Context, b *battle.Battle) {
	if !b.Status().Finished() {
		return
	}
	if err := s.battles.Finish(ctx, b); err != nil {
		slog.Warn("battle hand-off deferred", "battleID", b.ID(), "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, playerID string) {
	if s.history == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "battle history is disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.history.ListByPlayer(r.Context(), playerID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []battle.Result{}
	}
	writeJSON(w, http.StatusOK, list)
}
