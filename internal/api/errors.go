package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/battle"
	"github.com/udisondev/skirmish/internal/game/story"
)

var (
	errBadRequest = errors.New("bad request")
	errNoPlayer   = errors.New("missing X-Player-ID header")
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errNoPlayer):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, story.ErrWrongStageKind),
		errors.Is(err, story.ErrUnknownChoice),
		errors.Is(err, ability.ErrNoValidTargets):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownCampaign),
		errors.Is(err, story.ErrUnknownStage),
		errors.Is(err, battle.ErrBattleNotFound),
		errors.Is(err, battle.ErrUnknownCharacter),
		errors.Is(err, ability.ErrUnknownAbility):
		return http.StatusNotFound
	case errors.Is(err, story.ErrStageLocked),
		errors.Is(err, story.ErrStageCompleted),
		errors.Is(err, battle.ErrBattleOver),
		errors.Is(err, battle.ErrNotYourTurn),
		errors.Is(err, battle.ErrAlreadyActed),
		errors.Is(err, ability.ErrOnCooldown),
		errors.Is(err, ability.ErrNotEnoughMana),
		errors.Is(err, ability.ErrCasterDead),
		errors.Is(err, ability.ErrCannotAct),
		errors.Is(err, ability.ErrSilenced),
		errors.Is(err, ability.ErrCannotHide):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
