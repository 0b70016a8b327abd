// Package api serves campaigns and battles over HTTP JSON.
// The player is identified by the X-Player-ID header.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/udisondev/skirmish/internal/data"
	"github.com/udisondev/skirmish/internal/game/battle"
)

const (
	playerHeader   = "X-Player-ID"
	defaultLogTail = 30
	maxBodyBytes   = 64 << 10
)

// BattleHistory lists finished battles. db.BattleRepository implements it.
type BattleHistory interface {
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]battle.Result, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes API requests.
type Server struct {
	catalog   *data.Catalog
	battles   *battle.Manager
	campaigns *Campaigns
	history   BattleHistory
	pinger    Pinger
	mux       *http.ServeMux
}

type Option func(*Server)

func WithHistory(h BattleHistory) Option { return func(s *Server) { s.history = h } }
func WithPinger(p Pinger) Option         { return func(s *Server) { s.pinger = p } }

func NewServer(catalog *data.Catalog, battles *battle.Manager, campaigns *Campaigns, opts ...Option) *Server {
	s := &Server{
		catalog:   catalog,
		battles:   battles,
		campaigns: campaigns,
		mux:       http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/campaigns", s.handleCampaigns)
	s.mux.HandleFunc("GET /api/campaigns/{id}/map", s.withPlayer(s.handleMap))
	s.mux.HandleFunc("GET /api/campaigns/{id}/sheet.pdf", s.withPlayer(s.handleSheet))
	s.mux.HandleFunc("POST /api/campaigns/{id}/stages/{stage}/start", s.withPlayer(s.handleStart))
	s.mux.HandleFunc("POST /api/campaigns/{id}/stages/{stage}/choose", s.withPlayer(s.handleChoose))
	s.mux.HandleFunc("POST /api/campaigns/{id}/stages/{stage}/recruit", s.withPlayer(s.handleRecruit))

	s.mux.HandleFunc("GET /api/battles", s.withPlayer(s.handleHistory))
	s.mux.HandleFunc("GET /api/battles/{id}", s.withPlayer(s.handleBattle))
	s.mux.HandleFunc("POST /api/battles/{id}/abilities", s.withPlayer(s.handleAbility))
	s.mux.HandleFunc("POST /api/battles/{id}/end-turn", s.withPlayer(s.handleEndTurn))
}

// Handler returns the mux wrapped in logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return recoverPanics(logRequests(s.mux))
}

type playerHandler func(w http.ResponseWriter, r *http.Request, playerID string)

func (s *Server) withPlayer(h playerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(playerHeader)
		if id == "" {
			writeError(w, r, errNoPlayer)
			return
		}
		h(w, r, id)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "battles": s.battles.Count()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"player", r.Header.Get(playerHeader),
			"duration", time.Since(start))
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
