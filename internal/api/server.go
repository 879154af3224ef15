// Package api exposes the arena over a JSON HTTP surface. It is a thin
// read layer over the controller plus two admin triggers; it owns no state.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"paper-arena/internal/arena"
	"paper-arena/internal/errors"
)

// adminSecretHeader carries the shared secret on admin requests.
const adminSecretHeader = "X-Admin-Secret"

// Server serves the arena API.
type Server struct {
	controller  *arena.Controller
	adminSecret string
	log         zerolog.Logger
	http        *http.Server
}

// New creates a Server listening on addr. An empty adminSecret disables
// the admin endpoints outright.
func New(addr, adminSecret string, controller *arena.Controller, logger zerolog.Logger) *Server {
	s := &Server{
		controller:  controller,
		adminSecret: adminSecret,
		log:         logger,
	}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/agents", s.handleAgents).Methods(http.MethodGet)
	api.HandleFunc("/agents/{key}", s.handleAgent).Methods(http.MethodGet)
	api.HandleFunc("/agents/{key}/memory", s.handleAgentMemory).Methods(http.MethodGet)
	api.HandleFunc("/agents/{key}/trades", s.handleAgentTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/competition", s.handleCompetition).Methods(http.MethodGet)
	api.HandleFunc("/graveyard", s.handleGraveyard).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/round", s.handleAdminRound).Methods(http.MethodPost)
	admin.HandleFunc("/eliminate", s.handleAdminEliminate).Methods(http.MethodPost)

	return r
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("api listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminSecret == "" {
			s.writeError(w, http.StatusForbidden, "admin endpoints disabled")
			return
		}
		got := r.Header.Get(adminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminSecret)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "bad admin secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.Leaderboard())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.AllAgents())
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	agent, err := s.controller.Agent(key)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	resp := map[string]any{"agent": agent}
	if p, err := s.controller.Ledger().Portfolio(key); err == nil {
		resp["portfolio"] = p
	}
	if perf, err := s.controller.Ledger().Performance(key); err == nil {
		resp["performance"] = perf
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentMemory(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if _, err := s.controller.Agent(key); err != nil {
		s.writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	s.writeJSON(w, http.StatusOK, s.controller.Memory().Summary(key))
}

func (s *Server) handleAgentTrades(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if _, err := s.controller.Agent(key); err != nil {
		s.writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	s.writeJSON(w, http.StatusOK, s.controller.Ledger().TradeHistory(key, limitParam(r, 50)))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.Ledger().AllTrades(limitParam(r, 100)))
}

func (s *Server) handleCompetition(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.CompetitionStatus())
}

func (s *Server) handleGraveyard(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.Graveyard())
}

func (s *Server) handleAdminRound(w http.ResponseWriter, r *http.Request) {
	report, err := s.controller.RunTradingRound(r.Context())
	if err != nil {
		if errors.Is(err, errors.ErrRoundInProgress) {
			s.writeError(w, http.StatusConflict, "cycle already in progress")
			return
		}
		s.log.Error().Err(err).Msg("admin round failed")
		s.writeError(w, http.StatusBadGateway, "round failed")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdminEliminate(w http.ResponseWriter, r *http.Request) {
	result, err := s.controller.RunElimination(r.Context())
	if err != nil {
		if errors.Is(err, errors.ErrRoundInProgress) {
			s.writeError(w, http.StatusConflict, "cycle already in progress")
			return
		}
		s.log.Error().Err(err).Msg("admin elimination failed")
		s.writeError(w, http.StatusInternalServerError, "elimination failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
