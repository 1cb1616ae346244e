// Package server exposes the engine over HTTP: POST /api/check evaluates
// one request, POST /admin/reload rebuilds the engine from the data
// directory and publishes it atomically.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/engine"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

// Server holds the published engine and the data directory reloads read
// from.
type Server struct {
	store   *engine.Store
	dataDir string
	log     zerolog.Logger
}

// New wires the routes and returns the server.
func New(store *engine.Store, dataDir string, log zerolog.Logger) *Server {
	return &Server{store: store, dataDir: dataDir, log: log}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/check", s.handleCheck)
	r.Post("/admin/reload", s.handleReload)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	eng := s.store.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"bundles": len(eng.Catalog().Bundles),
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	var ctx tarif.Context
	if err := json.NewDecoder(r.Body).Decode(&ctx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":      "invalid request body: " + err.Error(),
			"request_id": requestID,
		})
		return
	}

	result := s.store.Current().Check(&ctx)
	result.RequestID = requestID

	s.log.Info().
		Str("request_id", requestID).
		Str("type", string(result.Type)).
		Int("services", len(ctx.Services)).
		Dur("duration", time.Since(start)).
		Msg("check handled")

	writeJSON(w, http.StatusOK, result)
}

// handleReload builds a complete new engine from the data directory and
// swaps it in. In-flight requests keep the engine they started with.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	cat, err := dataload.Load(s.dataDir, s.log)
	if err != nil {
		s.log.Error().Err(err).Msg("reload failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	eng := engine.New(cat, s.log)
	s.store.Swap(eng)

	s.log.Info().Int("bundles", len(cat.Bundles)).Msg("engine reloaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "reloaded",
		"bundles": len(cat.Bundles),
		"skipped": len(eng.Index().Skipped),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
