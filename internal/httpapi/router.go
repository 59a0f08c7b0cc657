// Package httpapi is the C3 wire-protocol layer (spec §6.1): a chi
// router exposing one authenticated POST /sync endpoint plus an
// unauthenticated health check, adapted from the teacher's much larger
// internal/httpapi/router.go (which fans out to per-entity REST + sync
// routes behind tenant resolution, rate limiting, and epoch checks — all
// out of this spec's scope; only the single /sync endpoint survives).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/notesync/core/internal/authgw"
	"github.com/notesync/core/internal/synctx"
)

// Server holds the dependencies the router wires into handlers, mirroring
// the teacher's Server struct shape (dependencies as fields, Routes
// builds the handler tree).
type Server struct {
	Transactor *synctx.Transactor
	Auth       authgw.Config
}

// Routes builds the full handler tree: chi's standard middleware stack,
// this package's correlation/logging middleware, an unauthenticated
// health check, and an authenticated /sync route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(RequestLogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(authgw.Middleware(s.Auth))
		r.Post("/sync", s.PostSync)
	})

	return r
}

// HealthCheck is an unauthenticated liveness probe.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
