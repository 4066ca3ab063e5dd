// Package api provides the HTTP server for the reward engine.
// It exposes the event intake endpoints plus read APIs for user progress,
// missions, badges, the catalog, and community aggregates.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reloop-eco/reloop/internal/app/engine"
	"github.com/reloop-eco/reloop/internal/app/notify"
	"github.com/reloop-eco/reloop/internal/domain"
	"github.com/reloop-eco/reloop/internal/health"
	"github.com/reloop-eco/reloop/internal/infra/sqlite"
)

// Server is the reloop HTTP API server.
type Server struct {
	engine         *engine.Engine
	db             *sqlite.DB
	catalog        *domain.Catalog
	notifications  *notify.Service
	classifier     domain.Classifier
	checker        *health.Checker
	metricsEnabled bool
}

// NewServer creates an API server over the engine and its stores.
func NewServer(eng *engine.Engine, db *sqlite.DB, cat *domain.Catalog) *Server {
	return &Server{engine: eng, db: db, catalog: cat}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetNotifications wires the notification read/ack endpoints.
func (s *Server) SetNotifications(n *notify.Service) { s.notifications = n }

// SetClassifier wires the POST /api/classify endpoint.
func (s *Server) SetClassifier(c domain.Classifier) { s.classifier = c }

// SetHealthChecker wires detailed statuses into GET /health.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.handleRegisterUser)
		r.Post("/submissions", s.handleSubmission)
		r.Post("/actions", s.handleSocialAction)
		r.Post("/classify", s.handleClassify)

		r.Get("/missions", s.handleListMissions)
		r.Get("/missions/{id}", s.handleGetMission)
		r.Post("/missions/{id}/join", s.handleJoinMission)

		r.Get("/users/{id}/summary", s.handleUserSummary)
		r.Get("/users/{id}/badges", s.handleUserBadges)
		r.Get("/users/{id}/history", s.handleUserHistory)
		r.Get("/users/{id}/notifications", s.handleUserNotifications)
		r.Post("/notifications/{id}/shown", s.handleNotificationShown)

		r.Get("/catalog/categories", s.handleCategories)
		r.Get("/catalog/badges", s.handleBadgeCatalog)

		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/impact", s.handleImpact)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrUnknownSocialAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrMissionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrMissionFull),
		errors.Is(err, domain.ErrMissionAlreadyJoined),
		errors.Is(err, domain.ErrMissionNotJoinable),
		errors.Is(err, domain.ErrConflictExhausted),
		errors.Is(err, domain.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
