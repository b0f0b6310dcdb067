// Package handler implements the HTTP control surface of the sync daemon.
// All handlers are methods on Server. Methods are split into files by concern
// (health.go, sync.go, trip.go) but share the Server struct so they can reach
// its dependencies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripcraft/tripsync/internal/domain"
	"github.com/tripcraft/tripsync/internal/sync"
)

// Enginer defines the sync operations the handler depends on. Defining the
// interface here (in the consumer package) follows the Go convention:
// "accept interfaces, return concrete types". It lets handler tests inject a
// mock without a database or a remote service.
type Enginer interface {
	TriggerSync(ctx context.Context, userID uuid.UUID) (sync.Summary, error)
}

// TripReader is the read-only slice of the trip store the handler needs.
type TripReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Trip, error)
	Stats(ctx context.Context, userID uuid.UUID) (domain.StoreStats, error)
}

// CheckpointReader exposes the pull checkpoint for status reporting.
type CheckpointReader interface {
	Get(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// Server holds the handler dependencies for all endpoints.
type Server struct {
	engine      Enginer
	trips       TripReader
	checkpoints CheckpointReader
}

// NewServer constructs the Server with all its dependencies.
func NewServer(engine Enginer, trips TripReader, checkpoints CheckpointReader) *Server {
	return &Server{engine: engine, trips: trips, checkpoints: checkpoints}
}

// Routes registers every endpoint on a fresh chi router. Cross-cutting
// middleware (logging, CORS, body limits) is attached by the caller so tests
// can exercise routes in isolation.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sync/{userID}", s.TriggerSync)
		r.Get("/sync/{userID}/status", s.GetSyncStatus)
		r.Get("/trips", s.ListTrips)
		r.Get("/trips/{tripID}", s.GetTrip)
	})

	return r
}

// userIDParam parses the {userID} URL parameter, writing a validation error
// response and returning false when it is not a UUID.
func (s *Server) userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "user id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
