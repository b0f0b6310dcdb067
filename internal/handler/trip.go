package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripcraft/tripsync/internal/domain"
)

// ListTrips handles GET /api/v1/trips?user_id=<uuid>.
// It returns the user's local trips, tombstones included, most recently
// modified first.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "user_id query parameter must be a UUID")
		return
	}

	trips, err := s.trips.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "listing trips failed")
		return
	}
	if trips == nil {
		trips = []domain.Trip{}
	}

	writeJSON(w, http.StatusOK, trips)
}

// GetTrip handles GET /api/v1/trips/{tripID}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "trip id must be a UUID")
		return
	}

	trip, err := s.trips.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "trip not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "loading trip failed")
		return
	}

	writeJSON(w, http.StatusOK, trip)
}
