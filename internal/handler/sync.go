package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/tripcraft/tripsync/internal/domain"
)

// syncStatusResponse is the body of GET /api/v1/sync/{userID}/status.
// LastPulledAt is null until the first successful pull.
type syncStatusResponse struct {
	LastPulledAt *time.Time        `json:"last_pulled_at"`
	Stats        domain.StoreStats `json:"stats"`
}

// TriggerSync handles POST /api/v1/sync/{userID}.
// It runs one sync pass synchronously and returns its summary. A pass
// already in flight for the user yields 409 rather than queuing a second one.
func (s *Server) TriggerSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	summary, err := s.engine.TriggerSync(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync_in_progress", "a sync pass is already running for this user")
			return
		}
		writeSyncError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetSyncStatus handles GET /api/v1/sync/{userID}/status.
// It reports the pull checkpoint and local store counts for the user.
func (s *Server) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	checkpoint, err := s.checkpoints.Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "reading sync checkpoint failed")
		return
	}

	stats, err := s.trips.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "reading store stats failed")
		return
	}

	resp := syncStatusResponse{Stats: stats}
	if !checkpoint.IsZero() {
		resp.LastPulledAt = &checkpoint
	}
	writeJSON(w, http.StatusOK, resp)
}
