package handler

import (
	"encoding/json"
	"net/http"

	"github.com/tripcraft/tripsync/internal/domain"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON serializes v with the given status. Encoding failures are
// ignored; by the time Encode fails the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// writeSyncError maps a sync pass failure onto an HTTP status. Remote-side
// failures surface as 502 so callers can tell them apart from local faults.
func writeSyncError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindAuth:
		writeError(w, http.StatusBadGateway, "remote_auth_failed", "remote service rejected our credentials")
	case domain.KindNetwork, domain.KindTimeout, domain.KindServer:
		writeError(w, http.StatusBadGateway, "remote_unavailable", "remote service is unreachable")
	case domain.KindValidation:
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "sync pass failed")
	}
}
