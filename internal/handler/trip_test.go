package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcraft/tripsync/internal/domain"
)

func TestListTrips_returnsUserTrips(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	trips := &mockTripReader{
		listByUser: func(_ context.Context, got uuid.UUID) ([]domain.Trip, error) {
			assert.Equal(t, userID, got)
			return []domain.Trip{domain.NewTrip(userID, "Lisbon", now)}, nil
		},
	}
	h := newRouter(nil, trips, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trips?user_id="+userID.String(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body []domain.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "Lisbon", body[0].Destination)
}

func TestListTrips_emptyListNotNull(t *testing.T) {
	trips := &mockTripReader{
		listByUser: func(context.Context, uuid.UUID) ([]domain.Trip, error) { return nil, nil },
	}
	h := newRouter(nil, trips, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trips?user_id="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "empty result is [] not null")
}

func TestListTrips_missingUserID(t *testing.T) {
	h := newRouter(nil, &mockTripReader{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trips", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec))
}

func TestGetTrip_found(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	trip := domain.NewTrip(uuid.New(), "Porto", now)
	trips := &mockTripReader{
		getByID: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
			assert.Equal(t, trip.ID, id)
			return trip, nil
		},
	}
	h := newRouter(nil, trips, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trips/"+trip.ID.String(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body domain.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, trip.ID, body.ID)
	assert.Equal(t, "Porto", body.Destination)
}

func TestGetTrip_notFound(t *testing.T) {
	trips := &mockTripReader{
		getByID: func(context.Context, uuid.UUID) (domain.Trip, error) {
			return domain.Trip{}, domain.ErrNotFound
		},
	}
	h := newRouter(nil, trips, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trips/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec))
}
