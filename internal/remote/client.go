// Package remote implements the HTTP client for the remote trip service.
// It owns the wire shapes (snake_case JSON, ISO-8601 timestamps) and the
// mapping from transport and HTTP failures onto the error taxonomy the
// retry scheduler acts on. No retry or merge policy lives here.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tripcraft/tripsync/internal/domain"
)

// PushResult is the remote's acknowledgement of a push: the server-assigned
// ID and the server-side update timestamp of the stored record.
type PushResult struct {
	ServerID  string    `json:"server_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemoteTrip is one changed record returned by the pull endpoint. It mirrors
// the trip wire shape plus the server-side bookkeeping fields. The remote
// echoes the client id of records it first received from this device, which
// the engine uses as a matching fallback before a ServerID exists locally.
type RemoteTrip struct {
	ID                  uuid.UUID           `json:"id"`
	ServerID            string              `json:"server_id"`
	UserID              uuid.UUID           `json:"user_id"`
	Title               *string             `json:"title,omitempty"`
	Destination         string              `json:"destination"`
	StartDate           *time.Time          `json:"start_date,omitempty"`
	EndDate             *time.Time          `json:"end_date,omitempty"`
	TravelStyle         *string             `json:"travel_style,omitempty"`
	BudgetTier          *string             `json:"budget_tier,omitempty"`
	Preferences         map[string]string   `json:"preferences,omitempty"`
	TotalBudgetEstimate float64             `json:"total_budget_estimate"`
	Days                []domain.Day        `json:"days,omitempty"`
	Notes               []domain.Note       `json:"notes,omitempty"`
	BudgetItems         []domain.BudgetItem `json:"budget_items,omitempty"`
	LocalTips           []string            `json:"local_tips,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	IsDeleted           bool                `json:"is_deleted"`
}

// Trip materializes the remote record as a local trip in state SYNCED.
// localID preserves the existing local identity when the record already
// exists on this device; pass uuid.Nil for records first seen via pull,
// in which case the remote-echoed client id (or a fresh one) is used.
func (rt RemoteTrip) Trip(localID uuid.UUID) domain.Trip {
	id := localID
	if id == uuid.Nil {
		id = rt.ID
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	serverID := rt.ServerID
	return domain.Trip{
		ID:                  id,
		ServerID:            &serverID,
		UserID:              rt.UserID,
		Title:               rt.Title,
		Destination:         rt.Destination,
		StartDate:           rt.StartDate,
		EndDate:             rt.EndDate,
		TravelStyle:         rt.TravelStyle,
		BudgetTier:          rt.BudgetTier,
		Preferences:         rt.Preferences,
		TotalBudgetEstimate: rt.TotalBudgetEstimate,
		Days:                rt.Days,
		Notes:               rt.Notes,
		BudgetItems:         rt.BudgetItems,
		LocalTips:           rt.LocalTips,
		IsSynced:            true,
		LocalUpdatedAt:      rt.UpdatedAt,
		CreatedAt:           rt.CreatedAt,
	}
}

// Client talks to the remote trip service. It is safe for concurrent use;
// the push phase calls it from multiple workers.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialProvider
}

// NewClient constructs a Client for the service at baseURL (no trailing
// slash). Per-attempt timeouts are enforced by the caller through the
// request context, so the underlying http.Client carries none of its own.
func NewClient(baseURL string, creds CredentialProvider) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		creds:   creds,
	}
}

// Push upserts one trip on the remote service. The operation is idempotent:
// the remote keys the upsert by the client id on first submission and by
// server_id thereafter, so re-sending after an ambiguous failure cannot
// create a duplicate. Tombstoned trips are pushed with is_deleted set.
func (c *Client) Push(ctx context.Context, trip domain.Trip) (PushResult, error) {
	body := pushRequest{Trip: trip, IsDeleted: trip.DeletedAt != nil}

	var result PushResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/trips/push", nil, body, &result); err != nil {
		return PushResult{}, fmt.Errorf("remote.Client.Push: %w", err)
	}
	return result, nil
}

// Pull returns the user's records changed on the remote strictly after
// since. A zero since requests the full history (first sync).
func (c *Client) Pull(ctx context.Context, userID uuid.UUID, since time.Time) ([]RemoteTrip, error) {
	query := url.Values{"user_id": {userID.String()}}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}

	var resp pullResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/trips/changes", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("remote.Client.Pull: %w", err)
	}
	return resp.Trips, nil
}

// pushRequest wraps the trip payload with the deletion tombstone flag.
type pushRequest struct {
	Trip      domain.Trip `json:"trip"`
	IsDeleted bool        `json:"is_deleted"`
}

type pullResponse struct {
	Trips []RemoteTrip `json:"trips"`
}

// errorBody is the remote's error envelope; body parsing is best-effort
// because classification depends on the status code, not the message.
type errorBody struct {
	Error string `json:"error"`
}

// do executes one authenticated JSON request and decodes the response into
// out. All failures come back classified so the retry scheduler and engine
// can act on the kind without inspecting transport details.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return domain.NewSyncError(domain.KindAuth, 0, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return domain.NewSyncError(domain.KindValidation, 0, fmt.Errorf("encode request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return domain.NewSyncError(domain.KindValidation, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// A malformed success body is treated like a server fault: the
			// request may have been applied, and idempotent retry is safe.
			return domain.NewSyncError(domain.KindServer, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// classifyTransport maps errors raised before any response arrived.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewSyncError(domain.KindTimeout, 0, err)
	}
	if errors.Is(err, context.Canceled) {
		// Cancellation is not a remote fault; propagate it unclassified so
		// the retry scheduler stops instead of retrying.
		return err
	}
	return domain.NewSyncError(domain.KindNetwork, 0, err)
}

// classifyStatus maps HTTP error responses onto the taxonomy:
// 401/403 auth, 5xx server, anything else in 4xx validation.
func classifyStatus(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	err := errors.New(msg)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewSyncError(domain.KindAuth, resp.StatusCode, err)
	case resp.StatusCode >= 500:
		return domain.NewSyncError(domain.KindServer, resp.StatusCode, err)
	default:
		return domain.NewSyncError(domain.KindValidation, resp.StatusCode, err)
	}
}
