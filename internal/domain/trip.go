// Package domain contains the core data types for the tripsync engine.
// This package has zero external dependencies beyond uuid and is imported
// by every other internal package (repo, remote, sync, handler).
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncState describes where a trip sits in its synchronization lifecycle.
// It is derived from the sync flags rather than stored, so it can never
// drift from the underlying record.
type SyncState string

const (
	// StateNew means the trip was created locally and has never been pushed.
	StateNew SyncState = "new"
	// StatePendingPush means the trip has local edits the remote has not seen.
	StatePendingPush SyncState = "pending_push"
	// StateSynced means the last known remote snapshot equals local content.
	StateSynced SyncState = "synced"
	// StateDeleted means the trip is tombstoned and awaiting deletion
	// propagation to the remote before it is purged locally.
	StateDeleted SyncState = "deleted"
)

// Trip is the unit of synchronization. It is created locally with a
// client-generated ID and acquires a ServerID on its first successful push.
//
// The JSON tags define the wire shape exchanged with the remote trip
// service (snake_case, ISO-8601 timestamps). Missing optional fields
// decode to nil pointers or empty slices, never to an error.
type Trip struct {
	// ID is client-generated, globally unique, and immutable for the
	// record's lifetime. It is the local identity of the trip and is
	// independent of ServerID.
	ID uuid.UUID `json:"id"`

	// ServerID is assigned by the remote service on first successful push.
	// Once set it never changes. nil means the trip has never been pushed.
	ServerID *string `json:"server_id,omitempty"`

	UserID      uuid.UUID `json:"user_id"`
	Title       *string   `json:"title,omitempty"`
	Destination string    `json:"destination"`

	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	TravelStyle *string    `json:"travel_style,omitempty"`
	BudgetTier  *string    `json:"budget_tier,omitempty"`

	// Preferences holds free-form trip preferences (interests, dietary
	// constraints, pace). Keys and values are opaque to the sync engine.
	Preferences map[string]string `json:"preferences,omitempty"`

	TotalBudgetEstimate float64 `json:"total_budget_estimate"`

	// Days is the ordered itinerary. Days are owned exclusively by the
	// trip; they have no independent lifecycle or sync state.
	Days []Day `json:"days,omitempty"`

	Notes       []Note       `json:"notes,omitempty"`
	BudgetItems []BudgetItem `json:"budget_items,omitempty"`
	LocalTips   []string     `json:"local_tips,omitempty"`

	// IsSynced is the dirty flag: true iff the last known remote snapshot
	// equals this local content. Any local mutation clears it.
	IsSynced bool `json:"is_synced"`

	// LocalUpdatedAt strictly advances on every local mutation and is the
	// local side of last-write-wins conflict resolution.
	LocalUpdatedAt time.Time `json:"local_updated_at"`

	CreatedAt time.Time `json:"created_at"`

	// DeletedAt marks the trip as a tombstone. Tombstones survive for one
	// sync pass so the deletion can propagate to the remote, then are purged.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Day is one day of an itinerary. DayIndex values are unique within a trip
// and define ordering; activities are ordered positionally within the day.
type Day struct {
	DayIndex   int        `json:"day_index"`
	Date       string     `json:"date,omitempty"`
	Summary    string     `json:"summary,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
}

// Activity is a single planned item within a day.
type Activity struct {
	Time          string   `json:"time,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Location      *string  `json:"location,omitempty"`
	EstimatedCost *float64 `json:"estimated_cost,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
	Completed     bool     `json:"completed"`
}

// Note is a free-form user note attached to a trip.
type Note struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// BudgetItem is a single budget line attached to a trip.
type BudgetItem struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Note     *string `json:"note,omitempty"`
}

// NewTrip creates a trip in state NEW: client-generated ID, no ServerID,
// dirty, with CreatedAt and LocalUpdatedAt set to now (UTC).
func NewTrip(userID uuid.UUID, destination string, now time.Time) Trip {
	now = now.UTC()
	return Trip{
		ID:             uuid.New(),
		UserID:         userID,
		Destination:    destination,
		IsSynced:       false,
		LocalUpdatedAt: now,
		CreatedAt:      now,
	}
}

// MarkModified records a local mutation: clears the synced flag and
// advances LocalUpdatedAt. The timestamp is monotonic — if the supplied
// clock reads at or before the previous value (clock skew, two edits
// within the same tick), the previous value is nudged forward by a
// nanosecond so LocalUpdatedAt is always strictly greater than before.
func (t *Trip) MarkModified(now time.Time) {
	now = now.UTC()
	if !now.After(t.LocalUpdatedAt) {
		now = t.LocalUpdatedAt.Add(time.Nanosecond)
	}
	t.IsSynced = false
	t.LocalUpdatedAt = now
}

// MarkSynced records a successful push. It sets exactly ServerID and
// IsSynced; every other field, including LocalUpdatedAt, is left untouched
// so that the local content still compares equal to the pushed snapshot.
func (t *Trip) MarkSynced(serverID string) {
	t.ServerID = &serverID
	t.IsSynced = true
}

// MarkDeleted tombstones the trip. The tombstone is itself a local
// mutation, so the trip becomes dirty and is picked up by the next push
// phase, which propagates the deletion before purging the record.
func (t *Trip) MarkDeleted(now time.Time) {
	now = now.UTC()
	t.DeletedAt = &now
	t.MarkModified(now)
}

// State derives the trip's sync lifecycle state from its flags.
func (t Trip) State() SyncState {
	switch {
	case t.DeletedAt != nil:
		return StateDeleted
	case t.IsSynced:
		return StateSynced
	case t.ServerID == nil:
		return StateNew
	default:
		return StatePendingPush
	}
}

// Clone returns a deep copy of the trip. The engine clones before merging
// so that resolver output never aliases slices held by the store or by
// another goroutine's copy.
func (t Trip) Clone() Trip {
	out := t

	out.ServerID = clonePtr(t.ServerID)
	out.Title = clonePtr(t.Title)
	out.StartDate = clonePtr(t.StartDate)
	out.EndDate = clonePtr(t.EndDate)
	out.TravelStyle = clonePtr(t.TravelStyle)
	out.BudgetTier = clonePtr(t.BudgetTier)
	out.DeletedAt = clonePtr(t.DeletedAt)

	if t.Preferences != nil {
		out.Preferences = make(map[string]string, len(t.Preferences))
		for k, v := range t.Preferences {
			out.Preferences[k] = v
		}
	}

	if t.Days != nil {
		out.Days = make([]Day, len(t.Days))
		for i, d := range t.Days {
			nd := d
			if d.Activities != nil {
				nd.Activities = make([]Activity, len(d.Activities))
				for j, a := range d.Activities {
					na := a
					na.Location = clonePtr(a.Location)
					na.EstimatedCost = clonePtr(a.EstimatedCost)
					na.Notes = clonePtr(a.Notes)
					nd.Activities[j] = na
				}
			}
			out.Days[i] = nd
		}
	}

	if t.Notes != nil {
		out.Notes = append([]Note(nil), t.Notes...)
	}
	if t.BudgetItems != nil {
		out.BudgetItems = make([]BudgetItem, len(t.BudgetItems))
		for i, b := range t.BudgetItems {
			nb := b
			nb.Note = clonePtr(b.Note)
			out.BudgetItems[i] = nb
		}
	}
	if t.LocalTips != nil {
		out.LocalTips = append([]string(nil), t.LocalTips...)
	}

	return out
}

// Validate enforces the structural rules the engine relies on:
//   - ID and UserID must be set.
//   - Destination must be non-empty (whitespace-only is rejected).
//   - Day indexes must be unique within the trip.
//
// Returns an error wrapping ErrValidation on the first violation.
func (t Trip) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if t.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if strings.TrimSpace(t.Destination) == "" {
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	seen := make(map[int]bool, len(t.Days))
	for _, d := range t.Days {
		if seen[d.DayIndex] {
			return fmt.Errorf("%w: duplicate day_index %d", ErrValidation, d.DayIndex)
		}
		seen[d.DayIndex] = true
	}
	return nil
}

// StoreStats is a storage-statistics snapshot for one user's trips.
type StoreStats struct {
	Total    int `json:"total"`
	Unsynced int `json:"unsynced"`
	Deleted  int `json:"deleted"`
}

// clonePtr returns a copy of the pointed-to value, or nil for nil input.
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
