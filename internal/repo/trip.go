// Package repo contains all database access logic for the tripsync engine.
// It implements the local trip store contract the sync engine consumes:
// point lookups, filtered scans ("unsynced", "modified-after"), and atomic
// per-record writes. No sync policy lives here — only SQL and type mapping.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tripcraft/tripsync/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripStore defines the local persistence operations the sync engine depends
// on. The engine depends on this interface, not the concrete Postgres
// implementation, which allows it to be unit-tested with a mock.
//
// All operations are durable and atomic at single-record granularity. The
// engine performs no multi-record transactions — each trip is reconciled
// independently, so Bulk variants are conveniences, not transactions.
type TripStore interface {
	// GetByID retrieves a trip by its client-generated ID.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetByServerID retrieves a trip by the server-assigned ID, used during
	// the pull phase to match remote records to local ones.
	// Returns domain.ErrNotFound when no local trip carries that server ID.
	GetByServerID(ctx context.Context, serverID string) (domain.Trip, error)

	// ListByUser returns all trips for a user, most recently edited first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Trip, error)

	// ListUnsynced returns the user's trips whose dirty flag is set —
	// the push-phase work list. Tombstoned trips are included so deletions
	// propagate.
	ListUnsynced(ctx context.Context, userID uuid.UUID) ([]domain.Trip, error)

	// ListModifiedAfter returns the user's trips locally modified strictly
	// after t.
	ListModifiedAfter(ctx context.Context, userID uuid.UUID, t time.Time) ([]domain.Trip, error)

	// Upsert writes the trip as a single atomic record write, inserting or
	// replacing by client ID.
	Upsert(ctx context.Context, trip domain.Trip) error

	// ConfirmPush records a successful push: it sets serverID and the
	// synced flag in one conditional write that only applies while
	// local_updated_at still equals pushedAt, the timestamp of the snapshot
	// that was sent. When the record was modified (or removed) in the
	// meantime, only the server identity is recorded, the record stays
	// dirty, and false is returned. Content columns are never touched.
	ConfirmPush(ctx context.Context, id uuid.UUID, serverID string, pushedAt time.Time) (bool, error)

	// Delete removes a trip by client ID.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// BulkUpsert writes each trip in turn. The first failure stops the
	// batch and is returned; earlier writes remain durable.
	BulkUpsert(ctx context.Context, trips []domain.Trip) error

	// BulkDelete removes each listed trip, ignoring ones already gone.
	BulkDelete(ctx context.Context, ids []uuid.UUID) error

	// Stats returns record counts for the user's trips.
	Stats(ctx context.Context, userID uuid.UUID) (domain.StoreStats, error)

	// UserIDs returns the distinct users with at least one local trip.
	// The background sync loop uses this to decide whom to sync.
	UserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// pgTripStore is the Postgres implementation of TripStore.
type pgTripStore struct {
	db db
}

// NewTripStore constructs a TripStore backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripStore(db db) TripStore {
	return &pgTripStore{db: db}
}

// tripColumns is the canonical select list; scanTrip must stay in step with it.
const tripColumns = `id, user_id, server_id, title, destination, start_date, end_date,
	travel_style, budget_tier, preferences, total_budget_estimate,
	days, notes, budget_items, local_tips,
	is_synced, local_updated_at, created_at, deleted_at`

// GetByID retrieves a trip by its client-generated primary key.
func (r *pgTripStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	trip, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripStore.GetByID: %w", err)
	}
	return trip, nil
}

// GetByServerID retrieves a trip by its server-assigned ID.
func (r *pgTripStore) GetByServerID(ctx context.Context, serverID string) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE server_id = @server_id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"server_id": serverID})
	trip, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripStore.GetByServerID: %w", err)
	}
	return trip, nil
}

// ListByUser returns all of a user's trips ordered by local_updated_at descending.
func (r *pgTripStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips
		WHERE user_id = @user_id
		ORDER BY local_updated_at DESC`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripStore.ListByUser: %w", err)
	}
	return trips, nil
}

// ListUnsynced returns the push-phase work list: every trip of the user with
// the dirty flag set, tombstones included.
func (r *pgTripStore) ListUnsynced(ctx context.Context, userID uuid.UUID) ([]domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips
		WHERE user_id = @user_id AND is_synced = FALSE
		ORDER BY local_updated_at ASC`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripStore.ListUnsynced: %w", err)
	}
	return trips, nil
}

// ListModifiedAfter returns trips locally modified strictly after t.
func (r *pgTripStore) ListModifiedAfter(ctx context.Context, userID uuid.UUID, t time.Time) ([]domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips
		WHERE user_id = @user_id AND local_updated_at > @after
		ORDER BY local_updated_at ASC`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"user_id": userID, "after": t})
	if err != nil {
		return nil, fmt.Errorf("repo.TripStore.ListModifiedAfter: %w", err)
	}
	return trips, nil
}

// Upsert inserts or replaces a trip by client ID in one statement, which is
// the store's atomicity guarantee: a reader sees either the old record or
// the new one, never a partial write.
func (r *pgTripStore) Upsert(ctx context.Context, trip domain.Trip) error {
	const q = `
		INSERT INTO trips (id, user_id, server_id, title, destination, start_date, end_date,
			travel_style, budget_tier, preferences, total_budget_estimate,
			days, notes, budget_items, local_tips,
			is_synced, local_updated_at, created_at, deleted_at)
		VALUES (@id, @user_id, @server_id, @title, @destination, @start_date, @end_date,
			@travel_style, @budget_tier, @preferences, @total_budget_estimate,
			@days, @notes, @budget_items, @local_tips,
			@is_synced, @local_updated_at, @created_at, @deleted_at)
		ON CONFLICT (id) DO UPDATE SET
			server_id             = EXCLUDED.server_id,
			title                 = EXCLUDED.title,
			destination           = EXCLUDED.destination,
			start_date            = EXCLUDED.start_date,
			end_date              = EXCLUDED.end_date,
			travel_style          = EXCLUDED.travel_style,
			budget_tier           = EXCLUDED.budget_tier,
			preferences           = EXCLUDED.preferences,
			total_budget_estimate = EXCLUDED.total_budget_estimate,
			days                  = EXCLUDED.days,
			notes                 = EXCLUDED.notes,
			budget_items          = EXCLUDED.budget_items,
			local_tips            = EXCLUDED.local_tips,
			is_synced             = EXCLUDED.is_synced,
			local_updated_at      = EXCLUDED.local_updated_at,
			deleted_at            = EXCLUDED.deleted_at`

	args, err := tripArgs(trip)
	if err != nil {
		return fmt.Errorf("repo.TripStore.Upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.TripStore.Upsert: %w", err)
	}
	return nil
}

// ConfirmPush marks a trip synced iff it is unchanged since the pushed
// snapshot. The timestamp guard runs inside a single UPDATE, so an edit
// racing the push can never have its content or dirty flag clobbered.
func (r *pgTripStore) ConfirmPush(ctx context.Context, id uuid.UUID, serverID string, pushedAt time.Time) (bool, error) {
	const q = `
		UPDATE trips
		SET server_id = @server_id, is_synced = TRUE
		WHERE id = @id AND local_updated_at = @pushed_at`

	args := pgx.NamedArgs{"id": id, "server_id": serverID, "pushed_at": pushedAt}
	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return false, fmt.Errorf("repo.TripStore.ConfirmPush: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// The record moved on (or vanished) while the push was in flight. Keep
	// it dirty but record the server identity so the re-send updates the
	// same remote record instead of creating a new one.
	const fallback = `UPDATE trips SET server_id = @server_id WHERE id = @id`
	if _, err := r.db.Exec(ctx, fallback, pgx.NamedArgs{"id": id, "server_id": serverID}); err != nil {
		return false, fmt.Errorf("repo.TripStore.ConfirmPush: %w", err)
	}
	return false, nil
}

// Delete removes a trip by client ID.
func (r *pgTripStore) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripStore.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripStore.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// BulkUpsert writes each trip in turn via Upsert. Not transactional: the
// engine reconciles trips independently and re-running a partially applied
// batch is safe because Upsert is idempotent.
func (r *pgTripStore) BulkUpsert(ctx context.Context, trips []domain.Trip) error {
	for _, trip := range trips {
		if err := r.Upsert(ctx, trip); err != nil {
			return fmt.Errorf("repo.TripStore.BulkUpsert: trip %s: %w", trip.ID, err)
		}
	}
	return nil
}

// BulkDelete removes each listed trip, treating already-missing records as
// success so the purge step after deletion propagation is idempotent.
func (r *pgTripStore) BulkDelete(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("repo.TripStore.BulkDelete: trip %s: %w", id, err)
		}
	}
	return nil
}

// Stats returns total, unsynced, and tombstoned record counts for the user.
func (r *pgTripStore) Stats(ctx context.Context, userID uuid.UUID) (domain.StoreStats, error) {
	const q = `
		SELECT count(*),
		       count(*) FILTER (WHERE is_synced = FALSE),
		       count(*) FILTER (WHERE deleted_at IS NOT NULL)
		FROM trips
		WHERE user_id = @user_id`

	var stats domain.StoreStats
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err := row.Scan(&stats.Total, &stats.Unsynced, &stats.Deleted); err != nil {
		return domain.StoreStats{}, fmt.Errorf("repo.TripStore.Stats: %w", err)
	}
	return stats, nil
}

// UserIDs returns the distinct users with at least one local trip.
func (r *pgTripStore) UserIDs(ctx context.Context) ([]uuid.UUID, error) {
	const q = `SELECT DISTINCT user_id FROM trips ORDER BY user_id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.TripStore.UserIDs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw pgtype.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("repo.TripStore.UserIDs: scan: %w", err)
		}
		ids = append(ids, uuid.UUID(raw.Bytes))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripStore.UserIDs: rows: %w", err)
	}
	return ids, nil
}

// queryTrips runs a multi-row trip query and scans all results.
func (r *pgTripStore) queryTrips(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return trips, nil
}

// tripArgs maps a domain.Trip onto named SQL arguments, marshalling the
// nested sequences to JSONB.
func tripArgs(trip domain.Trip) (pgx.NamedArgs, error) {
	days, err := json.Marshal(trip.Days)
	if err != nil {
		return nil, fmt.Errorf("marshal days: %w", err)
	}
	notes, err := json.Marshal(trip.Notes)
	if err != nil {
		return nil, fmt.Errorf("marshal notes: %w", err)
	}
	budgetItems, err := json.Marshal(trip.BudgetItems)
	if err != nil {
		return nil, fmt.Errorf("marshal budget_items: %w", err)
	}
	localTips, err := json.Marshal(trip.LocalTips)
	if err != nil {
		return nil, fmt.Errorf("marshal local_tips: %w", err)
	}
	prefs, err := json.Marshal(trip.Preferences)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}

	return pgx.NamedArgs{
		"id":                    trip.ID,
		"user_id":               trip.UserID,
		"server_id":             trip.ServerID, // nil becomes NULL
		"title":                 trip.Title,
		"destination":           trip.Destination,
		"start_date":            trip.StartDate,
		"end_date":              trip.EndDate,
		"travel_style":          trip.TravelStyle,
		"budget_tier":           trip.BudgetTier,
		"preferences":           prefs,
		"total_budget_estimate": trip.TotalBudgetEstimate,
		"days":                  days,
		"notes":                 notes,
		"budget_items":          budgetItems,
		"local_tips":            localTips,
		"is_synced":             trip.IsSynced,
		"local_updated_at":      trip.LocalUpdatedAt,
		"created_at":            trip.CreatedAt,
		"deleted_at":            trip.DeletedAt,
	}, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanTrip to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID, nullable timestamp, and JSONB conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t           domain.Trip
		id          pgtype.UUID
		userID      pgtype.UUID
		startDate   pgtype.Timestamptz
		endDate     pgtype.Timestamptz
		deletedAt   pgtype.Timestamptz
		prefs       []byte
		days        []byte
		notes       []byte
		budgetItems []byte
		localTips   []byte
	)

	err := s.Scan(&id, &userID, &t.ServerID, &t.Title, &t.Destination,
		&startDate, &endDate, &t.TravelStyle, &t.BudgetTier,
		&prefs, &t.TotalBudgetEstimate,
		&days, &notes, &budgetItems, &localTips,
		&t.IsSynced, &t.LocalUpdatedAt, &t.CreatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.UserID = uuid.UUID(userID.Bytes)
	t.LocalUpdatedAt = t.LocalUpdatedAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()

	if startDate.Valid {
		v := startDate.Time.UTC()
		t.StartDate = &v
	}
	if endDate.Valid {
		v := endDate.Time.UTC()
		t.EndDate = &v
	}
	if deletedAt.Valid {
		v := deletedAt.Time.UTC()
		t.DeletedAt = &v
	}

	for _, col := range []struct {
		raw  []byte
		dest any
	}{
		{prefs, &t.Preferences},
		{days, &t.Days},
		{notes, &t.Notes},
		{budgetItems, &t.BudgetItems},
		{localTips, &t.LocalTips},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return domain.Trip{}, fmt.Errorf("unmarshal column: %w", err)
		}
	}

	return t, nil
}
