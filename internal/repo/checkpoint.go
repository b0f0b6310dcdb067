package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CheckpointStore persists the per-user pull checkpoint: the latest remote
// update timestamp fully incorporated locally. The engine bounds incremental
// pulls with it and only advances it after an entire pull batch is durably
// written, so a crash mid-pull re-fetches rather than skips records.
type CheckpointStore interface {
	// Get returns the user's checkpoint, or the zero time when the user has
	// never completed a pull. The zero time makes the first pull a full pull.
	Get(ctx context.Context, userID uuid.UUID) (time.Time, error)

	// Set records the checkpoint, overwriting any previous value.
	Set(ctx context.Context, userID uuid.UUID, t time.Time) error
}

// pgCheckpointStore is the Postgres implementation of CheckpointStore.
type pgCheckpointStore struct {
	db db
}

// NewCheckpointStore constructs a CheckpointStore backed by the provided db
// connection.
func NewCheckpointStore(db db) CheckpointStore {
	return &pgCheckpointStore{db: db}
}

// Get returns the stored checkpoint for the user. A missing row is not an
// error — it means "never pulled" and maps to the zero time.
func (r *pgCheckpointStore) Get(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	const q = `SELECT last_pulled_at FROM sync_checkpoints WHERE user_id = @user_id`

	var t time.Time
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID}).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("repo.CheckpointStore.Get: %w", err)
	}
	return t.UTC(), nil
}

// Set upserts the checkpoint row for the user.
func (r *pgCheckpointStore) Set(ctx context.Context, userID uuid.UUID, t time.Time) error {
	const q = `
		INSERT INTO sync_checkpoints (user_id, last_pulled_at, updated_at)
		VALUES (@user_id, @last_pulled_at, now())
		ON CONFLICT (user_id) DO UPDATE SET
			last_pulled_at = EXCLUDED.last_pulled_at,
			updated_at     = now()`

	args := pgx.NamedArgs{"user_id": userID, "last_pulled_at": t.UTC()}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.CheckpointStore.Set: %w", err)
	}
	return nil
}
