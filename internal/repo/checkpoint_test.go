package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcraft/tripsync/internal/repo"
	"github.com/tripcraft/tripsync/testutil"
)

func newTestCheckpoints(t *testing.T) repo.CheckpointStore {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return repo.NewCheckpointStore(tx)
}

func TestCheckpointStore_GetMissing(t *testing.T) {
	s := newTestCheckpoints(t)

	got, err := s.Get(context.Background(), uuid.New())

	require.NoError(t, err, "a missing checkpoint is not an error")
	assert.True(t, got.IsZero(), "first sync starts from the zero time")
}

func TestCheckpointStore_SetAndGet(t *testing.T) {
	s := newTestCheckpoints(t)
	ctx := context.Background()
	userID := uuid.New()

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, s.Set(ctx, userID, at))

	got, err := s.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func TestCheckpointStore_SetOverwrites(t *testing.T) {
	s := newTestCheckpoints(t)
	ctx := context.Background()
	userID := uuid.New()

	first := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	require.NoError(t, s.Set(ctx, userID, first))
	require.NoError(t, s.Set(ctx, userID, second))

	got, err := s.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.Equal(second))
}

func TestCheckpointStore_PerUserIsolation(t *testing.T) {
	s := newTestCheckpoints(t)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Set(ctx, a, at))

	got, err := s.Get(ctx, b)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "one user's checkpoint never leaks to another")
}
