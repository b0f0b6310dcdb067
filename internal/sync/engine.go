// Package sync implements the offline-first synchronization engine: the
// component that reconciles the locally mutable trip store with the remote
// trip service under unreliable connectivity.
//
// A sync pass is push-then-pull. The push phase sends every dirty local trip
// to the remote through the retry scheduler; the pull phase fetches remote
// changes since the per-user checkpoint, merges them through the conflict
// resolver, and advances the checkpoint once the whole batch is durably
// written. One trip's failure never aborts the batch; an auth failure aborts
// the phase and is reported alongside whatever partial progress was made.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tripcraft/tripsync/internal/domain"
	"github.com/tripcraft/tripsync/internal/remote"
	"github.com/tripcraft/tripsync/internal/repo"
)

// RemoteService defines the remote operations the engine depends on.
// *remote.Client satisfies it; engine tests inject a mock.
type RemoteService interface {
	Push(ctx context.Context, trip domain.Trip) (remote.PushResult, error)
	Pull(ctx context.Context, userID uuid.UUID, since time.Time) ([]remote.RemoteTrip, error)
}

// Summary reports the observable outcome of one sync pass.
type Summary struct {
	// Pushed counts local trips successfully sent to the remote.
	Pushed int `json:"pushed"`
	// Pulled counts remote records written into the local store.
	Pulled int `json:"pulled"`
	// Conflicts counts diverged records routed through the resolver.
	Conflicts int `json:"conflicts"`
	// ConflictsLocalWon and ConflictsRemoteWon break Conflicts down by the
	// side whose content prevailed. Remote deletions count as remote wins.
	ConflictsLocalWon  int `json:"conflicts_local_won"`
	ConflictsRemoteWon int `json:"conflicts_remote_won"`
	// Deleted counts records removed locally (propagated tombstones on
	// either side).
	Deleted int `json:"deleted"`
	// FailedIDs lists trips whose push failed terminally this pass. They
	// stay dirty and are picked up again next pass.
	FailedIDs []uuid.UUID `json:"failed_ids,omitempty"`
}

// Options holds the engine's tunables.
type Options struct {
	// Workers bounds push-phase parallelism. Values below 1 mean 1.
	Workers int
	// Interval is the period of the background sync loop driven by Run.
	// Zero or negative disables periodic syncing.
	Interval time.Duration
}

// Engine orchestrates sync passes. At most one pass runs per user at any
// time; a second trigger is rejected with domain.ErrSyncInProgress rather
// than queued. The in-flight set is the engine's only cross-call mutable
// state — everything else is mutated through the store's atomic writes.
type Engine struct {
	store       repo.TripStore
	checkpoints repo.CheckpointStore
	remote      RemoteService
	resolver    ConflictResolver
	retryer     Retryer
	log         *slog.Logger
	workers     int
	interval    time.Duration

	mu       stdsync.Mutex
	inFlight map[uuid.UUID]bool
}

// NewEngine constructs an Engine. If log is nil, slog.Default() is used.
func NewEngine(
	store repo.TripStore,
	checkpoints repo.CheckpointStore,
	rem RemoteService,
	resolver ConflictResolver,
	retryer Retryer,
	log *slog.Logger,
	opts Options,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		store:       store,
		checkpoints: checkpoints,
		remote:      rem,
		resolver:    resolver,
		retryer:     retryer,
		log:         log,
		workers:     workers,
		interval:    opts.Interval,
		inFlight:    make(map[uuid.UUID]bool),
	}
}

// TriggerSync runs one sync pass for the user and returns its summary.
//
// Returns domain.ErrSyncInProgress immediately when a pass for the same
// user is already running. On a phase-fatal error (auth failure,
// cancellation) the partial summary accumulated so far is returned together
// with the error; records not yet processed are left untouched for the next
// pass. The in-flight slot is released on every exit path.
func (e *Engine) TriggerSync(ctx context.Context, userID uuid.UUID) (Summary, error) {
	if !e.acquire(userID) {
		return Summary{}, domain.ErrSyncInProgress
	}
	defer e.release(userID)

	var summary Summary
	e.log.Info("sync pass started", "user_id", userID)

	if err := e.pushPhase(ctx, userID, &summary); err != nil {
		e.log.Warn("sync pass aborted during push",
			"user_id", userID, "pushed", summary.Pushed, "failed", len(summary.FailedIDs), "error", err)
		return summary, fmt.Errorf("sync.Engine.TriggerSync: push phase: %w", err)
	}

	if err := e.pullPhase(ctx, userID, &summary); err != nil {
		e.log.Warn("sync pass aborted during pull",
			"user_id", userID, "pulled", summary.Pulled, "error", err)
		return summary, fmt.Errorf("sync.Engine.TriggerSync: pull phase: %w", err)
	}

	e.log.Info("sync pass complete",
		"user_id", userID,
		"pushed", summary.Pushed,
		"pulled", summary.Pulled,
		"conflicts", summary.Conflicts,
		"deleted", summary.Deleted,
		"failed", len(summary.FailedIDs),
	)
	return summary, nil
}

// Run drives periodic background passes for every user present in the local
// store until ctx is cancelled. It does nothing when no interval is
// configured. Users whose pass is already running are skipped, not queued.
func (e *Engine) Run(ctx context.Context) {
	if e.interval <= 0 {
		return
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.syncAll(ctx)
		}
	}
}

// syncAll triggers one pass per known user, isolating failures per user.
func (e *Engine) syncAll(ctx context.Context) {
	users, err := e.store.UserIDs(ctx)
	if err != nil {
		e.log.Error("background sync: listing users failed", "error", err)
		return
	}
	for _, userID := range users {
		if _, err := e.TriggerSync(ctx, userID); err != nil {
			if errors.Is(err, domain.ErrSyncInProgress) {
				continue
			}
			e.log.Warn("background sync failed", "user_id", userID, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// pushPhase sends every dirty trip of the user to the remote with bounded
// parallelism. Per-record terminal failures are recorded in the summary and
// the batch continues; an auth failure or cancellation cancels the
// remaining workers and is returned as phase-fatal.
func (e *Engine) pushPhase(ctx context.Context, userID uuid.UUID, summary *Summary) error {
	trips, err := e.store.ListUnsynced(ctx, userID)
	if err != nil {
		return err
	}
	if len(trips) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var mu stdsync.Mutex
	for _, trip := range trips {
		g.Go(func() error {
			purged, err := e.pushOne(gctx, trip)
			if err == nil {
				mu.Lock()
				if purged {
					summary.Deleted++
				} else {
					summary.Pushed++
				}
				mu.Unlock()
				return nil
			}

			// Cancellation means this record was not processed at all;
			// leave it out of FailedIDs so the next pass treats it as
			// ordinary pending work. Auth failures abort the whole phase.
			if errors.Is(err, context.Canceled) || gctx.Err() != nil {
				return gctx.Err()
			}
			if domain.KindOf(err) == domain.KindAuth {
				return err
			}

			e.log.Warn("push failed", "trip_id", trip.ID, "kind", domain.KindOf(err), "error", err)
			mu.Lock()
			summary.FailedIDs = append(summary.FailedIDs, trip.ID)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// pushOne reconciles a single dirty trip with the remote. Tombstoned trips
// propagate their deletion and are then purged locally; live trips are
// pushed and then confirmed through a conditional store write keyed on the
// pushed snapshot's LocalUpdatedAt. The condition is what makes a local
// edit landing while the request is on the wire safe: the edited record
// keeps its dirty flag and content, gains only the server identity, and is
// re-sent on the next pass.
func (e *Engine) pushOne(ctx context.Context, trip domain.Trip) (purged bool, err error) {
	if trip.DeletedAt != nil {
		// A tombstone the remote never saw has nothing to propagate.
		if trip.ServerID != nil {
			err := e.retryer.Do(ctx, func(ctx context.Context) error {
				_, err := e.remote.Push(ctx, trip)
				return err
			})
			if err != nil {
				return false, err
			}
		}
		if err := e.store.Delete(ctx, trip.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		return true, nil
	}

	var result remote.PushResult
	err = e.retryer.Do(ctx, func(ctx context.Context) error {
		r, err := e.remote.Push(ctx, trip)
		if err == nil {
			result = r
		}
		return err
	})
	if err != nil {
		return false, err
	}

	synced, err := e.store.ConfirmPush(ctx, trip.ID, result.ServerID, trip.LocalUpdatedAt)
	if err != nil {
		return false, err
	}
	if !synced {
		e.log.Info("record changed during push; kept dirty for the next pass", "trip_id", trip.ID)
	}
	return false, nil
}

// pullPhase fetches remote changes since the checkpoint, merges them into
// the store sequentially, and advances the checkpoint to the maximum remote
// update time seen — but only after every record in the batch is durably
// written. A failure or cancellation mid-batch leaves the checkpoint
// untouched, so the next pass re-fetches instead of skipping records.
func (e *Engine) pullPhase(ctx context.Context, userID uuid.UUID, summary *Summary) error {
	since, err := e.checkpoints.Get(ctx, userID)
	if err != nil {
		return err
	}

	var remotes []remote.RemoteTrip
	err = e.retryer.Do(ctx, func(ctx context.Context) error {
		r, err := e.remote.Pull(ctx, userID, since)
		if err == nil {
			remotes = r
		}
		return err
	})
	if err != nil {
		return err
	}

	maxSeen := since
	for _, rt := range remotes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.applyRemote(ctx, rt, summary); err != nil {
			return err
		}
		if rt.UpdatedAt.After(maxSeen) {
			maxSeen = rt.UpdatedAt
		}
	}

	if maxSeen.After(since) {
		if err := e.checkpoints.Set(ctx, userID, maxSeen); err != nil {
			return err
		}
	}
	return nil
}

// applyRemote merges one pulled record into the local store.
func (e *Engine) applyRemote(ctx context.Context, rt remote.RemoteTrip, summary *Summary) error {
	local, err := e.lookupLocal(ctx, rt)
	found := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	switch {
	case !found:
		if rt.IsDeleted {
			// Deletion of a record this device never had.
			return nil
		}
		if err := e.store.Upsert(ctx, rt.Trip(uuid.Nil)); err != nil {
			return err
		}
		summary.Pulled++

	case local.IsSynced && rt.IsDeleted:
		if err := e.deleteLocal(ctx, local.ID); err != nil {
			return err
		}
		summary.Deleted++

	case local.IsSynced:
		// No local edits: remote overwrites, no conflict.
		if err := e.store.Upsert(ctx, rt.Trip(local.ID)); err != nil {
			return err
		}
		summary.Pulled++

	default:
		// Local edits exist: both sides diverged since the checkpoint.
		res := e.resolver.Resolve(local.Clone(), rt)
		summary.Conflicts++
		if res.Deleted {
			if err := e.deleteLocal(ctx, local.ID); err != nil {
				return err
			}
			summary.Deleted++
			summary.ConflictsRemoteWon++
			return nil
		}
		if err := e.store.Upsert(ctx, res.Trip); err != nil {
			return err
		}
		if res.Winner == WinnerRemote {
			summary.Pulled++
			summary.ConflictsRemoteWon++
		} else {
			summary.ConflictsLocalWon++
		}
	}
	return nil
}

// lookupLocal matches a remote record to a local trip: by server ID first,
// falling back to the remote-echoed client id for trips pushed by this
// device before their server ID was persisted.
func (e *Engine) lookupLocal(ctx context.Context, rt remote.RemoteTrip) (domain.Trip, error) {
	if rt.ServerID != "" {
		local, err := e.store.GetByServerID(ctx, rt.ServerID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return local, err
		}
	}
	if rt.ID != uuid.Nil {
		return e.store.GetByID(ctx, rt.ID)
	}
	return domain.Trip{}, domain.ErrNotFound
}

// deleteLocal removes a record, treating already-gone as success.
func (e *Engine) deleteLocal(ctx context.Context, id uuid.UUID) error {
	if err := e.store.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// acquire claims the user's sync slot. Returns false when a pass is already
// in flight for that user.
func (e *Engine) acquire(userID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[userID] {
		return false
	}
	e.inFlight[userID] = true
	return true
}

// release frees the user's sync slot.
func (e *Engine) release(userID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, userID)
}
