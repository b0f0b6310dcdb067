package sync

import (
	"github.com/tripcraft/tripsync/internal/domain"
	"github.com/tripcraft/tripsync/internal/remote"
)

// Winner names the side whose content a resolution kept.
type Winner string

const (
	// WinnerLocal means local content was kept; the record stays dirty so
	// the next push phase re-sends it.
	WinnerLocal Winner = "local"
	// WinnerRemote means remote content replaced the local record, which
	// is then marked synced.
	WinnerRemote Winner = "remote"
)

// Resolution is the outcome of resolving one diverged record.
type Resolution struct {
	// Trip is the merged record to persist. Meaningless when Deleted is set.
	Trip domain.Trip
	// Winner reports which side's content prevailed.
	Winner Winner
	// Deleted means the record must be removed locally rather than written.
	Deleted bool
}

// ConflictResolver decides the merged record when the local and remote
// copies of a trip have both changed since they last agreed.
type ConflictResolver interface {
	Resolve(local domain.Trip, rem remote.RemoteTrip) Resolution
}

// LWWResolver resolves conflicts whole-record by last-write-wins timestamp
// comparison, with two hard rules layered on top:
//
//   - Deletion wins unconditionally over a content edit, regardless of
//     timestamp order. Resurrecting data a user explicitly removed is worse
//     than losing a late edit.
//   - Ties go to local, so an in-flight edit is never clobbered by a remote
//     copy that is merely as new.
//
// No field-level merging is attempted: sub-fields (days, activities) always
// travel with their winning record.
type LWWResolver struct{}

// Resolve implements ConflictResolver.
func (LWWResolver) Resolve(local domain.Trip, rem remote.RemoteTrip) Resolution {
	switch {
	case rem.IsDeleted:
		return Resolution{Winner: WinnerRemote, Deleted: true}
	case local.DeletedAt != nil:
		// Local tombstone stands; the next push phase propagates it.
		return Resolution{Trip: local, Winner: WinnerLocal}
	case rem.UpdatedAt.After(local.LocalUpdatedAt):
		return Resolution{Trip: rem.Trip(local.ID), Winner: WinnerRemote}
	default:
		// Local is at least as new: keep it dirty for the next push.
		return Resolution{Trip: local, Winner: WinnerLocal}
	}
}
