package querycache

import (
	"errors"
	"fmt"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

// ErrNotFound is returned by MutateStatus when the authoritative source has
// no such user.
var ErrNotFound = directory.ErrNotFound

// errSuperseded marks a fetch whose result was discarded because a newer
// fetch, a mutation or an invalidation replaced it.
var errSuperseded = errors.New("fetch superseded")

// State is the lifecycle state of one cache entry.
type State int

const (
	StateAbsent State = iota
	StateLoading
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLoading:
		return "loading"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ListFetchError is returned when a list could not be loaded from either
// the backend or the local directory.
type ListFetchError struct {
	Params models.ListParams
	Err    error
}

func (e *ListFetchError) Error() string {
	return fmt.Sprintf("failed to load users (%s): %v", e.Params.Key(), e.Err)
}

func (e *ListFetchError) Unwrap() error { return e.Err }

// View is a non-blocking read of one key.
type View struct {
	Result models.ListResult
	State  State
	// HasData is false when nothing has been loaded for the key and no
	// placeholder exists yet.
	HasData bool
	// Placeholder is true when Result belongs to a different key and is
	// shown only while this key loads.
	Placeholder bool
	// Optimistic is true while Result carries an unconfirmed status patch.
	Optimistic bool
	// Err is the last fetch error for the key, if the key is erroring.
	Err error
}
