package geocode

import (
	"fmt"

	"go.ngs.io/nearest-api/internal/adapter/store"
)

// Status is the outcome of resolving one address.
type Status int

const (
	// StatusNotFound means the service answered without a usable match.
	StatusNotFound Status = iota
	// StatusFound means coordinates are available, from cache or a lookup.
	StatusFound
	// StatusTransientError means the service could not be reached or kept
	// failing after all retries. The address may resolve on a later run.
	StatusTransientError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusTransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of Resolve. Neither NotFound nor TransientError is
// ever written to the cache.
type Result struct {
	Key    string
	Status Status
	Entry  store.Entry
	Cached bool  // served from cache without a lookup
	Err    error // cause for NotFound (when known) and TransientError
}

// OK reports whether the result carries coordinates.
func (r Result) OK() bool {
	return r.Status == StatusFound
}

func found(key string, entry store.Entry, cached bool) Result {
	return Result{Key: key, Status: StatusFound, Entry: entry, Cached: cached}
}

func notFound(key string, err error) Result {
	return Result{Key: key, Status: StatusNotFound, Err: err}
}

func transient(key string, err error) Result {
	return Result{Key: key, Status: StatusTransientError, Err: err}
}
