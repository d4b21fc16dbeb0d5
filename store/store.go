// Package store provides the ephemeral keyed store backing the decoupled
// authentication engine: single-use nonces, proof-replay markers and
// authentication sessions. Everything here is TTL-bound; nothing is ever
// persisted durably.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all KV backends.
var (
	// ErrKeyNotFound is returned by Get when the key is absent or its TTL
	// has lapsed.
	ErrKeyNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps backend transport failures so callers can tell
	// "store down" apart from a protocol decision.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrTxConflict is returned when an optimistic transaction could not be
	// committed after retries.
	ErrTxConflict = errors.New("store: transaction conflict")
)

// UpdateFunc inspects the current value of a key inside an atomic
// read-modify-write and returns its replacement. exists is false when the
// key is absent. Returning remove=true deletes the key; otherwise next is
// written with the given ttl (ttl <= 0 writes without expiry). Returning a
// non-nil err aborts the update without writing.
type UpdateFunc func(current string, exists bool) (next string, ttl time.Duration, remove bool, err error)

// KV is the shared ephemeral keyed store. Implementations must provide
// per-key atomicity for SetIfAbsent and Update with respect to concurrent
// callers; a check-then-set built from two separate operations does not
// satisfy this interface.
type KV interface {
	// SetIfAbsent writes key=value with ttl only when the key does not
	// exist. Returns false when the key was already present. Exactly one of
	// any number of concurrent callers wins.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the current value or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Update runs fn as a single atomic read-modify-write on key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
