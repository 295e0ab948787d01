// Package storage defines the persistence contract shared by the
// file-backed and in-memory session providers, and the serial worker that
// gives every provider instance its single-queue execution model.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/pkg/session"
)

// Storage is the common persistence contract. Every operation is
// serialized through the instance's single worker: individually atomic
// from the caller's perspective, linearizable per instance, with no
// cross-instance atomicity. Implementations must not require external
// locking.
type Storage interface {
	// Save persists one session, overwriting any session with the same ID.
	Save(ctx context.Context, s session.Session) error
	// SaveAll persists a batch. There is no atomicity across the batch: if
	// one element fails, earlier writes may persist.
	SaveAll(ctx context.Context, sessions []session.Session) error
	// Load fetches a session by ID. Returns a not_found error when absent.
	Load(ctx context.Context, id uuid.UUID) (session.Session, error)
	// LoadAll returns every stored session, sorted by start time descending.
	LoadAll(ctx context.Context) ([]session.Session, error)
	// LoadMatching returns the sessions the predicate accepts.
	LoadMatching(ctx context.Context, p filter.Predicate) ([]session.Session, error)
	// Delete removes a session by ID. Returns a not_found error when absent.
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteAll removes everything.
	DeleteAll(ctx context.Context) error
	// DeleteMatching removes the sessions the predicate accepts and reports
	// how many were removed.
	DeleteMatching(ctx context.Context, p filter.Predicate) (int, error)
	// Count reports the number of stored sessions.
	Count(ctx context.Context) (int, error)
	// StorageSize reports the provider's resident size in bytes.
	StorageSize(ctx context.Context) (int64, error)
	// Close stops the worker. Pending submissions fail afterwards.
	Close() error
}

// IsNotFound reports whether err is a missing-session error.
func IsNotFound(err error) bool {
	return errdef.Is(err, errdef.CodeNotFound)
}

// IsCapacity reports whether err is a capacity-limit error.
func IsCapacity(err error) bool {
	return errdef.Is(err, errdef.CodeCapacity)
}
