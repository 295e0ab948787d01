// Package memstore is the volatile in-memory storage provider. It keeps
// sessions in a map with an insertion-order list and per-session access
// timestamps, enforces a hard capacity limit on insert, and maintains a
// bitmap index for predicate fast paths.
package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/index"
	"github.com/wirecap/wirecap/internal/storage"
	"github.com/wirecap/wirecap/pkg/session"
)

// Options configures a Store.
type Options struct {
	// MaxSessions caps the number of stored sessions. Saving a new ID at
	// capacity is a hard error; the caller must delete first. 0 disables
	// the cap.
	MaxSessions int
	// RetentionPeriod evicts sessions not accessed for this long during
	// cleanup. 0 disables age-based eviction.
	RetentionPeriod time.Duration
	// AutoCleanup runs a cleanup pass after every successful save.
	AutoCleanup bool
}

// Store implements storage.Storage in memory.
type Store struct {
	worker *storage.Worker
	opts   Options

	items      map[uuid.UUID]session.Session
	order      []uuid.UUID // insertion order
	lastAccess map[uuid.UUID]time.Time
	idx        *index.Index

	now func() time.Time // test seam
}

// New creates an in-memory provider with its own serial worker.
func New(opts Options) *Store {
	return &Store{
		worker:     storage.NewWorker(),
		opts:       opts,
		items:      make(map[uuid.UUID]session.Session),
		lastAccess: make(map[uuid.UUID]time.Time),
		idx:        index.New(),
		now:        time.Now,
	}
}

// Save inserts or updates a session. When the store already holds
// MaxSessions entries and the ID is new, the save is rejected with a
// capacity error; updates at capacity succeed.
func (st *Store) Save(ctx context.Context, s session.Session) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		if err := st.saveLocked(s); err != nil {
			return err
		}
		if st.opts.AutoCleanup {
			st.cleanupLocked()
		}
		return nil
	})
}

// SaveAll saves a batch with no cross-batch atomicity: sessions before a
// failing element stay saved.
func (st *Store) SaveAll(ctx context.Context, sessions []session.Session) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		for _, s := range sessions {
			if err := st.saveLocked(s); err != nil {
				return err
			}
		}
		if st.opts.AutoCleanup {
			st.cleanupLocked()
		}
		return nil
	})
}

func (st *Store) saveLocked(s session.Session) error {
	_, exists := st.items[s.ID]
	if !exists && st.opts.MaxSessions > 0 && len(st.items) >= st.opts.MaxSessions {
		return errdef.New(errdef.CodeCapacity,
			"store holds %d sessions (limit %d); delete before inserting", len(st.items), st.opts.MaxSessions)
	}
	st.items[s.ID] = s.Clone()
	if !exists {
		st.order = append(st.order, s.ID)
	}
	st.lastAccess[s.ID] = st.now()
	st.idx.Add(s)
	return nil
}

// Load fetches by ID and touches the session's access timestamp.
func (st *Store) Load(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return storage.Run(ctx, st.worker, func() (session.Session, error) {
		s, ok := st.items[id]
		if !ok {
			return session.Session{}, errdef.New(errdef.CodeNotFound, "session %s not found", id)
		}
		st.lastAccess[id] = st.now()
		return s.Clone(), nil
	})
}

// LoadAll returns every session sorted by start time descending.
func (st *Store) LoadAll(ctx context.Context) ([]session.Session, error) {
	return storage.Run(ctx, st.worker, func() ([]session.Session, error) {
		return st.snapshotLocked(), nil
	})
}

// LoadMatching returns sessions accepted by the predicate. AND-only
// exact-match criteria are answered from the bitmap index first; every
// candidate is still verified with Matches.
func (st *Store) LoadMatching(ctx context.Context, p filter.Predicate) ([]session.Session, error) {
	return storage.Run(ctx, st.worker, func() ([]session.Session, error) {
		return st.matchLocked(p), nil
	})
}

// Delete removes a session by ID.
func (st *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		if _, ok := st.items[id]; !ok {
			return errdef.New(errdef.CodeNotFound, "session %s not found", id)
		}
		st.removeLocked(id)
		return nil
	})
}

// DeleteAll clears the store.
func (st *Store) DeleteAll(ctx context.Context) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		st.items = make(map[uuid.UUID]session.Session)
		st.order = st.order[:0]
		st.lastAccess = make(map[uuid.UUID]time.Time)
		st.idx.Clear()
		return nil
	})
}

// DeleteMatching removes accepted sessions and reports the count.
func (st *Store) DeleteMatching(ctx context.Context, p filter.Predicate) (int, error) {
	return storage.Run(ctx, st.worker, func() (int, error) {
		matched := st.matchLocked(p)
		for _, s := range matched {
			st.removeLocked(s.ID)
		}
		return len(matched), nil
	})
}

// Count reports the number of stored sessions.
func (st *Store) Count(ctx context.Context) (int, error) {
	return storage.Run(ctx, st.worker, func() (int, error) {
		return len(st.items), nil
	})
}

// StorageSize estimates resident bytes across all stored sessions.
func (st *Store) StorageSize(ctx context.Context) (int64, error) {
	return storage.Run(ctx, st.worker, func() (int64, error) {
		var total int64
		for _, s := range st.items {
			total += approxSize(s)
		}
		return total, nil
	})
}

// Cleanup runs the eviction passes manually: first drop sessions whose
// last access is older than the retention period, then, if the store still
// exceeds MaxSessions, drop the oldest-inserted excess. The second pass
// deliberately uses insertion order, not access order.
func (st *Store) Cleanup(ctx context.Context) (int, error) {
	return storage.Run(ctx, st.worker, func() (int, error) {
		return st.cleanupLocked(), nil
	})
}

// RecentlyAccessed returns up to n sessions ordered by most recent access.
func (st *Store) RecentlyAccessed(ctx context.Context, n int) ([]session.Session, error) {
	return storage.Run(ctx, st.worker, func() ([]session.Session, error) {
		ids := make([]uuid.UUID, 0, len(st.items))
		for id := range st.items {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return st.lastAccess[ids[i]].After(st.lastAccess[ids[j]])
		})
		if n > 0 && n < len(ids) {
			ids = ids[:n]
		}
		out := make([]session.Session, 0, len(ids))
		for _, id := range ids {
			out = append(out, st.items[id].Clone())
		}
		return out, nil
	})
}

// Close stops the worker.
func (st *Store) Close() error {
	return st.worker.Close()
}

func (st *Store) cleanupLocked() int {
	removed := 0

	if st.opts.RetentionPeriod > 0 {
		cutoff := st.now().Add(-st.opts.RetentionPeriod)
		for _, id := range append([]uuid.UUID(nil), st.order...) {
			if st.lastAccess[id].Before(cutoff) {
				st.removeLocked(id)
				removed++
			}
		}
	}

	if st.opts.MaxSessions > 0 {
		for len(st.items) > st.opts.MaxSessions {
			oldest := st.order[0]
			st.removeLocked(oldest)
			removed++
		}
	}

	return removed
}

func (st *Store) removeLocked(id uuid.UUID) {
	delete(st.items, id)
	delete(st.lastAccess, id)
	st.idx.Remove(id)
	for i, sid := range st.order {
		if sid == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

func (st *Store) snapshotLocked() []session.Session {
	out := make([]session.Session, 0, len(st.items))
	for _, s := range st.items {
		out = append(out, s.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

func (st *Store) matchLocked(p filter.Predicate) []session.Session {
	if crit, ok := p.(*filter.Criteria); ok {
		if hints, planned := crit.IndexPlan(); planned {
			var out []session.Session
			for _, id := range st.idx.Candidates(hints) {
				s, exists := st.items[id]
				if exists && p.Matches(s) {
					out = append(out, s.Clone())
				}
			}
			sort.SliceStable(out, func(i, j int) bool {
				return out[i].StartTime.After(out[j].StartTime)
			})
			return out
		}
	}

	var out []session.Session
	for _, s := range st.snapshotLocked() {
		if p.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

func approxSize(s session.Session) int64 {
	size := int64(len(s.Request.URL) + len(s.Request.Body))
	for k, v := range s.Request.Headers {
		size += int64(len(k) + len(v))
	}
	if s.Response != nil {
		size += int64(len(s.Response.Body))
		for k, v := range s.Response.Headers {
			size += int64(len(k) + len(v))
		}
	}
	for k, v := range s.Metadata {
		size += int64(len(k) + len(v.String()))
	}
	return size
}
