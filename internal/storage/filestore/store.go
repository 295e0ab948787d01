// Package filestore persists sessions as one file per session under a
// base directory, in either JSON or XML property-list form. Retention is
// driven by file modification times: every save sweeps out files older
// than the retention period, then trims the oldest files beyond the
// session limit.
package filestore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/storage"
	"github.com/wirecap/wirecap/pkg/session"
)

const (
	// DefaultCacheItems bounds the decoded-session LRU when Options leaves
	// CacheItems unset.
	DefaultCacheItems = 512
	// DefaultDecodeWorkers bounds concurrent file decodes during LoadAll.
	DefaultDecodeWorkers = 8
)

// Options configures a file-backed store.
type Options struct {
	// BaseDir is the directory holding the session files. Created if
	// missing.
	BaseDir string
	// Format selects the file encoding. Defaults to FormatJSON.
	Format Format
	// MaxSessions caps the number of session files kept on disk; the
	// oldest files by modification time are removed beyond it. Zero or
	// negative means unlimited.
	MaxSessions int
	// RetentionPeriod removes files whose modification time is older than
	// this on every save. Zero or negative disables age-based pruning.
	RetentionPeriod time.Duration
	// CacheItems sizes the decoded-session LRU.
	CacheItems int
	// DecodeWorkers bounds concurrent decodes in LoadAll.
	DecodeWorkers int
}

// Store is the file-backed session provider. All operations funnel
// through one serial worker, so each call is atomic with respect to the
// others on the same instance.
type Store struct {
	worker *storage.Worker
	opts   Options
	cache  *lru.Cache[uuid.UUID, session.Session]
	sizes  singleflight.Group
	now    func() time.Time
}

var _ storage.Storage = (*Store)(nil)

// New creates the base directory if needed and starts the store's worker.
func New(opts Options) (*Store, error) {
	if opts.BaseDir == "" {
		return nil, errdef.New(errdef.CodeValidate, "filestore: base directory is required")
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.CacheItems <= 0 {
		opts.CacheItems = DefaultCacheItems
	}
	if opts.DecodeWorkers <= 0 {
		opts.DecodeWorkers = DefaultDecodeWorkers
	}
	if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "create session directory")
	}
	cache, err := lru.New[uuid.UUID, session.Session](opts.CacheItems)
	if err != nil {
		return nil, err
	}
	return &Store{
		worker: storage.NewWorker(),
		opts:   opts,
		cache:  cache,
		now:    time.Now,
	}, nil
}

// Close stops the worker; subsequent calls fail.
func (st *Store) Close() error {
	return st.worker.Close()
}

// Save writes the session to its file and runs the retention sweep.
func (st *Store) Save(ctx context.Context, s session.Session) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		if err := st.writeSession(s); err != nil {
			return err
		}
		st.sweep()
		return nil
	})
}

// SaveAll writes each session in order. A failure stops the batch but
// leaves earlier files in place.
func (st *Store) SaveAll(ctx context.Context, sessions []session.Session) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		for _, s := range sessions {
			if err := st.writeSession(s); err != nil {
				return err
			}
		}
		st.sweep()
		return nil
	})
}

// Load fetches one session, serving from the decode cache when possible.
func (st *Store) Load(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return storage.Run(ctx, st.worker, func() (session.Session, error) {
		return st.loadOne(id)
	})
}

// LoadAll decodes every session file, skipping corrupt ones, sorted by
// start time descending.
func (st *Store) LoadAll(ctx context.Context) ([]session.Session, error) {
	return storage.Run(ctx, st.worker, func() ([]session.Session, error) {
		return st.loadAll(ctx)
	})
}

// LoadMatching decodes every session file and keeps the ones the
// predicate accepts.
func (st *Store) LoadMatching(ctx context.Context, p filter.Predicate) ([]session.Session, error) {
	return storage.Run(ctx, st.worker, func() ([]session.Session, error) {
		all, err := st.loadAll(ctx)
		if err != nil {
			return nil, err
		}
		out := all[:0]
		for _, s := range all {
			if p == nil || p.Matches(s) {
				out = append(out, s)
			}
		}
		return out, nil
	})
}

// Delete removes one session file.
func (st *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		st.cache.Remove(id)
		err := os.Remove(st.pathFor(id))
		if os.IsNotExist(err) {
			return errdef.New(errdef.CodeNotFound, "session %s not found", id)
		}
		if err != nil {
			return errdef.Wrap(errdef.CodeFilesystem, err, "delete session file")
		}
		return nil
	})
}

// DeleteAll removes every session file.
func (st *Store) DeleteAll(ctx context.Context) error {
	return storage.RunVoid(ctx, st.worker, func() error {
		files, err := st.listFiles()
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
				return errdef.Wrap(errdef.CodeFilesystem, err, "delete session file")
			}
		}
		st.cache.Purge()
		return nil
	})
}

// DeleteMatching removes the sessions the predicate accepts and reports
// how many were removed.
func (st *Store) DeleteMatching(ctx context.Context, p filter.Predicate) (int, error) {
	return storage.Run(ctx, st.worker, func() (int, error) {
		all, err := st.loadAll(ctx)
		if err != nil {
			return 0, err
		}
		removed := 0
		for _, s := range all {
			if p != nil && !p.Matches(s) {
				continue
			}
			st.cache.Remove(s.ID)
			if err := os.Remove(st.pathFor(s.ID)); err != nil && !os.IsNotExist(err) {
				return removed, errdef.Wrap(errdef.CodeFilesystem, err, "delete session file")
			}
			removed++
		}
		return removed, nil
	})
}

// Count reports the number of session files on disk.
func (st *Store) Count(ctx context.Context) (int, error) {
	return storage.Run(ctx, st.worker, func() (int, error) {
		files, err := st.listFiles()
		if err != nil {
			return 0, err
		}
		return len(files), nil
	})
}

// StorageSize sums the session file sizes. Concurrent callers share one
// walk through singleflight.
func (st *Store) StorageSize(ctx context.Context) (int64, error) {
	v, err, _ := st.sizes.Do("size", func() (any, error) {
		total, err := storage.Run(ctx, st.worker, func() (int64, error) {
			files, err := st.listFiles()
			if err != nil {
				return 0, err
			}
			var total int64
			for _, f := range files {
				total += f.size
			}
			return total, nil
		})
		return total, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (st *Store) pathFor(id uuid.UUID) string {
	return filepath.Join(st.opts.BaseDir, id.String()+"."+st.opts.Format.Ext())
}

func (st *Store) writeSession(s session.Session) error {
	data, err := encodeSession(st.opts.Format, s)
	if err != nil {
		return err
	}
	path := st.pathFor(s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write session file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errdef.Wrap(errdef.CodeFilesystem, err, "write session file")
	}
	st.cache.Add(s.ID, s.Clone())
	return nil
}

func (st *Store) loadOne(id uuid.UUID) (session.Session, error) {
	if cached, ok := st.cache.Get(id); ok {
		return cached.Clone(), nil
	}
	data, err := os.ReadFile(st.pathFor(id))
	if os.IsNotExist(err) {
		return session.Session{}, errdef.New(errdef.CodeNotFound, "session %s not found", id)
	}
	if err != nil {
		return session.Session{}, errdef.Wrap(errdef.CodeFilesystem, err, "read session file")
	}
	s, err := decodeSession(st.opts.Format, data)
	if err != nil {
		return session.Session{}, err
	}
	st.cache.Add(id, s.Clone())
	return s, nil
}

func (st *Store) loadAll(ctx context.Context) ([]session.Session, error) {
	files, err := st.listFiles()
	if err != nil {
		return nil, err
	}

	out := make([]session.Session, len(files))
	loaded := make([]bool, len(files))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(st.opts.DecodeWorkers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if cached, ok := st.cache.Get(f.id); ok {
				out[i] = cached.Clone()
				loaded[i] = true
				return nil
			}
			data, err := os.ReadFile(f.path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return errdef.Wrap(errdef.CodeFilesystem, err, "read session file")
			}
			s, err := decodeSession(st.opts.Format, data)
			if err != nil {
				// A corrupt file must not hide the rest of the capture.
				slog.Warn("skipping unreadable session file",
					slog.String("path", f.path),
					slog.String("error", err.Error()),
				)
				return nil
			}
			out[i] = s
			loaded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sessions := make([]session.Session, 0, len(out))
	for i, ok := range loaded {
		if ok {
			sessions = append(sessions, out[i])
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

type fileEntry struct {
	id    uuid.UUID
	path  string
	mtime time.Time
	size  int64
}

func (st *Store) listFiles() ([]fileEntry, error) {
	entries, err := os.ReadDir(st.opts.BaseDir)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "list session directory")
	}
	suffix := "." + st.opts.Format.Ext()
	files := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(e.Name(), suffix))
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{
			id:    id,
			path:  filepath.Join(st.opts.BaseDir, e.Name()),
			mtime: info.ModTime(),
			size:  info.Size(),
		})
	}
	return files, nil
}

// sweep enforces retention after a save: first drop files past the
// retention period, then trim the oldest files over the session limit.
// Sweep failures are logged, never surfaced to the saver.
func (st *Store) sweep() {
	files, err := st.listFiles()
	if err != nil {
		slog.Warn("retention sweep skipped", slog.String("error", err.Error()))
		return
	}

	if st.opts.RetentionPeriod > 0 {
		cutoff := st.now().Add(-st.opts.RetentionPeriod)
		kept := files[:0]
		for _, f := range files {
			if f.mtime.Before(cutoff) {
				st.removeSwept(f, "age")
				continue
			}
			kept = append(kept, f)
		}
		files = kept
	}

	if st.opts.MaxSessions > 0 && len(files) > st.opts.MaxSessions {
		sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })
		for _, f := range files[:len(files)-st.opts.MaxSessions] {
			st.removeSwept(f, "capacity")
		}
	}
}

func (st *Store) removeSwept(f fileEntry, reason string) {
	st.cache.Remove(f.id)
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("retention sweep failed to remove file",
			slog.String("path", f.path),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Debug("retention sweep removed session",
		slog.String("session_id", f.id.String()),
		slog.String("reason", reason),
	)
}
