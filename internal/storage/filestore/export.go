package filestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/schema"
	"github.com/wirecap/wirecap/internal/storage"
)

// Export writes the sessions the predicate accepts (all of them when p is
// nil) to one whole-array document at path. The document format follows
// the file extension; an unknown extension falls back to the store's own
// format. Returns the number of sessions written.
func (st *Store) Export(ctx context.Context, path string, p filter.Predicate) (int, error) {
	format := formatForPath(path, st.opts.Format)
	return storage.Run(ctx, st.worker, func() (int, error) {
		all, err := st.loadAll(ctx)
		if err != nil {
			return 0, err
		}
		if p != nil {
			kept := all[:0]
			for _, s := range all {
				if p.Matches(s) {
					kept = append(kept, s)
				}
			}
			all = kept
		}
		data, err := encodeSessions(format, all)
		if err != nil {
			return 0, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return 0, errdef.Wrap(errdef.CodeFilesystem, err, "write export document")
		}
		return len(all), nil
	})
}

// Import reads a whole-array document from path and saves every session
// in it, overwriting sessions with matching IDs. When validate is true
// the document is checked against the session schema first and a
// non-conforming document is rejected wholesale. Returns the number of
// sessions imported.
func (st *Store) Import(ctx context.Context, path string, validate bool) (int, error) {
	format := formatForPath(path, st.opts.Format)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errdef.Wrap(errdef.CodeFilesystem, err, "read import document")
	}

	if validate {
		doc, err := genericDoc(format, data)
		if err != nil {
			return 0, err
		}
		validator, err := schema.NewDocumentValidator()
		if err != nil {
			return 0, err
		}
		if err := validator.ValidateValue(doc); err != nil {
			return 0, err
		}
	}

	sessions, err := decodeSessions(format, data)
	if err != nil {
		return 0, err
	}

	return storage.Run(ctx, st.worker, func() (int, error) {
		for i, s := range sessions {
			if err := st.writeSession(s); err != nil {
				return i, err
			}
		}
		st.sweep()
		return len(sessions), nil
	})
}

func formatForPath(path string, fallback Format) Format {
	if f, err := ParseFormat(filepath.Ext(path)); err == nil {
		return f
	}
	return fallback
}
