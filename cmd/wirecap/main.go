// Command wirecap searches, queries, exports and imports captured HTTP
// sessions stored on disk. Storage location and limits are configured
// via environment variables (see internal/config).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wirecap/wirecap/internal/config"
	"github.com/wirecap/wirecap/internal/extract"
	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/logging"
	"github.com/wirecap/wirecap/internal/query"
	"github.com/wirecap/wirecap/internal/search"
	"github.com/wirecap/wirecap/internal/storage/filestore"
	"github.com/wirecap/wirecap/pkg/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	closeLogs, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging setup:", err)
		os.Exit(1)
	}
	defer closeLogs()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	st, err := openStore(cfg)
	if err != nil {
		slog.Error("open session store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	switch os.Args[1] {
	case "search":
		err = runSearch(ctx, cfg, st, os.Args[2:])
	case "query":
		err = runQuery(ctx, st, os.Args[2:])
	case "extract":
		err = runExtract(ctx, st, os.Args[2:])
	case "export":
		err = runExport(ctx, st, os.Args[2:])
	case "import":
		err = runImport(ctx, cfg, st, os.Args[2:])
	case "stats":
		err = runStats(ctx, st)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: wirecap <command> [flags]

commands:
  search   rank stored sessions against a text or regex query
  query    run a jq expression over stored JSON bodies
  extract  pull values from HTML/XML/text bodies (css, xpath, regex, form)
  export   write matching sessions to a whole-array document
  import   load sessions from an exported document
  stats    print session count and storage size`)
}

func openStore(cfg *config.Config) (*filestore.Store, error) {
	format, err := filestore.ParseFormat(cfg.FileFormat)
	if err != nil {
		return nil, err
	}
	return filestore.New(filestore.Options{
		BaseDir:         cfg.BaseDir,
		Format:          format,
		MaxSessions:     cfg.MaxSessions,
		RetentionPeriod: cfg.RetentionPeriod,
		CacheItems:      cfg.CacheMaxItems,
		DecodeWorkers:   cfg.DecodeWorkers,
	})
}

// sessionFlags are the shared filter flags of search, query and export.
type sessionFlags struct {
	method string
	status int
	host   string
	sinceH float64
}

func (sf *sessionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&sf.method, "method", "", "only sessions with this HTTP method")
	fs.IntVar(&sf.status, "status", 0, "only sessions with this status code")
	fs.StringVar(&sf.host, "host", "", "only sessions whose host contains this text")
	fs.Float64Var(&sf.sinceH, "since", 0, "only sessions started within the last N hours")
}

func (sf *sessionFlags) predicate() filter.Predicate {
	c := filter.New()
	if sf.method != "" {
		c = c.And(filter.MethodIs(session.ParseMethod(sf.method)))
	}
	if sf.status != 0 {
		c = c.And(filter.StatusIs(sf.status))
	}
	if sf.host != "" {
		c = c.And(filter.HostContains(sf.host))
	}
	if sf.sinceH > 0 {
		from := time.Now().Add(-time.Duration(sf.sinceH * float64(time.Hour)))
		c = c.And(filter.StartedBetween(from, time.Time{}))
	}
	if c.Len() == 0 {
		return nil
	}
	return c
}

func runSearch(ctx context.Context, cfg *config.Config, st *filestore.Store, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var sf sessionFlags
	sf.register(fs)
	text := fs.String("q", "", "query text")
	regex := fs.Bool("regex", false, "treat the query as a regular expression")
	sortBy := fs.String("sort", string(search.SortRelevance), "sort field: relevance, start_time, duration, url, status")
	asc := fs.Bool("asc", false, "sort ascending")
	limit := fs.Int("limit", 0, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc := search.New(st, search.Options{
		Timeout:    cfg.SearchTimeout,
		MaxResults: cfg.SearchMaxResults,
	})
	q := search.Query{
		Text:      *text,
		Regex:     *regex,
		Predicate: sf.predicate(),
		SortBy:    search.SortField(*sortBy),
		Limit:     *limit,
		Offset:    *offset,
	}
	if *asc {
		q.Direction = search.Asc
	}
	res, err := svc.Search(ctx, q)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runQuery(ctx context.Context, st *filestore.Store, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	var sf sessionFlags
	sf.register(fs)
	dedup := fs.Bool("dedup", false, "deduplicate values across sessions")
	maxResults := fs.Int("max", 0, "stop after N values")
	reqBodies := fs.Bool("request-bodies", false, "also query request bodies")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("query: exactly one jq expression expected")
	}

	eng := query.New(st)
	res, err := eng.Run(ctx, fs.Arg(0), query.Options{
		Predicate:     sf.predicate(),
		Deduplicate:   *dedup,
		MaxResults:    *maxResults,
		RequestBodies: *reqBodies,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runExtract(ctx context.Context, st *filestore.Store, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var sf sessionFlags
	sf.register(fs)
	mode := fs.String("mode", "", "extraction mode: css, xpath, regex, form (default: auto-detect)")
	maxResults := fs.Int("max", 0, "stop after N values")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("extract: exactly one expression expected")
	}

	eng := extract.New(st)
	res, err := eng.Run(ctx, fs.Arg(0), extract.Options{
		Predicate:  sf.predicate(),
		Mode:       extract.Mode(*mode),
		MaxResults: *maxResults,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runExport(ctx context.Context, st *filestore.Store, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var sf sessionFlags
	sf.register(fs)
	out := fs.String("out", "", "output document path (.json or .plist)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("export: -out is required")
	}

	n, err := st.Export(ctx, *out, sf.predicate())
	if err != nil {
		return err
	}
	slog.Info("exported sessions", "count", n, "path", *out)
	return nil
}

func runImport(ctx context.Context, cfg *config.Config, st *filestore.Store, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "", "input document path (.json or .plist)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("import: -in is required")
	}

	n, err := st.Import(ctx, *in, cfg.ValidateImports)
	if err != nil {
		return err
	}
	slog.Info("imported sessions", "count", n, "path", *in)
	return nil
}

func runStats(ctx context.Context, st *filestore.Store) error {
	count, err := st.Count(ctx)
	if err != nil {
		return err
	}
	size, err := st.StorageSize(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"sessionCount": count,
		"storageBytes": size,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
