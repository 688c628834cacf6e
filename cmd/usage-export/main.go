// Command usage-export writes the stored usage logs of visitor sessions to
// CSV files, the same format the storefront download produces.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	appkg "github.com/xenking/petshop-storefront/internal/app"
	"github.com/xenking/petshop-storefront/internal/domain/consent"
	"github.com/xenking/petshop-storefront/internal/session"
	"github.com/xenking/petshop-storefront/internal/storage"
	"github.com/xenking/petshop-storefront/internal/storage/postgres"
)

const maxParallel = 8

type options struct {
	outDir   string
	compress bool
	stats    bool
	now      time.Time
}

// cartStatser is implemented by backends that can aggregate stored carts.
type cartStatser interface {
	CartStats(ctx context.Context) (postgres.CartStats, error)
}

var errStatsUnsupported = errors.New("cart stats need the postgres driver")

func main() {
	var (
		cfg          appkg.StorageConfig
		sessionsFlag string
		sessionsFile string
		opts         options
	)

	flag.StringVar(&cfg.Driver, "driver", appkg.DriverRedis, "storage driver: redis or postgres")
	flag.StringVar(&cfg.Redis.URL, "redis-url", "", "Redis URL (or REDIS_URL env)")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&sessionsFlag, "sessions", "", "comma-separated session ids")
	flag.StringVar(&sessionsFile, "sessions-file", "", "file with one session id per line")
	flag.StringVar(&opts.outDir, "out", ".", "output directory")
	flag.BoolVar(&opts.compress, "gzip", false, "gzip the CSV files")
	flag.BoolVar(&opts.stats, "cart-stats", false, "log the number and value of stored carts (postgres only)")
	flag.Parse()

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = os.Getenv("REDIS_URL")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Driver == appkg.DriverMemory {
		slog.Error("the memory driver keeps nothing between processes: use redis or postgres")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ids, err := sessionIDs(sessionsFlag, sessionsFile)
	if err != nil {
		slog.Error("read session ids", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(ids) == 0 && !opts.stats {
		slog.Error("no sessions given: set --sessions or --sessions-file")
		os.Exit(1)
	}

	opts.now = time.Now()
	if err := run(ctx, cfg, ids, opts); err != nil {
		slog.Error("usage export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("usage export completed successfully")
}

func run(ctx context.Context, cfg appkg.StorageConfig, ids []string, opts options) error {
	slog.Info("connecting to storage", slog.String("driver", cfg.Driver))

	backend, err := appkg.OpenBackend(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() { _ = backend.Close() }()

	if opts.stats {
		if err := reportCarts(ctx, backend); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		return nil
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	return exportAll(ctx, backend, ids, opts)
}

func reportCarts(ctx context.Context, backend storage.Backend) error {
	cs, ok := backend.(cartStatser)
	if !ok {
		return errStatsUnsupported
	}
	st, err := cs.CartStats(ctx)
	if err != nil {
		return errors.Wrap(err, "cart stats")
	}
	slog.Info("stored carts",
		slog.Int64("carts", st.Carts),
		slog.Int64("lines", st.Lines),
		slog.String("value", st.Value.StringFixed(2)),
	)
	return nil
}

// exportAll exports every session concurrently. Sessions without a usage
// log are skipped.
func exportAll(ctx context.Context, backend storage.Backend, ids []string, opts options) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, id := range ids {
		g.Go(func() error {
			path, count, err := exportSession(ctx, backend.Namespace(id), id, opts)
			switch {
			case errors.Is(err, consent.ErrEmptyExportSet):
				slog.Info("no usage data", slog.String("session", id))
				return nil
			case err != nil:
				return errors.Wrapf(err, "session %s", id)
			}
			slog.Info("exported",
				slog.String("session", id),
				slog.String("file", path),
				slog.Int("entries", count),
			)
			return nil
		})
	}
	return g.Wait()
}

// exportSession writes <session>_usage_<timestamp>.csv[.gz] into the
// output directory and returns its path and entry count.
func exportSession(ctx context.Context, kv storage.KV, id string, opts options) (string, int, error) {
	raw, err := kv.Get(ctx, storage.KeyUsageLog)
	if errors.Is(err, storage.ErrNotFound) {
		return "", 0, consent.ErrEmptyExportSet
	}
	if err != nil {
		return "", 0, errors.Wrap(err, "read usage log")
	}
	entries, err := consent.DecodeLog([]byte(raw))
	if err != nil {
		return "", 0, errors.Wrap(err, "decode usage log")
	}
	if len(entries) == 0 {
		return "", 0, consent.ErrEmptyExportSet
	}

	x := consent.Export{
		Filename: id + "_" + consent.Filename(opts.now),
		Data:     consent.CSV(entries),
		Count:    len(entries),
	}
	if opts.compress {
		if x, err = x.Gzip(); err != nil {
			return "", 0, errors.Wrap(err, "compress")
		}
	}
	path := filepath.Join(opts.outDir, x.Filename)
	if err := os.WriteFile(path, x.Data, 0o644); err != nil {
		return "", 0, errors.Wrap(err, "write file")
	}
	return path, x.Count, nil
}

// sessionIDs merges the comma-separated list with the lines of file,
// dropping blanks and duplicates. Ids that are not session ids are an error
// since they end up in output file names.
func sessionIDs(list, file string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil
		}
		if !session.ValidID(id) {
			return errors.Errorf("invalid session id %q", id)
		}
		if _, ok := seen[id]; ok {
			return nil
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		return nil
	}
	for _, id := range strings.Split(list, ",") {
		if err := add(id); err != nil {
			return nil, err
		}
	}
	if file == "" {
		return ids, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "open sessions file")
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if err := add(scanner.Text()); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan sessions file")
	}
	return ids, nil
}
