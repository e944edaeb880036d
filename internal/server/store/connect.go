package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Opener creates a *sql.DB for a fully assembled connection string. It must
// not assume the server is reachable; Connect probes separately.
type Opener func(ctx context.Context, dsn string) (*sql.DB, error)

// Migrator brings the schema up to date on a freshly connected database.
type Migrator func(ctx context.Context, db *sql.DB) error

// Observer is told about every strategy attempt.
type Observer interface {
	ObserveBootstrap(strategy string, connected bool)
}

type options struct {
	opener   Opener
	logger   logging.Logger
	observer Observer
	migrate  Migrator
}

type Option func(*options)

func WithOpener(o Opener) Option { return func(opts *options) { opts.opener = o } }

func WithLogger(l logging.Logger) Option { return func(opts *options) { opts.logger = l } }

func WithObserver(o Observer) Option { return func(opts *options) { opts.observer = o } }

// WithMigrator runs m after a strategy connects. A failing migration closes
// the database and leaves the handle unavailable.
func WithMigrator(m Migrator) Option { return func(opts *options) { opts.migrate = m } }

// PgxOpener parses dsn with pgx and opens it through the database/sql adapter.
func PgxOpener(_ context.Context, dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return stdlib.OpenDB(*cfg), nil
}

// ErrNoStrategies is the Unavailable cause when Connect gets an empty ladder.
var ErrNoStrategies = errors.New("no connection strategies")

// Connect tries strategies in order and returns on the first one whose
// liveness probe succeeds. Each attempt is bounded by its own timeout, so the
// worst case is the sum of the strategy timeouts. Connect never returns nil
// and never panics on connection failures.
func Connect(ctx context.Context, uri string, strategies []Strategy, opts ...Option) *Handle {
	o := options{opener: PgxOpener, logger: logging.Nop{}}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.With("module", "store")

	if uri == "" {
		log.Warn(ctx, "database uri not configured, store unavailable")
		return Unavailable(errEmptyURI)
	}
	if len(strategies) == 0 {
		log.Warn(ctx, "no connection strategies, store unavailable")
		return Unavailable(ErrNoStrategies)
	}

	var lastErr error
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		log.Info(ctx, "trying strategy", "strategy", s.Name, "attempt", i+1, "total", len(strategies))
		started := time.Now()

		db, err := attempt(ctx, o.opener, uri, s)
		if o.observer != nil {
			o.observer.ObserveBootstrap(s.Name, err == nil)
		}
		if err != nil {
			lastErr = fmt.Errorf("strategy %q: %w", s.Name, err)
			log.Warn(ctx, "strategy failed", "strategy", s.Name, "error", truncate(err.Error(), 200))
			continue
		}

		log.Info(ctx, "strategy connected", "strategy", s.Name, "elapsed", time.Since(started))

		if o.migrate != nil {
			if err := o.migrate(ctx, db); err != nil {
				_ = db.Close()
				log.Error(ctx, "migrations failed, store unavailable", "error", err)
				return Unavailable(fmt.Errorf("migrations: %w", err))
			}
		}
		return Connected(db, s.Name)
	}

	log.Error(ctx, "all strategies failed, store unavailable", "error", lastErr)
	return Unavailable(lastErr)
}

func attempt(ctx context.Context, open Opener, uri string, s Strategy) (db *sql.DB, err error) {
	defer func() {
		// a misbehaving driver must not take the process down
		if r := recover(); r != nil {
			if db != nil {
				_ = db.Close()
			}
			db, err = nil, fmt.Errorf("panic during connect: %v", r)
		}
	}()

	dsn, err := s.Apply(uri)
	if err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	db, err = open(actx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(actx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
