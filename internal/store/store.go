// Package store holds the ledger persistence backends: Postgres through pgx,
// a PostgREST gateway over HTTP, and an embedded SQLite file.
package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// Backend is everything the service runtime needs from a store.
type Backend interface {
	UpsertBatch(ctx context.Context, rows []ledger.Entry) (int, error)
	RecordRun(ctx context.Context, run ledger.ImportRun) error
	Search(ctx context.Context, f ledger.SearchFilter) (ledger.SearchResult, error)
	Wipe(ctx context.Context, req ledger.WipeRequest) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Options selects and configures a backend.
type Options struct {
	Backend      string
	DatabaseURL  string
	SQLitePath   string
	PostgRESTURL string
	PostgRESTKey string
	Table        string
	RunsTable    string
	// Migrate creates missing tables on open (SQL backends only).
	Migrate bool
}

// OptionsFrom merges services.yaml overrides over the environment.
func OptionsFrom(cfg map[string]interface{}, env config.Settings) Options {
	return Options{
		Backend:      config.String(cfg, "backend", env.StoreBackend),
		DatabaseURL:  env.DatabaseURL,
		SQLitePath:   config.String(cfg, "sqlite_path", env.SQLitePath),
		PostgRESTURL: config.String(cfg, "postgrest_url", env.PostgRESTURL),
		PostgRESTKey: env.PostgRESTKey,
		Table:        config.String(cfg, "table", config.DefaultTable),
		RunsTable:    config.String(cfg, "runs_table", config.DefaultRunsTable),
		Migrate:      config.Bool(cfg, "migrate", false),
	}
}

// Open connects the backend named in opts.
func Open(ctx context.Context, opts Options, log zerolog.Logger) (Backend, error) {
	switch opts.Backend {
	case config.BackendPostgres, "":
		return OpenPostgres(ctx, opts, log)
	case config.BackendSQLite:
		return OpenSQLite(ctx, opts, log)
	case config.BackendPostgREST:
		return NewPostgREST(opts, nil, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// tableNames returns quoted identifiers for the entries and runs tables.
func tableNames(opts Options) (entries, runs string) {
	entries, runs = opts.Table, opts.RunsTable
	if entries == "" {
		entries = config.DefaultTable
	}
	if runs == "" {
		runs = config.DefaultRunsTable
	}
	return pq.QuoteIdentifier(entries), pq.QuoteIdentifier(runs)
}
