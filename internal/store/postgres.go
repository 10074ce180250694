package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// Postgres stores ledger entries through a pgx connection pool.
type Postgres struct {
	pool      *pgxpool.Pool
	entries   string
	runs      string
	upsertSQL string
	log       zerolog.Logger
}

// OpenPostgres connects the pool and optionally creates the tables.
func OpenPostgres(ctx context.Context, opts Options, log zerolog.Logger) (*Postgres, error) {
	if opts.DatabaseURL == "" {
		return nil, errors.New("postgres backend needs DATABASE_URL or DB_* settings")
	}
	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", friendlyPgError(err))
	}
	entries, runs := tableNames(opts)
	p := &Postgres{
		pool:      pool,
		entries:   entries,
		runs:      runs,
		upsertSQL: postgresDialect.upsertSQL(entries),
		log:       log,
	}
	if opts.Migrate {
		for _, stmt := range postgresSchema(entries, runs) {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate postgres: %w", friendlyPgError(err))
			}
		}
	}
	log.Info().Str("table", entries).Msg("postgres store ready")
	return p, nil
}

// UpsertBatch writes rows in one transaction; a failing row rolls back the
// whole batch.
func (p *Postgres) UpsertBatch(ctx context.Context, rows []ledger.Entry) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", friendlyPgError(err))
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range rows {
		batch.Queue(p.upsertSQL, e.Values()...)
	}
	br := tx.SendBatch(ctx, batch)
	affected := 0
	for i := range rows {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("row %d (%s): %w", rows[i].RowNo, rows[i].RowKey, friendlyPgError(err))
		}
		affected += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", friendlyPgError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", friendlyPgError(err))
	}
	return affected, nil
}

// RecordRun stores one import run row.
func (p *Postgres) RecordRun(ctx context.Context, run ledger.ImportRun) error {
	if _, err := p.pool.Exec(ctx, postgresDialect.insertRunSQL(p.runs), runArgs(run)...); err != nil {
		return friendlyPgError(err)
	}
	return nil
}

// Search returns one page of rows plus totals over the whole filter.
func (p *Postgres) Search(ctx context.Context, f ledger.SearchFilter) (ledger.SearchResult, error) {
	page, pageArgs, agg, aggArgs := postgresDialect.searchSQL(p.entries, f)

	var res ledger.SearchResult
	total, sums, err := scanAggregate(p.pool.QueryRow(ctx, agg, aggArgs...))
	if err != nil {
		return res, fmt.Errorf("search totals: %w", friendlyPgError(err))
	}
	res.Total, res.Sum = total, sums

	rows, err := p.pool.Query(ctx, page, pageArgs...)
	if err != nil {
		return res, fmt.Errorf("search rows: %w", friendlyPgError(err))
	}
	defer rows.Close()
	res.Rows = []ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return res, fmt.Errorf("scan entry: %w", err)
		}
		res.Rows = append(res.Rows, e)
	}
	if err := rows.Err(); err != nil {
		return res, friendlyPgError(err)
	}
	return res, nil
}

// Wipe deletes the rows selected by req.
func (p *Postgres) Wipe(ctx context.Context, req ledger.WipeRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	q, args := postgresDialect.wipeSQL(p.entries, req)
	tag, err := p.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, friendlyPgError(err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

// friendlyPgError prefixes server errors with a readable explanation.
func friendlyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	var msg string
	switch pgErr.Code {
	case "42P01":
		msg = "ledger table is missing; run the schema migration"
	case "42703":
		msg = "ledger table is missing a column; run the schema migration"
	case "23505":
		msg = "a record with the same unique value already exists"
	case "23502", "23514", "22P02", "22007", "22008", "22003":
		msg = "some fields have invalid values"
	case "53300":
		msg = "database has too many connections"
	case "57014":
		msg = "query was cancelled"
	default:
		msg = "database error"
	}
	return fmt.Errorf("%s (%s): %w", msg, pgErr.Code, err)
}
