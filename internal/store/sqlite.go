package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// SQLite stores ledger entries in a local database file.
type SQLite struct {
	db        *sql.DB
	path      string
	entries   string
	runs      string
	upsertSQL string
	log       zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database file and its tables.
// Tables are always created since the file is owned by this process.
func OpenSQLite(ctx context.Context, opts Options, log zerolog.Logger) (*SQLite, error) {
	path := opts.SQLitePath
	if path == "" {
		path = "ledger.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	entries, runs := tableNames(opts)
	for _, stmt := range sqliteSchema(entries, runs) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	log.Info().Str("path", path).Msg("sqlite store ready")
	return &SQLite{
		db:        db,
		path:      path,
		entries:   entries,
		runs:      runs,
		upsertSQL: sqliteDialect.upsertSQL(entries),
		log:       log,
	}, nil
}

// UpsertBatch writes rows in one transaction.
func (s *SQLite) UpsertBatch(ctx context.Context, rows []ledger.Entry) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	affected := 0
	for _, e := range rows {
		res, err := stmt.ExecContext(ctx, e.Values()...)
		if err != nil {
			return 0, fmt.Errorf("row %d (%s): %w", e.RowNo, e.RowKey, err)
		}
		n, _ := res.RowsAffected()
		affected += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return affected, nil
}

// RecordRun stores one import run row.
func (s *SQLite) RecordRun(ctx context.Context, run ledger.ImportRun) error {
	_, err := s.db.ExecContext(ctx, sqliteDialect.insertRunSQL(s.runs), runArgs(run)...)
	return err
}

// Search returns one page of rows plus totals over the whole filter.
func (s *SQLite) Search(ctx context.Context, f ledger.SearchFilter) (ledger.SearchResult, error) {
	page, pageArgs, agg, aggArgs := sqliteDialect.searchSQL(s.entries, f)

	var res ledger.SearchResult
	aggRows, err := s.db.QueryContext(ctx, agg, aggArgs...)
	if err != nil {
		return res, fmt.Errorf("search totals: %w", err)
	}
	total, sums, err := sumRows(aggRows)
	aggRows.Close()
	if err != nil {
		return res, fmt.Errorf("search totals: %w", err)
	}
	res.Total, res.Sum = total, sums

	rows, err := s.db.QueryContext(ctx, page, pageArgs...)
	if err != nil {
		return res, fmt.Errorf("search rows: %w", err)
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
	return res, rows.Err()
}

// Wipe deletes the rows selected by req.
func (s *SQLite) Wipe(ctx context.Context, req ledger.WipeRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	q, args := sqliteDialect.wipeSQL(s.entries, req)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("close sqlite")
	}
}
