package store

import "fmt"

func postgresSchema(entries, runs string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	row_key       text PRIMARY KEY,
	tx_date       date NOT NULL,
	customer_code text NOT NULL DEFAULT '',
	customer_name text NOT NULL DEFAULT '',
	doc_no        text NOT NULL DEFAULT '',
	line_no       text NOT NULL DEFAULT '',
	item_name     text NOT NULL DEFAULT '',
	spec          text NOT NULL DEFAULT '',
	unit          text NOT NULL DEFAULT '',
	qty           numeric,
	unit_price    numeric,
	amount        numeric,
	prev_balance  numeric,
	deposit       numeric,
	curr_balance  numeric,
	description   text NOT NULL DEFAULT '',
	row_no        integer NOT NULL DEFAULT 0,
	updated_at    timestamptz NOT NULL DEFAULT now()
)`, entries),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS ledger_entries_tx_date_idx ON %s (tx_date)`, entries),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS ledger_entries_customer_name_idx ON %s (customer_name)`, entries),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id      text PRIMARY KEY,
	file_name   text NOT NULL,
	file_hash   text NOT NULL,
	base_date   text NOT NULL DEFAULT '',
	total       integer NOT NULL,
	valid       integer NOT NULL,
	upserted    integer NOT NULL,
	status      text NOT NULL,
	stage       text NOT NULL DEFAULT '',
	error       text NOT NULL DEFAULT '',
	started_at  timestamptz NOT NULL,
	finished_at timestamptz NOT NULL
)`, runs),
	}
}

func sqliteSchema(entries, runs string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	row_key       TEXT PRIMARY KEY,
	tx_date       TEXT NOT NULL,
	customer_code TEXT NOT NULL DEFAULT '',
	customer_name TEXT NOT NULL DEFAULT '',
	doc_no        TEXT NOT NULL DEFAULT '',
	line_no       TEXT NOT NULL DEFAULT '',
	item_name     TEXT NOT NULL DEFAULT '',
	spec          TEXT NOT NULL DEFAULT '',
	unit          TEXT NOT NULL DEFAULT '',
	qty           TEXT,
	unit_price    TEXT,
	amount        TEXT,
	prev_balance  TEXT,
	deposit       TEXT,
	curr_balance  TEXT,
	description   TEXT NOT NULL DEFAULT '',
	row_no        INTEGER NOT NULL DEFAULT 0,
	updated_at    TEXT NOT NULL
)`, entries),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS ledger_entries_tx_date_idx ON %s (tx_date)`, entries),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT PRIMARY KEY,
	file_name   TEXT NOT NULL,
	file_hash   TEXT NOT NULL,
	base_date   TEXT NOT NULL DEFAULT '',
	total       INTEGER NOT NULL,
	valid       INTEGER NOT NULL,
	upserted    INTEGER NOT NULL,
	status      TEXT NOT NULL,
	stage       TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
)`, runs),
	}
}
