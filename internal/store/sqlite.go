package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// A single connection serializes writers, which is what keeps harvest
// re-derivation and AVCO runs from interleaving.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS farms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	code       TEXT NOT NULL DEFAULT '',
	company_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sectors (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	farm_id INTEGER NOT NULL REFERENCES farms(id),
	name    TEXT NOT NULL,
	code    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS units (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	sector_id INTEGER NOT NULL REFERENCES sectors(id),
	name      TEXT NOT NULL,
	code      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS houses (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	unit_id          INTEGER NOT NULL REFERENCES units(id),
	name             TEXT NOT NULL,
	code             TEXT NOT NULL DEFAULT '',
	area             REAL NOT NULL CHECK (area > 0),
	analytic_account TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	farm_id           INTEGER NOT NULL REFERENCES farms(id),
	name              TEXT NOT NULL,
	code              TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'draft',
	planned_start     DATETIME,
	actual_start      DATETIME,
	expected_finish   DATETIME,
	actual_finish     DATETIME,
	paused_date       DATETIME,
	total_paused_days INTEGER NOT NULL DEFAULT 0,
	avco_updated      BOOLEAN NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS project_status_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	old_status TEXT NOT NULL DEFAULT '',
	new_status TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	changed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS house_assignments (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id   INTEGER NOT NULL REFERENCES projects(id),
	house_id     INTEGER NOT NULL REFERENCES houses(id),
	product_id   INTEGER NOT NULL DEFAULT 0,
	expected_qty REAL NOT NULL DEFAULT 0,
	uom          TEXT NOT NULL DEFAULT '',
	season       TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	UNIQUE (project_id, house_id)
);

CREATE TABLE IF NOT EXISTS costs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id       INTEGER NOT NULL REFERENCES projects(id),
	name             TEXT NOT NULL DEFAULT '',
	cost_type        TEXT NOT NULL,
	state            TEXT NOT NULL DEFAULT 'draft',
	amount           REAL NOT NULL,
	cost_date        DATETIME NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	scope            TEXT NOT NULL DEFAULT '{}',
	payment_account  TEXT NOT NULL DEFAULT '',
	cost_account     TEXT NOT NULL DEFAULT '',
	order_id         INTEGER NOT NULL DEFAULT 0,
	harvest_entry_id INTEGER NOT NULL DEFAULT 0,
	journal_entry_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cost_allocations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	cost_id          INTEGER NOT NULL REFERENCES costs(id),
	project_id       INTEGER NOT NULL,
	house_id         INTEGER NOT NULL,
	house_area       REAL NOT NULL,
	allocated_amount REAL NOT NULL,
	percentage       REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS harvest_entries (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	assignment_id         INTEGER NOT NULL REFERENCES house_assignments(id),
	name                  TEXT NOT NULL DEFAULT '',
	harvest_date          DATETIME NOT NULL,
	quantity              REAL NOT NULL CHECK (quantity > 0),
	state                 TEXT NOT NULL DEFAULT 'done',
	notes                 TEXT NOT NULL DEFAULT '',
	remaining_cost_before REAL NOT NULL DEFAULT 0,
	allocated_cost        REAL NOT NULL DEFAULT 0,
	transfer_id           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS avco_audits (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id        INTEGER NOT NULL REFERENCES projects(id),
	house_id          INTEGER NOT NULL,
	product_id        INTEGER NOT NULL,
	target_unit_cost  REAL NOT NULL,
	total_allocated   REAL NOT NULL,
	total_quantity    REAL NOT NULL,
	previous_price    REAL NOT NULL,
	harvest_entry_ids TEXT NOT NULL DEFAULT '[]',
	transfer_ids      TEXT NOT NULL DEFAULT '[]',
	layers            TEXT NOT NULL DEFAULT '[]',
	journal_entry_id  TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS product_orders (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id       INTEGER NOT NULL REFERENCES projects(id),
	name             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT 'draft',
	is_direct        BOOLEAN NOT NULL DEFAULT 0,
	requester_id     TEXT NOT NULL DEFAULT '',
	request_date     DATETIME NOT NULL,
	notes            TEXT NOT NULL DEFAULT '',
	scope            TEXT NOT NULL DEFAULT '{}',
	transfer_id      TEXT NOT NULL DEFAULT '',
	journal_entry_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS order_lines (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id      INTEGER NOT NULL REFERENCES product_orders(id),
	product_id    INTEGER NOT NULL,
	quantity      REAL NOT NULL,
	unit_price    REAL NOT NULL DEFAULT 0,
	justification TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	entity     TEXT NOT NULL,
	entity_id  INTEGER NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sectors_farm ON sectors(farm_id);
CREATE INDEX IF NOT EXISTS idx_units_sector ON units(sector_id);
CREATE INDEX IF NOT EXISTS idx_houses_unit ON houses(unit_id);
CREATE INDEX IF NOT EXISTS idx_costs_project ON costs(project_id);
CREATE INDEX IF NOT EXISTS idx_allocations_cost ON cost_allocations(cost_id);
CREATE INDEX IF NOT EXISTS idx_allocations_project_house ON cost_allocations(project_id, house_id);
CREATE INDEX IF NOT EXISTS idx_harvest_assignment_date ON harvest_entries(assignment_id, harvest_date, id);
CREATE INDEX IF NOT EXISTS idx_avco_audits_project ON avco_audits(project_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_notes_entity ON notes(entity, entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a database transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repo) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, &sqlRepo{x: sqlTxExec{tx: tx}, prefix: "sqlite"}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// sqlTxExec adapts *sql.Tx to execer.
type sqlTxExec struct {
	tx *sql.Tx
}

func (e sqlTxExec) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := e.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e sqlTxExec) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	rows, err := e.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows: rows}, nil
}

func (e sqlTxExec) queryRow(ctx context.Context, query string, args ...any) scannable {
	return e.tx.QueryRowContext(ctx, query, args...)
}

type sqlRows struct {
	rows *sql.Rows
}

func (r sqlRows) Next() bool             { return r.rows.Next() }
func (r sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRows) Err() error             { return r.rows.Err() }
func (r sqlRows) Close()                 { _ = r.rows.Close() }
