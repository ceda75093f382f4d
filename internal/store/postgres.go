package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/farm-ledger/internal/db"
	"github.com/sells-group/farm-ledger/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS farms (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	code       TEXT NOT NULL DEFAULT '',
	company_id BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sectors (
	id      BIGSERIAL PRIMARY KEY,
	farm_id BIGINT NOT NULL REFERENCES farms(id),
	name    TEXT NOT NULL,
	code    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS units (
	id        BIGSERIAL PRIMARY KEY,
	sector_id BIGINT NOT NULL REFERENCES sectors(id),
	name      TEXT NOT NULL,
	code      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS houses (
	id               BIGSERIAL PRIMARY KEY,
	unit_id          BIGINT NOT NULL REFERENCES units(id),
	name             TEXT NOT NULL,
	code             TEXT NOT NULL DEFAULT '',
	area             DOUBLE PRECISION NOT NULL CHECK (area > 0),
	analytic_account TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id                BIGSERIAL PRIMARY KEY,
	farm_id           BIGINT NOT NULL REFERENCES farms(id),
	name              TEXT NOT NULL,
	code              TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'draft',
	planned_start     TIMESTAMPTZ,
	actual_start      TIMESTAMPTZ,
	expected_finish   TIMESTAMPTZ,
	actual_finish     TIMESTAMPTZ,
	paused_date       TIMESTAMPTZ,
	total_paused_days INTEGER NOT NULL DEFAULT 0,
	avco_updated      BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS project_status_history (
	id         BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id),
	old_status TEXT NOT NULL DEFAULT '',
	new_status TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	changed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS house_assignments (
	id           BIGSERIAL PRIMARY KEY,
	project_id   BIGINT NOT NULL REFERENCES projects(id),
	house_id     BIGINT NOT NULL REFERENCES houses(id),
	product_id   BIGINT NOT NULL DEFAULT 0,
	expected_qty DOUBLE PRECISION NOT NULL DEFAULT 0,
	uom          TEXT NOT NULL DEFAULT '',
	season       TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	UNIQUE (project_id, house_id)
);

CREATE TABLE IF NOT EXISTS costs (
	id               BIGSERIAL PRIMARY KEY,
	project_id       BIGINT NOT NULL REFERENCES projects(id),
	name             TEXT NOT NULL DEFAULT '',
	cost_type        TEXT NOT NULL,
	state            TEXT NOT NULL DEFAULT 'draft',
	amount           DOUBLE PRECISION NOT NULL,
	cost_date        TIMESTAMPTZ NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	scope            JSONB NOT NULL DEFAULT '{}',
	payment_account  TEXT NOT NULL DEFAULT '',
	cost_account     TEXT NOT NULL DEFAULT '',
	order_id         BIGINT NOT NULL DEFAULT 0,
	harvest_entry_id BIGINT NOT NULL DEFAULT 0,
	journal_entry_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cost_allocations (
	id               BIGSERIAL PRIMARY KEY,
	cost_id          BIGINT NOT NULL REFERENCES costs(id),
	project_id       BIGINT NOT NULL,
	house_id         BIGINT NOT NULL,
	house_area       DOUBLE PRECISION NOT NULL,
	allocated_amount DOUBLE PRECISION NOT NULL,
	percentage       DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS harvest_entries (
	id                    BIGSERIAL PRIMARY KEY,
	assignment_id         BIGINT NOT NULL REFERENCES house_assignments(id),
	name                  TEXT NOT NULL DEFAULT '',
	harvest_date          TIMESTAMPTZ NOT NULL,
	quantity              DOUBLE PRECISION NOT NULL CHECK (quantity > 0),
	state                 TEXT NOT NULL DEFAULT 'done',
	notes                 TEXT NOT NULL DEFAULT '',
	remaining_cost_before DOUBLE PRECISION NOT NULL DEFAULT 0,
	allocated_cost        DOUBLE PRECISION NOT NULL DEFAULT 0,
	transfer_id           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS avco_audits (
	id                BIGSERIAL PRIMARY KEY,
	project_id        BIGINT NOT NULL REFERENCES projects(id),
	house_id          BIGINT NOT NULL,
	product_id        BIGINT NOT NULL,
	target_unit_cost  DOUBLE PRECISION NOT NULL,
	total_allocated   DOUBLE PRECISION NOT NULL,
	total_quantity    DOUBLE PRECISION NOT NULL,
	previous_price    DOUBLE PRECISION NOT NULL,
	harvest_entry_ids JSONB NOT NULL DEFAULT '[]',
	transfer_ids      JSONB NOT NULL DEFAULT '[]',
	layers            JSONB NOT NULL DEFAULT '[]',
	journal_entry_id  TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_orders (
	id               BIGSERIAL PRIMARY KEY,
	project_id       BIGINT NOT NULL REFERENCES projects(id),
	name             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT 'draft',
	is_direct        BOOLEAN NOT NULL DEFAULT false,
	requester_id     TEXT NOT NULL DEFAULT '',
	request_date     TIMESTAMPTZ NOT NULL,
	notes            TEXT NOT NULL DEFAULT '',
	scope            JSONB NOT NULL DEFAULT '{}',
	transfer_id      TEXT NOT NULL DEFAULT '',
	journal_entry_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS order_lines (
	id            BIGSERIAL PRIMARY KEY,
	order_id      BIGINT NOT NULL REFERENCES product_orders(id),
	product_id    BIGINT NOT NULL,
	quantity      DOUBLE PRECISION NOT NULL,
	unit_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	justification TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notes (
	id         BIGSERIAL PRIMARY KEY,
	entity     TEXT NOT NULL,
	entity_id  BIGINT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InTx runs fn inside a pgx transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repo) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, newPgRepo(tx)); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// pgRepo adds row locking and COPY-based allocation writes to sqlRepo.
type pgRepo struct {
	*sqlRepo
	q db.Querier
}

func newPgRepo(q db.Querier) *pgRepo {
	return &pgRepo{sqlRepo: &sqlRepo{x: pgExec{q: q}, prefix: "postgres"}, q: q}
}

func (r *pgRepo) LockAssignments(ctx context.Context, projectID int64) error {
	rows, err := r.q.Query(ctx, `SELECT id FROM house_assignments WHERE project_id = $1 FOR UPDATE`, projectID)
	if err != nil {
		return eris.Wrap(err, "postgres: lock assignments")
	}
	rows.Close()
	return eris.Wrap(rows.Err(), "postgres: lock assignments")
}

func (r *pgRepo) ReplaceAllocations(ctx context.Context, costID int64, rows []model.Allocation) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM cost_allocations WHERE cost_id = $1`, costID); err != nil {
		return eris.Wrap(err, "postgres: delete allocations")
	}
	_, err := db.CopyFrom(ctx, r.q, "cost_allocations", allocationColumns, allocationRows(costID, rows))
	return err
}

// pgExec adapts a db.Querier to execer.
type pgExec struct {
	q db.Querier
}

func (e pgExec) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := e.q.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e pgExec) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	return e.q.Query(ctx, rebind(query), args...)
}

func (e pgExec) queryRow(ctx context.Context, query string, args ...any) scannable {
	return e.q.QueryRow(ctx, rebind(query), args...)
}
