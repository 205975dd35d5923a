package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// connParams are appended to every DSN; foreign keys and busy timeout are
// per-connection settings.
const connParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	dsn := dataSourceName
	if strings.Contains(dsn, "?") {
		dsn += "&" + connParams
	} else {
		dsn += "?" + connParams
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if strings.HasPrefix(dataSourceName, ":memory:") || strings.Contains(dataSourceName, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema if it doesn't exist yet.
func (db *DB) RunMigrations() error {
	migration := `
-- Workers authenticate with a 4-digit PIN
CREATE TABLE IF NOT EXISTS workers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    pin TEXT NOT NULL UNIQUE,
    role TEXT NOT NULL CHECK(role IN ('WORKER', 'OWNER')),
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workers_name ON workers(name);

-- Recipe templates
CREATE TABLE IF NOT EXISTS recipes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    base_unit TEXT NOT NULL DEFAULT 'units',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS recipe_units (
    id TEXT PRIMARY KEY,
    recipe_id TEXT NOT NULL,
    name TEXT NOT NULL,
    ratio INTEGER NOT NULL CHECK(ratio >= 1),
    sort_order INTEGER NOT NULL,
    FOREIGN KEY (recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_recipe_units ON recipe_units(recipe_id);

CREATE TABLE IF NOT EXISTS recipe_steps (
    id TEXT PRIMARY KEY,
    recipe_id TEXT NOT NULL,
    name TEXT NOT NULL,
    sort_order INTEGER NOT NULL,
    type TEXT NOT NULL CHECK(type IN ('CHECK', 'COUNT')),
    unit_id TEXT,
    notes TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (recipe_id) REFERENCES recipes(id) ON DELETE CASCADE,
    FOREIGN KEY (unit_id) REFERENCES recipe_units(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_recipe_steps ON recipe_steps(recipe_id);

CREATE TABLE IF NOT EXISTS step_materials (
    id TEXT PRIMARY KEY,
    step_id TEXT NOT NULL,
    name TEXT NOT NULL,
    quantity_per_unit REAL NOT NULL CHECK(quantity_per_unit >= 0),
    unit TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL,
    FOREIGN KEY (step_id) REFERENCES recipe_steps(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_step_materials ON step_materials(step_id);

-- Batches; recipes with batches cannot be deleted
CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    recipe_id TEXT NOT NULL,
    name TEXT NOT NULL,
    target_quantity INTEGER NOT NULL CHECK(target_quantity > 0),
    base_unit TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('ACTIVE', 'COMPLETED', 'CANCELLED')),
    start_date TIMESTAMP NOT NULL,
    due_date TIMESTAMP,
    completed_date TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    metrc_batch_id TEXT,
    lot_number TEXT,
    strain TEXT,
    package_tag TEXT,
    FOREIGN KEY (recipe_id) REFERENCES recipes(id)
);
CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_batches_recipe ON batches(recipe_id);

CREATE TABLE IF NOT EXISTS batch_steps (
    id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL,
    recipe_step_id TEXT,
    name TEXT NOT NULL,
    sort_order INTEGER NOT NULL,
    type TEXT NOT NULL CHECK(type IN ('CHECK', 'COUNT')),
    unit_label TEXT NOT NULL,
    unit_ratio INTEGER NOT NULL DEFAULT 1 CHECK(unit_ratio >= 1),
    target_quantity INTEGER NOT NULL,
    completed_quantity INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('LOCKED', 'IN_PROGRESS', 'COMPLETED')),
    UNIQUE (batch_id, sort_order),
    FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE,
    FOREIGN KEY (recipe_step_id) REFERENCES recipe_steps(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_batch_steps ON batch_steps(batch_id);

-- Progress ledger; a worker with logs cannot be deleted
CREATE TABLE IF NOT EXISTS progress_logs (
    id TEXT PRIMARY KEY,
    batch_step_id TEXT NOT NULL,
    worker_id TEXT NOT NULL,
    quantity INTEGER NOT NULL CHECK(quantity > 0),
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (batch_step_id) REFERENCES batch_steps(id) ON DELETE CASCADE,
    FOREIGN KEY (worker_id) REFERENCES workers(id)
);
CREATE INDEX IF NOT EXISTS idx_logs_step ON progress_logs(batch_step_id);
CREATE INDEX IF NOT EXISTS idx_logs_worker ON progress_logs(worker_id, created_at);
CREATE INDEX IF NOT EXISTS idx_logs_created ON progress_logs(created_at);

CREATE TABLE IF NOT EXISTS batch_assignments (
    batch_id TEXT NOT NULL,
    worker_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (batch_id, worker_id),
    FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE,
    FOREIGN KEY (worker_id) REFERENCES workers(id) ON DELETE CASCADE
);

-- Shifts; at most one ACTIVE per worker
CREATE TABLE IF NOT EXISTS shifts (
    id TEXT PRIMARY KEY,
    worker_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('ACTIVE', 'COMPLETED')),
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (worker_id) REFERENCES workers(id)
);
CREATE INDEX IF NOT EXISTS idx_shifts_worker ON shifts(worker_id, started_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_shift ON shifts(worker_id) WHERE status = 'ACTIVE';

-- Activity log
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    activity_type TEXT NOT NULL,
    batch_id TEXT,
    worker_id TEXT,
    summary TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE SET NULL,
    FOREIGN KEY (worker_id) REFERENCES workers(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_batch ON activity_log(batch_id);
CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
