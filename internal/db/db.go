package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"eve-industry/internal/logger"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// DefaultPath returns industry.db in the working directory, falling back
// to the executable's directory.
func DefaultPath() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "industry.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "industry.db")
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// An empty path uses DefaultPath.
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath()
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS matchers (
				name         TEXT PRIMARY KEY,
				owner        INTEGER NOT NULL,
				kind         TEXT NOT NULL,
				data         TEXT NOT NULL,
				updated_at   TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_matchers_owner ON matchers(owner);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1 (matchers)")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS market_history (
				region_id   INTEGER NOT NULL,
				type_id     INTEGER NOT NULL,
				date        TEXT NOT NULL,
				average     REAL,
				highest     REAL,
				lowest      REAL,
				volume      INTEGER,
				order_count INTEGER,
				PRIMARY KEY (region_id, type_id, date)
			);

			CREATE TABLE IF NOT EXISTS market_history_meta (
				region_id  INTEGER NOT NULL,
				type_id    INTEGER NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (region_id, type_id)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (market history)")
	}

	if version < 3 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS compute_runs (
				id          TEXT PRIMARY KEY,
				timestamp   TEXT NOT NULL,
				kind        TEXT NOT NULL,
				owner       INTEGER NOT NULL,
				plan        TEXT NOT NULL DEFAULT '',
				count       INTEGER NOT NULL,
				top_value   REAL NOT NULL DEFAULT 0,
				total_value REAL NOT NULL DEFAULT 0,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				params_json TEXT DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_compute_runs_ts ON compute_runs(timestamp);

			CREATE TABLE IF NOT EXISTS advisory_results (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id            TEXT NOT NULL REFERENCES compute_runs(id),
				type_id           INTEGER,
				name              TEXT,
				tech_tier         TEXT,
				unit_cost         REAL,
				surcharge         REAL,
				secondary_sell    REAL,
				secondary_buy     REAL,
				hub_sell          REAL,
				hub_buy           REAL,
				monthly_volume    INTEGER,
				monthly_flow      REAL,
				profit            REAL,
				profit_rate       REAL,
				monthly_potential REAL,
				error             TEXT DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_advisory_run ON advisory_results(run_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (3);
		`)
		if err != nil {
			return fmt.Errorf("migration v3: %w", err)
		}
		logger.Info("DB", "Applied migration v3 (compute runs)")
	}

	return nil
}
