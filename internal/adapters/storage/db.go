package storage

import (
	"database/sql"
	"fmt"
)

// migration is a single schema change. Migrations are applied in order and
// each one runs at most once per database.
type migration struct {
	version int
	apply   func(*sql.DB) error
}

// migrations is the ordered chain. Version 1 is the baseline schema; later
// entries are additive changes only.
var migrations = []migration{
	{version: 1, apply: migrateBaseline},
}

// LatestSchemaVersion returns the highest known migration version.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the database's current schema version.
// Returns 0 for a database that has never been migrated.
// PRE: db is a valid database connection
// POST: returns current version without modifying the database
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var version int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// MigrateDB brings the database up to the latest schema version.
// Safe to run repeatedly; already-applied migrations are skipped.
// PRE: db is a valid database connection; dbPath identifies it in errors
// POST: schema is at LatestSchemaVersion(), WAL and foreign keys enabled
func MigrateDB(db *sql.DB, dbPath string) error {
	// Pragmas are per-connection concerns but setting them here covers the
	// common single-connection case and makes fresh files WAL from the start.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("migrate %s: failed to enable WAL mode: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("migrate %s: failed to enable foreign keys: %w", dbPath, err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("migrate %s: failed to create schema_version: %w", dbPath, err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migrate %s: migration %d failed: %w", dbPath, m.version, err)
		}
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("migrate %s: failed to record migration %d: %w", dbPath, m.version, err)
		}
	}
	return nil
}

// migrateBaseline creates the full initial schema. Everything is IF NOT
// EXISTS so it also adopts pre-versioning databases without data loss.
func migrateBaseline(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		teacher_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT
	);

	CREATE TABLE IF NOT EXISTS student (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		school TEXT NOT NULL DEFAULT '',
		grade TEXT NOT NULL DEFAULT '',
		default_rate_item TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS enrollment (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		class_name TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		slots_json TEXT NOT NULL DEFAULT '[]',
		weekdays_json TEXT NOT NULL DEFAULT '[]',
		start_date TEXT NOT NULL,
		end_date TEXT,
		rate_item TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (student_id) REFERENCES student(id)
	);

	CREATE TABLE IF NOT EXISTS ledger_cell (
		student_id TEXT NOT NULL,
		year_month TEXT NOT NULL,
		class_name TEXT NOT NULL,
		date_key TEXT NOT NULL,
		value REAL,
		memo TEXT NOT NULL DEFAULT '',
		homework INTEGER NOT NULL DEFAULT 0,
		cell_color TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (student_id, class_name, date_key)
	);

	CREATE TABLE IF NOT EXISTS roster_record (
		id TEXT PRIMARY KEY,
		class_date TEXT NOT NULL,
		student_id TEXT NOT NULL,
		student_name TEXT NOT NULL DEFAULT '',
		class_id TEXT NOT NULL DEFAULT '',
		class_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		check_in_time TEXT,
		check_out_time TEXT,
		note TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (class_date, student_id, class_id)
	);

	CREATE TABLE IF NOT EXISTS attendance_history (
		id TEXT PRIMARY KEY,
		class_date TEXT NOT NULL,
		student_id TEXT NOT NULL,
		class_id TEXT NOT NULL DEFAULT '',
		previous_status TEXT,
		new_status TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS compensation_config (
		id TEXT PRIMARY KEY,
		teacher_id TEXT,
		fee_percent REAL NOT NULL DEFAULT 0,
		items_json TEXT NOT NULL DEFAULT '[]',
		blog_bonus INTEGER NOT NULL DEFAULT 0,
		retention_bonus INTEGER NOT NULL DEFAULT 0,
		retention_target_rate REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS monthly_settlement (
		teacher_id TEXT NOT NULL,
		month TEXT NOT NULL,
		has_blog_bonus INTEGER NOT NULL DEFAULT 0,
		has_retention_bonus INTEGER NOT NULL DEFAULT 0,
		other_amount INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		is_finalized INTEGER NOT NULL DEFAULT 0,
		finalized_at TEXT,
		frozen_config_json TEXT,
		PRIMARY KEY (teacher_id, month)
	);

	CREATE TABLE IF NOT EXISTS enrollment_term (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		month TEXT NOT NULL,
		term_number INTEGER NOT NULL,
		billed_amount INTEGER NOT NULL DEFAULT 0,
		unit_price INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		billing_record_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_period (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		category TEXT NOT NULL,
		month INTEGER NOT NULL,
		ranges_json TEXT NOT NULL DEFAULT '[]',
		sessions_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS holiday (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		last_attempted_at TEXT,
		created_at TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	indexes := `
	CREATE INDEX IF NOT EXISTS idx_ledger_cell_month ON ledger_cell(student_id, year_month);
	CREATE INDEX IF NOT EXISTS idx_roster_record_date ON roster_record(class_date);
	CREATE INDEX IF NOT EXISTS idx_history_student ON attendance_history(student_id, class_date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_term_active_billing
		ON enrollment_term(billing_record_id)
		WHERE status = 'active' AND billing_record_id != '';
	CREATE INDEX IF NOT EXISTS idx_enrollment_student ON enrollment(student_id);
	`
	if _, err := db.Exec(indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
