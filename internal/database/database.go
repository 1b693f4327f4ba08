package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dieter/internal/ledger"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SchemaVersion is written alongside every snapshot. Records carrying a
// different version are loaded as-is and logged; there is no migration step.
const SchemaVersion = 1

// Database wraps a *sql.DB holding named ledger snapshots. It implements
// ledger.Store and is safe for concurrent use because the underlying *sql.DB
// is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	loadSnapshotStmt *sql.Stmt
	saveSnapshotStmt *sql.Stmt
}

var _ ledger.Store = (*Database)(nil)

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures the snapshot table exists. It also applies lightweight pragmas
// (WAL, synchronous=NORMAL). Caller should Close() it when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer keeps snapshot saves strictly ordered
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates the snapshot table if it does not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	snapshotsTable := `
	CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.conn.Exec(snapshotsTable); err != nil {
		return err
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run.
func (db *Database) runMigrations() error {
	// Migration 1: schema_version column on snapshots
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('snapshots')
		WHERE name = 'schema_version'`).Scan(&columnExists)
	if err != nil {
		return err
	}

	if !columnExists {
		if _, err := db.conn.Exec("ALTER TABLE snapshots ADD COLUMN schema_version INTEGER NOT NULL DEFAULT 1"); err != nil {
			return err
		}
		db.logger.Info("Added schema_version column to snapshots table")
	}

	return nil
}

// prepareStatements prepares the load and save statements
func (db *Database) prepareStatements() error {
	var err error

	db.loadSnapshotStmt, err = db.conn.Prepare(`
		SELECT payload, schema_version FROM snapshots WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare load snapshot statement: %w", err)
	}

	db.saveSnapshotStmt, err = db.conn.Prepare(`
		INSERT INTO snapshots (name, payload, schema_version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload=excluded.payload,
			schema_version=excluded.schema_version,
			updated_at=excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare save snapshot statement: %w", err)
	}

	return nil
}

// Load returns the snapshot stored under name, or ledger.ErrNoSnapshot
func (db *Database) Load(name string) (*ledger.Snapshot, error) {
	var payload string
	var version int
	err := db.loadSnapshotStmt.QueryRow(name).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %q: %w", name, err)
	}

	if version != SchemaVersion {
		db.logger.WithFields(logrus.Fields{
			"store":            name,
			"schema_version":   version,
			"expected_version": SchemaVersion,
		}).Warn("Snapshot schema version mismatch, loading without migration")
	}

	return ledger.DecodeSnapshot([]byte(payload))
}

// Save replaces the snapshot stored under name
func (db *Database) Save(name string, snap *ledger.Snapshot) error {
	data, err := ledger.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if _, err := db.saveSnapshotStmt.Exec(name, string(data), SchemaVersion, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write snapshot %q: %w", name, err)
	}
	return nil
}

// putRaw writes an unvalidated payload, bypassing the snapshot encoder
func (db *Database) putRaw(name, payload string, version int) error {
	_, err := db.saveSnapshotStmt.Exec(name, payload, version, time.Now().UTC())
	return err
}

// UpdatedAt reports when the named snapshot was last written
func (db *Database) UpdatedAt(name string) (time.Time, error) {
	var updated time.Time
	err := db.conn.QueryRow("SELECT updated_at FROM snapshots WHERE name = ?", name).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ledger.ErrNoSnapshot
	}
	return updated, err
}

// Ping checks the connection; used by the health endpoint
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.loadSnapshotStmt,
		db.saveSnapshotStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
