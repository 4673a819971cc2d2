package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"tasksync/internal/utils"
)

// Database wraps sql.DB with helper methods for schema management
type Database struct {
	*sql.DB
	path string
}

// InitDatabase opens (creating if needed) the SQLite database at dbPath and
// sets up all tables. An empty dbPath selects the XDG data location.
func InitDatabase(dbPath string, busyTimeoutMS int) (*Database, error) {
	dbPath, err := GetDatabasePath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	if err := utils.EnsureParentDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", buildDSN(dbPath, busyTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	database := &Database{
		DB:   db,
		path: dbPath,
	}

	if err := database.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// GetDatabasePath returns the path to the SQLite database file
// Priority: customPath > $XDG_DATA_HOME/tasksync/tasks.db > ~/.local/share/tasksync/tasks.db
func GetDatabasePath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}

	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "tasksync", "tasks.db"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".local", "share", "tasksync", "tasks.db"), nil
}

// buildDSN attaches pragmas to the DSN so that every pooled connection gets
// them, not only the first one. _txlock=immediate makes BEGIN take the write
// lock up front, so two writers queue on busy_timeout instead of deadlocking
// on a lock upgrade.
func buildDSN(path string, busyTimeoutMS int) string {
	q := url.Values{}
	for _, pragma := range PragmaStatements(busyTimeoutMS) {
		q.Add("_pragma", pragma)
	}
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// initializeSchema creates all tables and indexes
func (db *Database) initializeSchema() error {
	for _, schema := range AllTableSchemas() {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, index := range AllIndexes() {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := db.recordSchemaVersion(); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return nil
}

// recordSchemaVersion records the current schema version in the database
func (db *Database) recordSchemaVersion() error {
	_, err := db.Exec(
		"INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)",
		SchemaVersion,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the current schema version from the database
func (db *Database) GetSchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Path returns the filesystem path to the database file
func (db *Database) Path() string {
	return db.path
}

// Vacuum rebuilds the database file, returning pages freed by cleared
// providers to the filesystem. It must not run inside a transaction.
func (db *Database) Vacuum() error {
	if _, err := db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// countRows runs a COUNT(*) query
func (db *Database) countRows(query string, args ...interface{}) (int, error) {
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
