// Package xrefdb implements the Cross-Reference Database (spec §4.5): the six logical maps
// of §3, persisted to a single SQLite file via github.com/ncruces/go-sqlite3, a pure-Go
// (wazero-backed) driver that needs no cgo -- the same choice the teacher makes for its own
// issue database.
package xrefdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/mod/semver"

	"github.com/untoldecay/elixir/internal/types"
)

// DB is a handle on one project's cross-reference database.
type DB struct {
	conn *sql.DB
}

// Open creates (if absent) and opens the database file at path, applies the schema, and
// checks the persisted schema version for compatibility.
func Open(ctx context.Context, path string) (*DB, error) {
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", types.ErrDatabaseBusy, path, err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: applying schema: %w", types.ErrDatabaseCorrupt, err)
	}

	var version string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err := db.conn.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion)
		if err != nil {
			return fmt.Errorf("%w: recording schema version: %w", types.ErrDatabaseCorrupt, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("%w: reading schema version: %w", types.ErrDatabaseCorrupt, err)
	}

	if semver.Compare(normalizeVersion(version), normalizeVersion(SchemaVersion)) > 0 {
		return fmt.Errorf("%w: database schema %s is newer than this binary supports (%s)",
			types.ErrDatabaseCorrupt, version, SchemaVersion)
	}
	return nil
}

func normalizeVersion(v string) string {
	if len(v) == 0 || v[0] != 'v' {
		return "v" + v
	}
	return v
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a transaction, committing on success and rolling back on any error
// or panic, the same discipline the teacher's RunInTransaction applies. The single
// max-open-conns(1) connection already serialises every writer (spec §5: "the coordinator
// thread is the only writer"), so a plain BEGIN is sufficient here.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", types.ErrDatabaseBusy, err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", types.ErrDatabaseBusy, err)
	}
	return nil
}
