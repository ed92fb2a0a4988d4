// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage.
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no C
// compiler is needed and cross-compilation just works.
//
// LAYERING INSIDE THIS PACKAGE:
//   - sqlx wraps database/sql so rows scan straight into structs (db:"..." tags)
//   - goqu builds the dynamic SELECTs: it turns a query.Filter into a WHERE
//     clause, so every predicate kind is translated in exactly one place
//   - plain SQL strings are used where the statement never changes shape
//     (inserts, updates, deletes)
//
// UNIQUENESS IS ENFORCED HERE:
// snippets.slug, tags.name, users.email and users.github_id carry UNIQUE
// constraints. A write that violates one comes back as an
// apperror.ErrDuplicateKey naming the column, never as a generic failure.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	// Registers the "sqlite3" dialect with goqu (placeholders, quoting, booleans).
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"

	// The driver registers itself with database/sql as "sqlite" at init time.
	// We also use its Error type to detect constraint violations.
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/snippet-share/internal/apperror"
)

const (
	driverName  = "sqlite"
	dialectName = "sqlite3"
	memoryPath  = ":memory:"
)

// DB wraps a sqlx connection pool and provides repository methods.
// One DB value implements SnippetRepository, TagRepository and UserRepository.
type DB struct {
	conn    *sqlx.DB
	dialect goqu.DialectWrapper
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/snippets.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
//
// The path is passed as a "file:" URI ("file::memory:" for the in-memory case)
// so the query string is read as driver parameters, not as part of the name.
//
// _time_format=sqlite stores timestamps as "2006-01-02 15:04:05.999999999-07:00",
// which sorts correctly as text. All writes use UTC.
//
// PRAGMAS IN THE DSN:
// foreign_keys and busy_timeout are per-connection settings. Running
// "PRAGMA foreign_keys=ON" once would only configure whichever pooled
// connection happened to execute it. Passing them as _pragma parameters makes
// the driver apply them to every connection it opens.
func New(dbPath string) (*DB, error) {
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if dbPath != memoryPath {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	conn, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a brand new, empty database.
	// Pinning the pool to one connection keeps tests on a single database.
	if dbPath == memoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := NewFromConn(conn)
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// NewFromConn wraps an existing connection without migrating it.
// Tests use it with go-sqlmock.
func NewFromConn(conn *sqlx.DB) *DB {
	return &DB{
		conn:    conn,
		dialect: goqu.Dialect(dialectName),
	}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates all tables and indexes. It is idempotent.
//
// The snippet_tags.tag_id column deliberately has no foreign key: deleting a
// tag leaves existing snippet references in place.
func (db *DB) Migrate() error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				email         TEXT UNIQUE,
				photo         TEXT NOT NULL DEFAULT '',
				role          TEXT NOT NULL DEFAULT 'user',
				password_hash TEXT NOT NULL DEFAULT '',
				github_id     INTEGER UNIQUE,
				created_at    DATETIME NOT NULL,
				updated_at    DATETIME NOT NULL
			)`},
		{"tags", `
			CREATE TABLE IF NOT EXISTS tags (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL UNIQUE,
				usage_count INTEGER NOT NULL DEFAULT 0,
				user_id     TEXT NOT NULL,
				created_at  DATETIME NOT NULL,
				updated_at  DATETIME NOT NULL
			)`},
		{"snippets", `
			CREATE TABLE IF NOT EXISTS snippets (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL,
				description TEXT NOT NULL,
				code        TEXT NOT NULL,
				language    TEXT NOT NULL DEFAULT 'javascript',
				slug        TEXT NOT NULL UNIQUE,
				likes       INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
				is_public   BOOLEAN NOT NULL DEFAULT 1,
				user_id     TEXT NOT NULL,
				created_at  DATETIME NOT NULL,
				updated_at  DATETIME NOT NULL
			)`},
		{"snippets indexes", `
			CREATE INDEX IF NOT EXISTS idx_snippets_user_id ON snippets(user_id);
			CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
			CREATE INDEX IF NOT EXISTS idx_snippets_likes ON snippets(likes)`},
		{"snippet_tags", `
			CREATE TABLE IF NOT EXISTS snippet_tags (
				snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
				tag_id     TEXT NOT NULL,
				position   INTEGER NOT NULL,
				PRIMARY KEY (snippet_id, tag_id)
			);
			CREATE INDEX IF NOT EXISTS idx_snippet_tags_tag_id ON snippet_tags(tag_id)`},
		{"snippet_likes", `
			CREATE TABLE IF NOT EXISTS snippet_likes (
				snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL,
				position   INTEGER NOT NULL,
				PRIMARY KEY (snippet_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_snippet_likes_user_id ON snippet_likes(user_id)`},
		{"snippet_bookmarks", `
			CREATE TABLE IF NOT EXISTS snippet_bookmarks (
				snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL,
				position   INTEGER NOT NULL,
				PRIMARY KEY (snippet_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_snippet_bookmarks_user_id ON snippet_bookmarks(user_id)`},
	}

	for _, s := range stmts {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s: %w", s.name, err)
		}
	}
	return nil
}

// uniqueColumn reports the column behind a UNIQUE constraint violation.
//
// SQLite reports violations as "UNIQUE constraint failed: snippets.slug".
// We return "slug" so callers can tell a slug collision from, say, a
// duplicate tag name.
func uniqueColumn(err error) (string, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return "", false
	}

	const marker = "UNIQUE constraint failed: "
	msg := sqliteErr.Error()
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", true
	}
	col := msg[i+len(marker):]
	if end := strings.IndexAny(col, " ,("); end >= 0 {
		col = col[:end]
	}
	if dot := strings.LastIndex(col, "."); dot >= 0 {
		col = col[dot+1:]
	}
	return col, true
}

// duplicateOr converts a UNIQUE violation into an apperror.DuplicateKey and
// wraps every other error with context.
func duplicateOr(err error, resource, value, context string) error {
	if col, ok := uniqueColumn(err); ok {
		return apperror.DuplicateKey(resource, col, value)
	}
	return fmt.Errorf("sqlite: %s: %w", context, err)
}

// withTx runs fn inside a transaction, rolling back if fn fails.
//
// Everything inside fn must go through tx. With a single-connection pool
// (the in-memory case) a query on db.conn would wait forever for the
// connection the transaction is holding.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// Ping reports whether the database answers. Used by the readiness check.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}
