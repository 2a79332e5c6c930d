package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	txTimeout    = 5 * time.Second
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	scope       TEXT      NOT NULL,
	entry_key   TEXT      NOT NULL,
	entry_value TEXT      NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (scope, entry_key)
)`

// SQLBackend keeps entries in a single table. Queries are written with
// Postgres placeholders and rebound for SQLite.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	locks   scopeLocks
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLBackend(db *sql.DB, dialect Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect, now: time.Now}
}

// Migrate creates the entries table if it does not exist yet.
func (b *SQLBackend) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if _, err := b.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("migrate kv_entries: %w", describe(err))
		}
		return nil
	})
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return b.db.PingContext(ctx)
	})
}

func (b *SQLBackend) Get(ctx context.Context, scope, key string) (string, bool, error) {
	return b.get(ctx, b.db, scope, key)
}

func (b *SQLBackend) Set(ctx context.Context, scope, key, value string) error {
	return b.set(ctx, b.db, scope, key, value)
}

func (b *SQLBackend) Remove(ctx context.Context, scope, key string) error {
	return b.remove(ctx, b.db, scope, key)
}

// Update runs fn inside one database transaction. Updates of the same scope
// are serialized in process, and on Postgres also across processes by a
// transaction-scoped advisory lock.
func (b *SQLBackend) Update(ctx context.Context, scope string, fn TxFunc) error {
	unlock := b.locks.lock(scope)
	defer unlock()

	return withTimeout(ctx, txTimeout, func(ctx context.Context) error {
		tx, err := b.db.BeginTx(ctx, b.txOptions())
		if err != nil {
			return fmt.Errorf("kv begin: %w", describe(err))
		}
		defer func() { _ = tx.Rollback() }()

		if b.dialect == Postgres {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
				return fmt.Errorf("kv lock scope: %w", describe(err))
			}
		}

		if err := fn(ctx, sqlTx{b: b, q: tx, scope: scope}); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("kv commit: %w", describe(err))
		}
		return nil
	})
}

// txOptions leaves SQLite on its default; its single connection already
// serializes transactions.
func (b *SQLBackend) txOptions() *sql.TxOptions {
	if b.dialect == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return nil
}

type sqlTx struct {
	b     *SQLBackend
	q     querier
	scope string
}

func (t sqlTx) Get(ctx context.Context, key string) (string, bool, error) {
	return t.b.get(ctx, t.q, t.scope, key)
}

func (t sqlTx) Set(ctx context.Context, key, value string) error {
	return t.b.set(ctx, t.q, t.scope, key, value)
}

func (t sqlTx) Remove(ctx context.Context, key string) error {
	return t.b.remove(ctx, t.q, t.scope, key)
}

func (b *SQLBackend) get(ctx context.Context, q querier, scope, key string) (string, bool, error) {
	var v string

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return q.QueryRowContext(ctx, b.rebind(`
			SELECT entry_value
			FROM kv_entries
			WHERE scope = $1 AND entry_key = $2
		`), scope, key).Scan(&v)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, describe(err))
	}
	return v, true, nil
}

func (b *SQLBackend) set(ctx context.Context, q querier, scope, key, value string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := q.ExecContext(ctx, b.rebind(`
			INSERT INTO kv_entries (scope, entry_key, entry_value, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (scope, entry_key)
			DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at
		`), scope, key, value, b.now().UTC())
		if err != nil {
			return fmt.Errorf("kv set %q: %w", key, describe(err))
		}
		return nil
	})
}

func (b *SQLBackend) remove(ctx context.Context, q querier, scope, key string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := q.ExecContext(ctx, b.rebind(`
			DELETE FROM kv_entries
			WHERE scope = $1 AND entry_key = $2
		`), scope, key)
		if err != nil {
			return fmt.Errorf("kv remove %q: %w", key, describe(err))
		}
		return nil
	})
}

var pgPlaceholder = regexp.MustCompile(`\$\d+`)

func (b *SQLBackend) rebind(q string) string {
	if b.dialect == SQLite {
		return pgPlaceholder.ReplaceAllString(q, "?")
	}
	return q
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

// describe prefixes Postgres errors with their SQLSTATE so logs carry it.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("sqlstate %s: %w", pgErr.Code, err)
	}
	return err
}
