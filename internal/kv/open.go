package kv

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the backend named by driver: "memory", "postgres" or "sqlite".
// SQL backends are pinged and migrated before returning. The closer releases
// the underlying connection pool.
func Open(ctx context.Context, driver, dsn string) (Backend, io.Closer, error) {
	var (
		sqlDriver string
		dialect   Dialect
	)

	switch driver {
	case "", "memory":
		return NewMemBackend(), nopCloser{}, nil
	case string(Postgres):
		sqlDriver, dialect = "pgx", Postgres
	case string(SQLite):
		sqlDriver, dialect = "sqlite", SQLite
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == SQLite {
		// a single connection keeps ":memory:" databases shared across queries
		db.SetMaxOpenConns(1)
	}

	b := NewSQLBackend(db, dialect)
	if err := b.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := b.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return b, db, nil
}
