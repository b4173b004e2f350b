package counter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens a SQLite database with a single connection, applies the
// pragmas the store relies on, and migrates the counter table.
func OpenSQLite(ctx context.Context, dsn string, opts SQLOptions) (*SQLStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open sqlite %s: %v", ErrUnavailable, dsn, err)
	}

	// Single writer connection for SQLite.
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("%w: exec %q: %v", ErrUnavailable, p, err)
		}
	}

	opts.Dialect = DialectSQLite
	return openSQL(ctx, db, opts)
}

// OpenPostgres opens a PostgreSQL pool through the pgx stdlib driver and
// migrates the counter table.
func OpenPostgres(ctx context.Context, dsn string, opts SQLOptions) (*SQLStore, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open postgres: %v", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%w: ping postgres: %v", ErrUnavailable, err)
	}

	opts.Dialect = DialectPostgres
	return openSQL(ctx, db, opts)
}

func openSQL(ctx context.Context, db *sql.DB, opts SQLOptions) (*SQLStore, *sql.DB, error) {
	store, err := NewSQLStore(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}
