package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Dialect selects SQL placeholder syntax.
type Dialect string

const (
	// DialectPostgres targets PostgreSQL through the pgx database/sql driver.
	DialectPostgres Dialect = "postgres"
	// DialectSQLite targets SQLite through modernc.org/sqlite.
	DialectSQLite Dialect = "sqlite"
)

const defaultSQLTable = "goguard_counters"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore implements [Store] on a relational table:
//
//	key TEXT PRIMARY KEY, count BIGINT, expires_at BIGINT (unix millis)
//
// IncrementOrCreate is a single INSERT ... ON CONFLICT DO UPDATE ... RETURNING
// statement, which both PostgreSQL and SQLite execute atomically per row.
// Expired rows are treated as absent and overwritten in place.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time

	qGet    string
	qUpsert string
	qExpire string
	qDelete string
	qSweep  string
}

// SQLOptions configures [NewSQLStore].
type SQLOptions struct {
	Dialect Dialect
	Table   string
	Now     func() time.Time
}

// NewSQLStore prepares query text for the dialect. The caller owns db.
func NewSQLStore(db *sql.DB, opts SQLOptions) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("sql store: nil db")
	}
	table := opts.Table
	if table == "" {
		table = defaultSQLTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("sql store: invalid table name %q", table)
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = DialectPostgres
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("sql store: unsupported dialect %q", dialect)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &SQLStore{db: db, dialect: dialect, table: table, now: now}
	p := s.placeholder

	s.qGet = fmt.Sprintf(`SELECT count, expires_at FROM %s WHERE key = %s`, table, p(1))
	s.qUpsert = fmt.Sprintf(`INSERT INTO %[1]s (key, count, expires_at) VALUES (%[2]s, %[3]s, %[4]s)
ON CONFLICT (key) DO UPDATE SET
  count = CASE WHEN %[1]s.expires_at <= %[5]s THEN excluded.count ELSE %[1]s.count + excluded.count END,
  expires_at = CASE WHEN %[1]s.expires_at <= %[5]s THEN excluded.expires_at ELSE %[1]s.expires_at END
RETURNING count`, table, p(1), p(2), p(3), p(4))
	s.qExpire = fmt.Sprintf(`UPDATE %s SET expires_at = %s WHERE key = %s AND expires_at > %s`, table, p(1), p(2), p(3))
	s.qDelete = fmt.Sprintf(`DELETE FROM %s WHERE key = %s`, table, p(1))
	s.qSweep = fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= %s`, table, p(1))

	return s, nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectSQLite {
		return fmt.Sprintf("?%d", n)
	}
	return fmt.Sprintf("$%d", n)
}

// Migrate creates the counter table when it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  key TEXT PRIMARY KEY,
  count BIGINT NOT NULL,
  expires_at BIGINT NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLStore) lookup(ctx context.Context, key string) (count, expiresAt int64, found bool, err error) {
	err = s.db.QueryRowContext(ctx, s.qGet, key).Scan(&count, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if expiresAt <= s.now().UnixMilli() {
		return 0, 0, false, nil
	}
	return count, expiresAt, true, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (int64, bool, error) {
	count, _, found, err := s.lookup(ctx, key)
	if err != nil || !found || count <= 0 {
		return 0, false, err
	}
	return count, true, nil
}

func (s *SQLStore) IncrementOrCreate(ctx context.Context, key string, delta int64, ttlOnCreate time.Duration) (int64, error) {
	if err := checkIncrement(key, ttlOnCreate); err != nil {
		return 0, err
	}

	now := s.now()
	var count int64
	err := s.db.QueryRowContext(ctx, s.qUpsert,
		key, delta, now.Add(ttlOnCreate).UnixMilli(), now.UnixMilli(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (s *SQLStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	_, expiresAt, found, err := s.lookup(ctx, key)
	if err != nil || !found {
		return 0, err
	}
	remaining := time.Duration(expiresAt-s.now().UnixMilli()) * time.Millisecond
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *SQLStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx, s.qExpire, now.Add(ttl).UnixMilli(), key, now.UnixMilli()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.qDelete, key); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep deletes expired rows.
func (s *SQLStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, s.qSweep, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
