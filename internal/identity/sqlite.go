package identity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStorage keeps scoped keys in a single widget_storage table.
type SQLiteStorage struct {
	db    *sql.DB
	scope string
}

var _ Storage = (*SQLiteStorage)(nil)

func NewSQLiteStorage(dsn, scope string) (*SQLiteStorage, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite storage: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite storage: open")
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, scope: scope}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS widget_storage (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY (scope, key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "sqlite storage: migrate")
		}
	}
	return nil
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM widget_storage WHERE scope = ? AND key = ?`,
		s.scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "sqlite storage: get %s", key)
	}
	return value, true, nil
}

func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO widget_storage (scope, key, value, updated_at_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at_ms = excluded.updated_at_ms`,
		s.scope, key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "sqlite storage: set %s", key)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
