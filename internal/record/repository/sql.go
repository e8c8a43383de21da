package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gogotex/records/internal/record"
)

// counterName is the counters row that holds NextId.
const counterName = "records"

// schema is portable between PostgreSQL and SQLite (3.35+).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		owner      TEXT   NOT NULL,
		id         BIGINT NOT NULL,
		title      TEXT   NOT NULL,
		content    TEXT   NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (owner, id)
	)`,
	`CREATE TABLE IF NOT EXISTS counters (
		name  TEXT   PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`INSERT INTO counters (name, value) VALUES ('records', 0) ON CONFLICT (name) DO NOTHING`,
}

// SQLRepo implements Store on database/sql. Queries use $n placeholders,
// which both lib/pq and modernc.org/sqlite accept.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

// Migrate creates the tables and seeds NextId with 0. It is idempotent.
func (s *SQLRepo) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLRepo) Get(ctx context.Context, owner string, id uint64) (*record.Record, error) {
	if checkRange(id) != nil {
		return nil, ErrNotFound
	}
	var r record.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM records WHERE owner = $1 AND id = $2`,
		owner, int64(id),
	).Scan(&r.ID, &r.Title, &r.Content, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &r, nil
}

func (s *SQLRepo) Put(ctx context.Context, owner string, rec *record.Record) error {
	if err := checkRange(rec.ID, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return fmt.Errorf("put record %d: %w", rec.ID, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (owner, id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner, id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		owner, int64(rec.ID), rec.Title, rec.Content, int64(rec.CreatedAt), int64(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (s *SQLRepo) Remove(ctx context.Context, owner string, id uint64) error {
	if checkRange(id) != nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE owner = $1 AND id = $2`, owner, int64(id)); err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

func (s *SQLRepo) List(ctx context.Context, owner string) ([]*record.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM records WHERE owner = $1 ORDER BY id`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []*record.Record{}
	for rows.Next() {
		var r record.Record
		if err := rows.Scan(&r.ID, &r.Title, &r.Content, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLRepo) ReadCounter(ctx context.Context) (uint64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = $1`, counterName).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return uint64(v), nil
}

func (s *SQLRepo) WriteCounter(ctx context.Context, v uint64) error {
	if err := checkRange(v); err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
		counterName, int64(v),
	)
	if err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	return nil
}

// IncrementCounter performs the read-modify-write of NextId as one statement.
// The row is left untouched once it holds MaxStoredValue.
func (s *SQLRepo) IncrementCounter(ctx context.Context) (uint64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = $1 AND value < $2 RETURNING value`,
		counterName, int64(MaxStoredValue),
	).Scan(&v)
	if err == sql.ErrNoRows {
		cur, rerr := s.ReadCounter(ctx)
		if rerr != nil {
			return 0, fmt.Errorf("increment counter: %w", rerr)
		}
		if cur == MaxStoredValue {
			return 0, ErrCounterOverflow
		}
		return 0, fmt.Errorf("increment counter: no %q row, run Migrate first", counterName)
	}
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return uint64(v), nil
}
