package repository

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gogotex/records/internal/record"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLRepoContract_SQLite(t *testing.T) {
	repo := NewSQLRepo(openSQLite(t))
	require.NoError(t, repo.Migrate(context.Background()))
	exerciseStore(t, repo)
}

func TestSQLRepoMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepo(openSQLite(t))
	require.NoError(t, repo.Migrate(ctx))

	n, err := repo.IncrementCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	// a second migration must not reset NextId
	require.NoError(t, repo.Migrate(ctx))
	v, err := repo.ReadCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)
}

func TestSQLRepo_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLRepo(db)
	ctx := context.Background()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS counters").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO counters").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Migrate(ctx))

	mock.ExpectQuery(`UPDATE counters SET value = value \+ 1 WHERE name = \$1 AND value < \$2 RETURNING value`).
		WithArgs("records", int64(math.MaxInt64)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(7)))
	n, err := repo.IncrementCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), n)

	mock.ExpectExec("INSERT INTO records").
		WithArgs("alice", int64(7), "T", "C", int64(100), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Put(ctx, "alice", &record.Record{ID: 7, Title: "T", Content: "C", CreatedAt: 100, UpdatedAt: 100}))

	cols := []string{"id", "title", "content", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT id, title, content, created_at, updated_at FROM records WHERE owner = \$1 AND id = \$2`).
		WithArgs("alice", int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(7), "T", "C", int64(100), int64(100)))
	got, err := repo.Get(ctx, "alice", 7)
	require.NoError(t, err)
	require.Equal(t, &record.Record{ID: 7, Title: "T", Content: "C", CreatedAt: 100, UpdatedAt: 100}, got)

	mock.ExpectQuery(`SELECT id, title, content, created_at, updated_at FROM records WHERE owner = \$1 AND id = \$2`).
		WithArgs("bob", int64(7)).
		WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.Get(ctx, "bob", 7)
	require.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(`DELETE FROM records WHERE owner = \$1 AND id = \$2`).
		WithArgs("alice", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.Remove(ctx, "alice", 7))

	mock.ExpectQuery(`UPDATE counters SET value = value \+ 1`).
		WithArgs("records", int64(math.MaxInt64)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectQuery(`SELECT value FROM counters WHERE name = \$1`).
		WithArgs("records").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(math.MaxInt64)))
	_, err = repo.IncrementCounter(ctx)
	require.ErrorIs(t, err, ErrCounterOverflow)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepoRange_SQLite(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepo(openSQLite(t))
	require.NoError(t, repo.Migrate(ctx))

	require.NoError(t, repo.WriteCounter(ctx, MaxStoredValue-1))
	n, err := repo.IncrementCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, MaxStoredValue, n)

	_, err = repo.IncrementCounter(ctx)
	require.ErrorIs(t, err, ErrCounterOverflow)
	v, err := repo.ReadCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, MaxStoredValue, v)

	require.ErrorIs(t, repo.WriteCounter(ctx, MaxStoredValue+1), ErrOutOfRange)
	require.ErrorIs(t, repo.Put(ctx, "alice", &record.Record{ID: MaxStoredValue + 1}), ErrOutOfRange)
	require.ErrorIs(t, repo.Put(ctx, "alice", &record.Record{ID: 1, UpdatedAt: math.MaxUint64}), ErrOutOfRange)

	require.NoError(t, repo.Put(ctx, "alice", &record.Record{ID: MaxStoredValue, Title: "top"}))
	got, err := repo.Get(ctx, "alice", MaxStoredValue)
	require.NoError(t, err)
	require.Equal(t, "top", got.Title)

	_, err = repo.Get(ctx, "alice", MaxStoredValue+1)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, repo.Remove(ctx, "alice", MaxStoredValue+1))
}

func TestSQLRepoIncrementWithoutMigrate(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE counters (name TEXT PRIMARY KEY, value BIGINT NOT NULL)`)
	require.NoError(t, err)

	_, err = NewSQLRepo(db).IncrementCounter(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCounterOverflow)
}
