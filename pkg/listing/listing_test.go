package listing

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID   int64
	Name string
}

var accountTable = Table[account]{
	Name:    "accounts",
	Columns: []string{"id", "name"},
	Where:   "is_deleted = 0",
	Scan: func(s Scanner) (account, error) {
		var a account
		err := s.Scan(&a.ID, &a.Name)
		return a, err
	},
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			owner_id INTEGER NOT NULL DEFAULT 0,
			is_deleted INTEGER NOT NULL DEFAULT 0
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func insertAccounts(t *testing.T, db *sql.DB, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := db.Exec(`INSERT INTO accounts (name) VALUES ($1)`, name)
		require.NoError(t, err)
	}
}

func TestService_CountAndList(t *testing.T) {
	db := setupTestDB(t)
	insertAccounts(t, db, "admin", "user", "audit")
	svc := NewService(db, accountTable)
	ctx := context.Background()

	total, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	rows, err := svc.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "admin", rows[0].Name)
	assert.Equal(t, "audit", rows[2].Name)

	q, err := pagination.New(1, 10)
	require.NoError(t, err)
	page, err := svc.Page(ctx, q)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 3)
	assert.Equal(t, int64(3), page.Meta.Total)
	assert.Equal(t, int64(1), page.Meta.Pages)
}

func TestService_All(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`^SELECT id, name FROM accounts WHERE is_deleted = 0 AND owner_id = \$1 ORDER BY id ASC$`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b"))

	rows, err := NewService(db, accountTable).Where("owner_id = $1", 7).All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []account{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, rows)
	require.NoError(t, mock.ExpectationsWereMet(), "a single query, no count first")
}

func TestService_PageWindow(t *testing.T) {
	db := setupTestDB(t)
	insertAccounts(t, db, "a", "b", "c", "d", "e")
	svc := NewService(db, accountTable)

	q, err := pagination.New(2, 2)
	require.NoError(t, err)

	page, err := svc.Page(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "c", page.Rows[0].Name)
	assert.Equal(t, "d", page.Rows[1].Name)
	assert.Equal(t, pagination.Meta{Page: 2, PageSize: 2, Total: 5, Pages: 3}, page.Meta)
}

func TestService_SoftDeletedRowsHidden(t *testing.T) {
	db := setupTestDB(t)
	insertAccounts(t, db, "kept", "gone")
	_, err := db.Exec(`UPDATE accounts SET is_deleted = 1 WHERE name = 'gone'`)
	require.NoError(t, err)

	svc := NewService(db, accountTable)
	total, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestService_Where(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Exec(`INSERT INTO accounts (name, owner_id) VALUES ('mine', 7), ('theirs', 8), ('also mine', 7)`)
	require.NoError(t, err)

	svc := NewService(db, accountTable).Where("owner_id = $1", 7)
	page, err := svc.Page(context.Background(), pagination.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Meta.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "mine", page.Rows[0].Name)
}

func TestService_EmptyTable(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, accountTable)

	page, err := svc.Page(context.Background(), pagination.Default())
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, int64(0), page.Meta.Pages)
}

func TestService_StorageErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, accountTable)

	t.Run("count failure is storage unavailable", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE is_deleted = 0`).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := svc.Page(context.Background(), pagination.Default())
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.StorageUnavailable))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list runs in the same transaction with explicit order", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE is_deleted = 0`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`SELECT id, name FROM accounts WHERE is_deleted = 0 ORDER BY id ASC LIMIT \$1 OFFSET \$2`).
			WithArgs(10, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "admin"))
		mock.ExpectCommit()

		page, err := svc.Page(context.Background(), pagination.Default())
		require.NoError(t, err)
		assert.Equal(t, []account{{ID: 1, Name: "admin"}}, page.Rows)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		_, err := svc.Page(context.Background(), pagination.Default())
		assert.True(t, apperr.IsKind(err, apperr.StorageUnavailable))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
