package rbac

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/adminkit/pkg/users"
	"github.com/stretchr/testify/require"
)

const sqliteSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	password TEXT NOT NULL,
	avatar TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	gender INTEGER NOT NULL DEFAULT 0,
	phone TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 0,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	role_id INTEGER,
	create_time DATETIME NOT NULL,
	update_time DATETIME NOT NULL
);
CREATE TABLE roles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	is_deleted INTEGER NOT NULL DEFAULT 0,
	create_time DATETIME NOT NULL,
	update_time DATETIME NOT NULL
);
CREATE TABLE resources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	level INTEGER NOT NULL DEFAULT 0,
	pid INTEGER NOT NULL DEFAULT 0,
	icon TEXT NOT NULL DEFAULT '',
	menu_url TEXT NOT NULL DEFAULT '',
	request_url TEXT NOT NULL DEFAULT '',
	permission_code TEXT NOT NULL DEFAULT '',
	is_deleted INTEGER NOT NULL DEFAULT 0,
	create_time DATETIME NOT NULL,
	update_time DATETIME NOT NULL
);
CREATE TABLE role_resource (
	role_id INTEGER NOT NULL,
	resource_id INTEGER NOT NULL,
	PRIMARY KEY (role_id, resource_id)
);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "plain:" + plain, nil }
func (plainHasher) Verify(plain, digest string) bool  { return digest == "plain:"+plain }

// seededDB returns a database with the built-in roles and accounts.
func seededDB(t *testing.T) *sql.DB {
	t.Helper()
	db := setupTestDB(t)
	_, err := Seed(context.Background(), db, plainHasher{})
	require.NoError(t, err)
	return db
}

// loadPrincipal builds the principal of a seeded account the way the
// resolver does.
func loadPrincipal(t *testing.T, db *sql.DB, name string) *Principal {
	t.Helper()
	ctx := context.Background()

	u, err := users.NewStore(db, nil).GetByName(ctx, name)
	require.NoError(t, err)
	require.NotNil(t, u.RoleID)

	store := NewStore(db, nil)
	role, err := store.GetRole(ctx, *u.RoleID)
	require.NoError(t, err)
	resources, err := store.ResourcesForRole(ctx, role.ID)
	require.NoError(t, err)

	return NewPrincipal(*u, role, resources)
}

func principalWith(codes ...string) *Principal {
	resources := make([]Resource, 0, len(codes))
	for i, c := range codes {
		resources = append(resources, Resource{ID: int64(i + 1), PermissionCode: c})
	}
	return NewPrincipal(users.User{ID: 1, Name: "tester"}, &Role{ID: 1, Code: "ROLE_TEST"}, resources)
}
