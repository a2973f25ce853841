package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_AdminScenario(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	detail, err := NewStore(db, nil).GetRoleDetail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ROLE_ADMIN", detail.Code)
	assert.Len(t, detail.Resources, 10)

	admin := loadPrincipal(t, db, "admin")
	assert.True(t, IsAuthorized(admin, PermUserList))
	assert.False(t, IsAuthorized(admin, "sys:role:list"))

	user := loadPrincipal(t, db, "user")
	assert.Empty(t, user.PermissionCodes(), "the dashboard carries no code")
	assert.False(t, IsAuthorized(user, PermUserList))

	audit := loadPrincipal(t, db, "audit")
	assert.Equal(t, []string{PermLog}, audit.PermissionCodes())
}

func TestSeed_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := Seed(ctx, db, plainHasher{})
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Resources: 10, Roles: 3, Users: 3}, first)

	second, err := Seed(ctx, db, plainHasher{})
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, second)

	var links int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM role_resource`).Scan(&links))
	assert.Equal(t, 13, links)
}

func TestStore_ReplaceRoleResources(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	store := NewStore(db, nil)

	require.NoError(t, store.ReplaceRoleResources(ctx, 2, []int64{4, 1, 4}))
	resources, err := store.ResourcesForRole(ctx, 2)
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, int64(1), resources[0].ID)
	assert.Equal(t, PermUserList, resources[1].PermissionCode)

	assert.True(t, IsAuthorized(loadPrincipal(t, db, "user"), PermUserList))

	t.Run("unknown resource rolls back", func(t *testing.T) {
		err := store.ReplaceRoleResources(ctx, 2, []int64{1, 99})
		assert.True(t, apperr.IsKind(err, apperr.NotFound))

		resources, err := store.ResourcesForRole(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, resources, 2)
	})

	t.Run("unknown role", func(t *testing.T) {
		err := store.ReplaceRoleResources(ctx, 42, []int64{1})
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})

	t.Run("empty set clears links", func(t *testing.T) {
		require.NoError(t, store.ReplaceRoleResources(ctx, 3, nil))
		detail, err := store.GetRoleDetail(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, detail.Resources)
	})
}

func TestStore_DeletedResourcesAreHidden(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	_, err := db.Exec(`UPDATE resources SET is_deleted = 1 WHERE id = 4`)
	require.NoError(t, err)

	admin := loadPrincipal(t, db, "admin")
	assert.False(t, IsAuthorized(admin, PermUserList))
	assert.Len(t, admin.Resources(), 9)

	q, err := pagination.New(1, 20)
	require.NoError(t, err)
	page, err := NewStore(db, nil).ListResources(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(9), page.Meta.Total)
}

func TestStore_ListRoles(t *testing.T) {
	db := seededDB(t)

	q, err := pagination.New(2, 2)
	require.NoError(t, err)
	page, err := NewStore(db, nil).ListRoles(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, pagination.Meta{Page: 2, PageSize: 2, Total: 3, Pages: 2}, page.Meta)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "ROLE_AUDIT", page.Rows[0].Code)
}

func TestStore_GetRoleNotFound(t *testing.T) {
	db := seededDB(t)

	_, err := NewStore(db, nil).GetRole(context.Background(), 77)
	assert.ErrorIs(t, err, ErrRoleNotFound)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestStore_ResourceTree(t *testing.T) {
	db := seededDB(t)

	tree, err := NewStore(db, nil).ResourceTree(context.Background())
	require.NoError(t, err)

	require.Len(t, tree, 4)
	assert.Equal(t, []int64{1, 2, 9, 10}, []int64{tree[0].ID, tree[1].ID, tree[2].ID, tree[3].ID})

	system := tree[1]
	require.Len(t, system.Children, 3)
	assert.Equal(t, PermUser, system.Children[0].PermissionCode)
	assert.Len(t, system.Children[0].Children, 3)
}

func TestStore_ResourceTree_SingleRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "name", "level", "pid", "icon", "menu_url", "request_url",
		"permission_code", "is_deleted", "create_time", "update_time"}
	mock.ExpectQuery(`^SELECT .+ FROM resources WHERE is_deleted = 0 ORDER BY id ASC$`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "system", 0, 0, "", "", "", "sys", 0, now, now).
			AddRow(2, "users", 1, 1, "", "", "", "sys:user", 0, now, now))

	tree, err := NewStore(db, nil).ResourceTree(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "sys:user", tree[0].Children[0].PermissionCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildTree_OrphansBecomeRoots(t *testing.T) {
	tree := BuildTree([]Resource{
		{ID: 1, PID: 0},
		{ID: 2, PID: 1},
		{ID: 3, PID: 50},
	})
	require.Len(t, tree, 2)
	assert.Equal(t, int64(3), tree[1].ID)
	assert.Len(t, tree[0].Children, 1)
}
