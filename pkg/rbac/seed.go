package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/adminkit/pkg/users"
)

// SeedPassword is the password of the seeded accounts.
const SeedPassword = "123456"

var seedResources = []Resource{
	{Name: "仪表盘", Level: LevelMenu, PID: 0, Icon: "VBr0B.png", MenuURL: "/dashboard", RequestURL: "/", PermissionCode: ""},
	{Name: "系统管理", Level: LevelDirectory, PID: 0, Icon: "VBr0B.png", MenuURL: "/system/index", RequestURL: "/system", PermissionCode: PermSys},
	{Name: "用户管理", Level: LevelMenu, PID: 2, Icon: "VBclq.png", MenuURL: "/system/user", RequestURL: "/user", PermissionCode: PermUser},
	{Name: "用户列表", Level: LevelPermission, PID: 3, RequestURL: "/user/list", PermissionCode: PermUserList},
	{Name: "新增用户", Level: LevelPermission, PID: 3, RequestURL: "/user/add", PermissionCode: PermUserAdd},
	{Name: "编辑用户", Level: LevelPermission, PID: 3, RequestURL: "/user/update", PermissionCode: PermUserUpdate},
	{Name: "角色管理", Level: LevelMenu, PID: 2, Icon: "VBsBc.png", MenuURL: "/system/role", RequestURL: "/role", PermissionCode: PermRole},
	{Name: "资源管理", Level: LevelMenu, PID: 2, Icon: "VBr0B.png", MenuURL: "/system/resource", RequestURL: "/resource", PermissionCode: PermResource},
	{Name: "公告通知", Level: LevelMenu, PID: 0, Icon: "VBr0B.png", MenuURL: "/notice", RequestURL: "/notice", PermissionCode: PermNotice},
	{Name: "日志记录", Level: LevelMenu, PID: 0, Icon: "VBr0B.png", MenuURL: "/log", RequestURL: "/log", PermissionCode: PermLog},
}

// seedRoles maps role codes to 1-based positions in seedResources.
var seedRoles = []struct {
	role      Role
	resources []int
}{
	{Role{Name: "超级管理员", Code: "ROLE_ADMIN"}, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	{Role{Name: "用户", Code: "ROLE_USER"}, []int{1}},
	{Role{Name: "审计员", Code: "ROLE_AUDIT"}, []int{1, 10}},
}

var seedUsers = []struct {
	name string
	role string
}{
	{"admin", "ROLE_ADMIN"},
	{"user", "ROLE_USER"},
	{"audit", "ROLE_AUDIT"},
}

// SeedResult counts what Seed created.
type SeedResult struct {
	Resources int
	Roles     int
	Users     int
}

// Seed creates the built-in resources, roles and accounts. Existing rows
// are left alone, so it is safe to run on every start.
func Seed(ctx context.Context, db *sql.DB, hasher users.PasswordHasher) (SeedResult, error) {
	var result SeedResult
	store := NewStore(db, nil)
	userStore := users.NewStore(db, nil)

	// Resources are only created on an empty table; their parent ids refer
	// to positions in the seed list.
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count); err != nil {
		return result, fmt.Errorf("failed to count resources: %w", err)
	}
	ids := make([]int64, len(seedResources))
	if count == 0 {
		for i, res := range seedResources {
			res := res
			if res.PID != 0 {
				res.PID = ids[res.PID-1]
			}
			if err := store.CreateResource(ctx, &res); err != nil {
				return result, err
			}
			ids[i] = res.ID
			result.Resources++
		}
	}

	roleIDs := make(map[string]int64, len(seedRoles))
	for _, sr := range seedRoles {
		existing, err := store.GetRoleByCode(ctx, sr.role.Code)
		if err == nil {
			roleIDs[sr.role.Code] = existing.ID
			continue
		}
		if !errors.Is(err, ErrRoleNotFound) {
			return result, err
		}

		role := sr.role
		if err := store.CreateRole(ctx, &role); err != nil {
			return result, err
		}
		roleIDs[role.Code] = role.ID
		result.Roles++

		if count != 0 {
			continue
		}
		links := make([]int64, 0, len(sr.resources))
		for _, pos := range sr.resources {
			links = append(links, ids[pos-1])
		}
		if err := store.ReplaceRoleResources(ctx, role.ID, links); err != nil {
			return result, err
		}
	}

	for _, su := range seedUsers {
		_, err := userStore.GetByName(ctx, su.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, users.ErrUserNotFound) {
			return result, err
		}

		digest, err := hasher.Hash(SeedPassword)
		if err != nil {
			return result, fmt.Errorf("failed to hash seed password: %w", err)
		}
		roleID := roleIDs[su.role]
		u := &users.User{Name: su.name, Password: digest, IsActive: users.ActiveAvailable, RoleID: &roleID}
		if err := userStore.Create(ctx, u); err != nil {
			return result, err
		}
		result.Users++
	}

	return result, nil
}
