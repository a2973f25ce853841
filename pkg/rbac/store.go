package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/listing"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

const (
	roleColumns     = `id, name, code, description, is_deleted, create_time, update_time`
	resourceColumns = `id, name, level, pid, icon, menu_url, request_url, permission_code, is_deleted, create_time, update_time`
)

// RoleTable describes the roles table for list queries.
var RoleTable = listing.Table[Role]{
	Name:    "roles",
	Columns: []string{"id", "name", "code", "description", "is_deleted", "create_time", "update_time"},
	Where:   "is_deleted = 0",
	Scan:    scanRole,
}

// ResourceTable describes the resources table for list queries.
var ResourceTable = listing.Table[Resource]{
	Name: "resources",
	Columns: []string{
		"id", "name", "level", "pid", "icon", "menu_url", "request_url",
		"permission_code", "is_deleted", "create_time", "update_time",
	},
	Where: "is_deleted = 0",
	Scan:  scanResource,
}

// Store persists roles, resources and their links.
type Store struct {
	db     *sql.DB
	reader *sql.DB
	now    func() time.Time
}

// NewStore creates an RBAC store. reader may be nil.
func NewStore(db, reader *sql.DB) *Store {
	if reader == nil {
		reader = db
	}
	return &Store{db: db, reader: reader, now: time.Now}
}

func scanRole(s listing.Scanner) (Role, error) {
	var r Role
	err := s.Scan(&r.ID, &r.Name, &r.Code, &r.Description, &r.IsDeleted, &r.CreateTime, &r.UpdateTime)
	return r, err
}

func scanResource(s listing.Scanner) (Resource, error) {
	var r Resource
	err := s.Scan(
		&r.ID,
		&r.Name,
		&r.Level,
		&r.PID,
		&r.Icon,
		&r.MenuURL,
		&r.RequestURL,
		&r.PermissionCode,
		&r.IsDeleted,
		&r.CreateTime,
		&r.UpdateTime,
	)
	return r, err
}

// CreateRole inserts role and fills in its id and timestamps.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	now := s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, code, description, is_deleted, create_time, update_time)
		VALUES ($1, $2, $3, 0, $4, $4)
		RETURNING id
	`, role.Name, role.Code, role.Description, now).Scan(&role.ID)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to create role", err)
	}
	role.CreateTime = now
	role.UpdateTime = now
	return nil
}

// GetRole returns a live role by id.
func (s *Store) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.getRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1 AND is_deleted = 0`, id)
}

// GetRoleByCode returns the live role with code.
func (s *Store) GetRoleByCode(ctx context.Context, code string) (*Role, error) {
	return s.getRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE code = $1 AND is_deleted = 0`, code)
}

func (s *Store) getRole(ctx context.Context, query string, arg interface{}) (*Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to get role", err)
	}
	return &role, nil
}

// CreateResource inserts res and fills in its id and timestamps.
func (s *Store) CreateResource(ctx context.Context, res *Resource) error {
	now := s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO resources (name, level, pid, icon, menu_url, request_url, permission_code, is_deleted, create_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)
		RETURNING id
	`, res.Name, res.Level, res.PID, res.Icon, res.MenuURL, res.RequestURL, res.PermissionCode, now).Scan(&res.ID)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to create resource", err)
	}
	res.CreateTime = now
	res.UpdateTime = now
	return nil
}

// ResourcesForRole returns the live resources linked to roleID in id order.
func (s *Store) ResourcesForRole(ctx context.Context, roleID int64) ([]Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.level, r.pid, r.icon, r.menu_url, r.request_url, r.permission_code, r.is_deleted, r.create_time, r.update_time
		FROM resources r
		JOIN role_resource rr ON rr.resource_id = r.id
		WHERE rr.role_id = $1 AND r.is_deleted = 0
		ORDER BY r.id ASC
	`, roleID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to query role resources", err)
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to scan resource", err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to iterate role resources", err)
	}
	return resources, nil
}

// GetRoleDetail returns a live role with its live resources.
func (s *Store) GetRoleDetail(ctx context.Context, id int64) (*RoleDetail, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	resources, err := s.ResourcesForRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if resources == nil {
		resources = []Resource{}
	}
	return &RoleDetail{Role: *role, Resources: resources}, nil
}

// ListRoles returns one page of live roles.
func (s *Store) ListRoles(ctx context.Context, q pagination.Query) (pagination.Result[Role], error) {
	return listing.NewService(s.reader, RoleTable).Page(ctx, q)
}

// ListResources returns one page of live resources.
func (s *Store) ListResources(ctx context.Context, q pagination.Query) (pagination.Result[Resource], error) {
	return listing.NewService(s.reader, ResourceTable).Page(ctx, q)
}

// ResourceTree returns every live resource arranged by parent id.
func (s *Store) ResourceTree(ctx context.Context) ([]*ResourceNode, error) {
	all, err := listing.NewService(s.reader, ResourceTable).All(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(all), nil
}

// ReplaceRoleResources sets the resources of roleID to exactly resourceIDs.
// Unknown or deleted resources reject the whole change.
func (s *Store) ReplaceRoleResources(ctx context.Context, roleID int64, resourceIDs []int64) error {
	ids := dedupe(resourceIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE id = $1 AND is_deleted = 0`, roleID).Scan(&exists)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to check role", err)
	}
	if exists == 0 {
		return ErrRoleNotFound
	}

	for _, id := range ids {
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE id = $1 AND is_deleted = 0`, id).Scan(&exists)
		if err != nil {
			return apperr.Wrap(apperr.StorageUnavailable, "failed to check resource", err)
		}
		if exists == 0 {
			return apperr.E(apperr.NotFound, fmt.Sprintf("resource %d not found", id))
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_resource WHERE role_id = $1`, roleID); err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to clear role resources", err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_resource (role_id, resource_id) VALUES ($1, $2)`, roleID, id,
		); err != nil {
			return apperr.Wrap(apperr.StorageUnavailable, "failed to link resource", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE roles SET update_time = $1 WHERE id = $2`, s.now().UTC(), roleID,
	); err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to touch role", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to commit role resources", err)
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BuildTree arranges resources under their parents. Nodes whose parent is
// missing are treated as roots. Siblings keep the input order.
func BuildTree(resources []Resource) []*ResourceNode {
	nodes := make(map[int64]*ResourceNode, len(resources))
	for _, r := range resources {
		nodes[r.ID] = &ResourceNode{Resource: r, Children: []*ResourceNode{}}
	}

	roots := []*ResourceNode{}
	for _, r := range resources {
		node := nodes[r.ID]
		parent, ok := nodes[r.PID]
		if r.PID == 0 || !ok || r.PID == r.ID {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}
