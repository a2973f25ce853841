package rbac

import (
	"net/http"
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/users"
)

// ResourceLevel is the depth class of a resource node
type ResourceLevel int

const (
	// LevelDirectory groups menus.
	LevelDirectory ResourceLevel = 0
	// LevelMenu is a navigable page.
	LevelMenu ResourceLevel = 1
	// LevelPermission is a leaf that only carries a permission code.
	LevelPermission ResourceLevel = 2
)

// Role is a named set of resources assigned to users.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	IsDeleted   int       `json:"is_deleted"`
	CreateTime  time.Time `json:"create_time"`
	UpdateTime  time.Time `json:"update_time"`
}

// Resource is a menu or permission node. A non-empty PermissionCode is the
// key checked by route guards; nodes without one only drive navigation.
type Resource struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Level          ResourceLevel `json:"level"`
	PID            int64         `json:"pid"`
	Icon           string        `json:"icon"`
	MenuURL        string        `json:"menu_url"`
	RequestURL     string        `json:"request_url"`
	PermissionCode string        `json:"permission_code"`
	IsDeleted      int           `json:"is_deleted"`
	CreateTime     time.Time     `json:"create_time"`
	UpdateTime     time.Time     `json:"update_time"`
}

// RoleResourceLink joins a role to one of its resources.
type RoleResourceLink struct {
	RoleID     int64 `json:"role_id"`
	ResourceID int64 `json:"resource_id"`
}

// RoleDetail is a role together with its live resources.
type RoleDetail struct {
	Role
	Resources []Resource `json:"resources"`
}

// ResourceNode is one node of the resource tree.
type ResourceNode struct {
	Resource
	Children []*ResourceNode `json:"children"`
}

// Principal is the authenticated user of one request with the role and
// resources loaded when the request started. It is immutable: accessors
// return copies.
type Principal struct {
	user      users.User
	role      *Role
	resources []Resource
}

// NewPrincipal builds a principal. role may be nil; resources are ignored
// when it is.
func NewPrincipal(user users.User, role *Role, resources []Resource) *Principal {
	p := &Principal{user: user}
	if role != nil {
		r := *role
		p.role = &r
		p.resources = append([]Resource(nil), resources...)
	}
	return p
}

// User returns a copy of the principal's user.
func (p *Principal) User() users.User {
	u := p.user
	if p.user.RoleID != nil {
		id := *p.user.RoleID
		u.RoleID = &id
	}
	return u
}

// UserID returns the principal's user id.
func (p *Principal) UserID() int64 { return p.user.ID }

// Name returns the principal's user name.
func (p *Principal) Name() string { return p.user.Name }

// Role returns a copy of the principal's role, or nil.
func (p *Principal) Role() *Role {
	if p.role == nil {
		return nil
	}
	r := *p.role
	return &r
}

// Resources returns a copy of the role's resources.
func (p *Principal) Resources() []Resource {
	return append([]Resource(nil), p.resources...)
}

// PermissionCodes returns the non-empty permission codes held by the
// principal, in resource order.
func (p *Principal) PermissionCodes() []string {
	var codes []string
	for _, r := range p.resources {
		if r.PermissionCode != "" {
			codes = append(codes, r.PermissionCode)
		}
	}
	return codes
}

// Route declares the permission code a route requires. An empty
// Permission means any authenticated principal may call it; Public routes
// skip authentication entirely.
type Route struct {
	Method     string
	Path       string
	Permission string
	Public     bool
	// Cacheable GET responses may be served from the response cache after
	// the guard has passed.
	Cacheable bool
}

// Endpoint binds a Route to its handler.
type Endpoint struct {
	Route
	Handler http.HandlerFunc
}

// Permission codes used by the built-in routes.
const (
	PermSys        = "sys"
	PermUser       = "sys:user"
	PermUserList   = "sys:user:list"
	PermUserAdd    = "sys:user:add"
	PermUserUpdate = "sys:user:update"
	PermRole       = "sys:role"
	PermResource   = "sys:resource"
	PermNotice     = "notice"
	PermLog        = "log"
)

var (
	ErrRoleNotFound     = apperr.E(apperr.NotFound, "role not found")
	ErrResourceNotFound = apperr.E(apperr.NotFound, "resource not found")
)

// RoleFieldDocs documents the roles table columns.
var RoleFieldDocs = map[string]string{
	"id":          "primary key",
	"name":        "role name",
	"code":        "role code, unique",
	"description": "description",
	"is_deleted":  "soft-delete flag: 0 live, 1 deleted",
	"create_time": "creation time",
	"update_time": "last update time",
}

// ResourceFieldDocs documents the resources table columns.
var ResourceFieldDocs = map[string]string{
	"id":              "primary key",
	"name":            "resource name",
	"level":           "level: 0 directory, 1 menu, 2 permission",
	"pid":             "parent resource id, 0 for roots",
	"icon":            "icon",
	"menu_url":        "page route",
	"request_url":     "request url",
	"permission_code": "permission code, empty for navigation-only nodes",
	"is_deleted":      "soft-delete flag: 0 live, 1 deleted",
	"create_time":     "creation time",
	"update_time":     "last update time",
}

// RoleResourceFieldDocs documents the role_resource link table.
var RoleResourceFieldDocs = map[string]string{
	"role_id":     "role id",
	"resource_id": "resource id",
}
