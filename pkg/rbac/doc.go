// Package rbac implements the role and resource permission model.
//
// # Model
//
// A user holds at most one Role. A Role links to any number of Resources
// through the role_resource table. A Resource is a node of the admin menu
// tree (directory, menu or permission leaf); its PermissionCode, when not
// empty, is the key that route guards check:
//
//	sys              系统管理
//	sys:user         用户管理
//	sys:user:list    用户列表
//	sys:user:update  编辑用户
//	sys:role         角色管理
//
// # Checking permissions
//
// The Principal of a request carries the user, the role and the role's
// resources as loaded when the request was authenticated. IsAuthorized is a
// pure membership test over those resources:
//
//	if !rbac.IsAuthorized(principal, rbac.PermUserList) {
//		...
//	}
//
// Codes match exactly. sys:user does not grant sys:user:list, and a
// principal without a role is denied everything.
//
// # Guarding routes
//
// Routes declare their required code as metadata and the router wraps the
// handler accordingly:
//
//	route := rbac.Route{Method: http.MethodGet, Path: "/users", Permission: rbac.PermUserList}
//	router.Handle(route.Path, rbac.Protect(route, handler, metrics)).Methods(route.Method)
//
// Denials are written as PermissionDenied (HTTP 403) and counted in the
// adminkit_permission_checks_total metric.
//
// # Seeding
//
// Seed installs the built-in resources, the ROLE_ADMIN, ROLE_USER and
// ROLE_AUDIT roles and one account per role. It skips rows that already
// exist.
package rbac
