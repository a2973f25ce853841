package rbac

import (
	"context"
	"net/http"

	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

// Invalidator drops cached role and resource responses.
type Invalidator interface {
	InvalidateRoles(ctx context.Context) error
}

// Handlers serves the role and resource endpoints.
type Handlers struct {
	store *Store
	cache Invalidator
}

// NewHandlers creates role and resource handlers. cache may be nil.
func NewHandlers(store *Store, cache Invalidator) *Handlers {
	return &Handlers{store: store, cache: cache}
}

// Endpoints lists the role and resource routes with their guards.
func (h *Handlers) Endpoints() []Endpoint {
	return []Endpoint{
		{Route: Route{Method: http.MethodGet, Path: "/roles", Cacheable: true}, Handler: h.ListRoles},
		{Route: Route{Method: http.MethodGet, Path: "/roles/{id}", Cacheable: true}, Handler: h.GetRole},
		{Route: Route{Method: http.MethodPut, Path: "/roles/{id}/resources", Permission: PermRole}, Handler: h.ReplaceRoleResources},
		{Route: Route{Method: http.MethodGet, Path: "/resources", Cacheable: true}, Handler: h.ListResources},
		{Route: Route{Method: http.MethodGet, Path: "/resources/tree", Cacheable: true}, Handler: h.ResourceTree},
	}
}

type pageResponse[T any] struct {
	Data []T             `json:"data"`
	Page pagination.Meta `json:"page"`
}

func newPageResponse[T any](res pagination.Result[T]) pageResponse[T] {
	rows := res.Rows
	if rows == nil {
		rows = []T{}
	}
	return pageResponse[T]{Data: rows, Page: res.Meta}
}

// ListRoles returns a page of roles.
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	q, ok := httputil.ParsePageQueryOrError(w, r)
	if !ok {
		return
	}

	res, err := h.store.ListRoles(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, newPageResponse(res))
}

// GetRole returns one role with its resources.
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.store.GetRoleDetail(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

type replaceResourcesRequest struct {
	ResourceIDs []int64 `json:"resource_ids"`
}

// ReplaceRoleResources sets the resource set of a role.
func (h *Handlers) ReplaceRoleResources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req replaceResourcesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.store.ReplaceRoleResources(ctx, id, req.ResourceIDs); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateRoles(ctx); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("failed to invalidate cached roles")
		}
	}

	observability.FromContext(ctx).
		WithFields(map[string]interface{}{"role_id": id, "resources": len(req.ResourceIDs)}).
		Info("role resources replaced")

	detail, err := h.store.GetRoleDetail(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

// ListResources returns a page of resources.
func (h *Handlers) ListResources(w http.ResponseWriter, r *http.Request) {
	q, ok := httputil.ParsePageQueryOrError(w, r)
	if !ok {
		return
	}

	res, err := h.store.ListResources(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, newPageResponse(res))
}

// ResourceTree returns the resource hierarchy.
func (h *Handlers) ResourceTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.store.ResourceTree(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, tree)
}
