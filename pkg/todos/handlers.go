package todos

import (
	"net/http"

	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/pagination"
	"github.com/platinummonkey/adminkit/pkg/rbac"
)

// Handlers serves /todos for the current principal.
type Handlers struct {
	store *Store
}

// NewHandlers creates to-do handlers.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// Endpoints lists the to-do routes. They only require authentication.
func (h *Handlers) Endpoints() []rbac.Endpoint {
	return []rbac.Endpoint{
		{Route: rbac.Route{Method: http.MethodGet, Path: "/todos"}, Handler: h.List},
		{Route: rbac.Route{Method: http.MethodPost, Path: "/todos"}, Handler: h.Create},
		{Route: rbac.Route{Method: http.MethodGet, Path: "/todos/{id}"}, Handler: h.Get},
		{Route: rbac.Route{Method: http.MethodPut, Path: "/todos/{id}"}, Handler: h.Update},
		{Route: rbac.Route{Method: http.MethodDelete, Path: "/todos/{id}"}, Handler: h.Delete},
	}
}

type listResponse struct {
	Data []Todo          `json:"data"`
	Page pagination.Meta `json:"page"`
}

func owner(r *http.Request) int64 {
	return rbac.PrincipalFromContext(r.Context()).UserID()
}

// List returns a page of the caller's items.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	q, ok := httputil.ParsePageQueryOrError(w, r)
	if !ok {
		return
	}

	res, err := h.store.List(r.Context(), owner(r), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = []Todo{}
	}
	httputil.WriteSuccess(w, listResponse{Data: rows, Page: res.Meta})
}

// Create adds an item owned by the caller.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	t, err := h.store.Create(r.Context(), owner(r), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, t)
}

// Get returns one of the caller's items.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), owner(r), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

// Update replaces one of the caller's items.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var in Input
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	t, err := h.store.Update(r.Context(), owner(r), id, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

// Delete removes one of the caller's items.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), owner(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
