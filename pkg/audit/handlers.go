package audit

import (
	"net/http"

	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/pagination"
	"github.com/platinummonkey/adminkit/pkg/rbac"
)

// Handlers serves the audit trail.
type Handlers struct {
	store *Store
}

// NewHandlers creates audit handlers.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// Endpoints lists the audit routes.
func (h *Handlers) Endpoints() []rbac.Endpoint {
	return []rbac.Endpoint{
		{Route: rbac.Route{Method: http.MethodGet, Path: "/logs", Permission: rbac.PermLog}, Handler: h.List},
	}
}

type listResponse struct {
	Data []SysLog        `json:"data"`
	Page pagination.Meta `json:"page"`
}

// List returns a page of audit entries.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	q, ok := httputil.ParsePageQueryOrError(w, r)
	if !ok {
		return
	}

	res, err := h.store.List(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = []SysLog{}
	}
	httputil.WriteSuccess(w, listResponse{Data: rows, Page: res.Meta})
}
