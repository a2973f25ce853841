package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/auth"
	"github.com/platinummonkey/adminkit/pkg/export"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/pagination"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/users"
)

const (
	avatarPath = "/users/me/avatar"

	// MaxAvatarBytes bounds avatar uploads.
	MaxAvatarBytes = 2 << 20

	// ExportLimit bounds the rows written to a users workbook.
	ExportLimit = 10000
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(subject string, userID int64) (*auth.Token, error)
}

// UserHandlers serves the /users routes.
type UserHandlers struct {
	service *users.Service
	tokens  TokenIssuer
}

// NewUserHandlers creates user handlers.
func NewUserHandlers(service *users.Service, tokens TokenIssuer) *UserHandlers {
	return &UserHandlers{service: service, tokens: tokens}
}

// Endpoints lists the user routes. /users/me and /users/export are declared
// before /users/{id}; ids are numeric only.
func (h *UserHandlers) Endpoints() []rbac.Endpoint {
	return []rbac.Endpoint{
		{Route: rbac.Route{Method: http.MethodPost, Path: "/users/signup", Public: true}, Handler: h.signup},
		{Route: rbac.Route{Method: http.MethodPost, Path: "/users/login", Public: true}, Handler: h.login},
		{Route: rbac.Route{Method: http.MethodGet, Path: "/users/me", Cacheable: true}, Handler: h.me},
		{Route: rbac.Route{Method: http.MethodPatch, Path: "/users/me"}, Handler: h.patchMe},
		{Route: rbac.Route{Method: http.MethodPut, Path: avatarPath}, Handler: h.uploadAvatar},
		{Route: rbac.Route{Method: http.MethodGet, Path: "/users", Permission: rbac.PermUserList, Cacheable: true}, Handler: h.list},
		{Route: rbac.Route{Method: http.MethodGet, Path: "/users/export", Permission: rbac.PermUserList}, Handler: h.export},
		{Route: rbac.Route{Method: http.MethodGet, Path: "/users/{id:[0-9]+}", Permission: rbac.PermUserList, Cacheable: true}, Handler: h.get},
		{Route: rbac.Route{Method: http.MethodPatch, Path: "/users/{id:[0-9]+}", Permission: rbac.PermUserUpdate}, Handler: h.patch},
		{Route: rbac.Route{Method: http.MethodDelete, Path: "/users/{id:[0-9]+}", Permission: rbac.PermUserUpdate}, Handler: h.delete},
	}
}

// signup handles POST /users/signup
func (h *UserHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var in users.SignupInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	u, err := h.service.Signup(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, u)
}

// loginResponse is the OAuth2 token response wrapped in the envelope fields
// clients check.
type loginResponse struct {
	Status      bool   `json:"status"`
	Code        int    `json:"code"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// login handles POST /users/login with an OAuth2 password grant form.
func (h *UserHandlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, apperr.Wrap(apperr.InvalidArgument, "invalid form body", err))
		return
	}
	name := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if name == "" || password == "" {
		httputil.WriteError(w, apperr.E(apperr.InvalidArgument, "username and password are required"))
		return
	}

	u, err := h.service.Authenticate(r.Context(), name, password)
	if err != nil {
		observability.FromContext(r.Context()).
			WithFields(map[string]interface{}{"user": name, "kind": apperr.KindOf(err).String()}).
			Info("login failed")
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.Issue(u.Name, u.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Status:      true,
		Code:        http.StatusOK,
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	})
}

func currentUserID(r *http.Request) int64 {
	return rbac.PrincipalFromContext(r.Context()).UserID()
}

// me handles GET /users/me
func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), currentUserID(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// patchMe handles PATCH /users/me
func (h *UserHandlers) patchMe(w http.ResponseWriter, r *http.Request) {
	var p users.Patch
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}

	u, err := h.service.PatchSelf(r.Context(), currentUserID(r), p)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// uploadAvatar handles PUT /users/me/avatar with a multipart "file" part.
func (h *UserHandlers) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarBytes+1<<16)
	if err := r.ParseMultipartForm(MaxAvatarBytes); err != nil {
		httputil.WriteError(w, apperr.Wrap(apperr.InvalidArgument, "invalid multipart body", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, apperr.Wrap(apperr.InvalidArgument, "file part is required", err))
		return
	}
	defer file.Close()

	if header.Size > MaxAvatarBytes {
		httputil.WriteError(w, apperr.E(apperr.InvalidArgument, fmt.Sprintf("avatar must be at most %d bytes", MaxAvatarBytes)))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := file.Read(sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, 0); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	u, err := h.service.UploadAvatar(r.Context(), currentUserID(r), header.Filename, file, header.Size, contentType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

type usersPage struct {
	Users []users.User    `json:"users"`
	Page  pagination.Meta `json:"page"`
}

// list handles GET /users?page=&page_size=&name=
func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	q, ok := httputil.ParsePageQueryOrError(w, r)
	if !ok {
		return
	}
	filter := users.Filter{NamePrefix: strings.TrimSpace(r.URL.Query().Get("name"))}

	res, err := h.service.List(r.Context(), filter, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = []users.User{}
	}
	httputil.WriteSuccess(w, usersPage{Users: rows, Page: res.Meta})
}

// export handles GET /users/export
func (h *UserHandlers) export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.All(r.Context(), ExportLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	body, err := export.UsersWorkbook(rows)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filename := fmt.Sprintf("users-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// get handles GET /users/{id}
func (h *UserHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// patch handles PATCH /users/{id}
func (h *UserHandlers) patch(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var p users.Patch
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}

	u, err := h.service.Patch(r.Context(), id, p)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// delete handles DELETE /users/{id}
func (h *UserHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
