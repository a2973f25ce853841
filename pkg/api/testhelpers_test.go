package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/auth"
	"github.com/platinummonkey/adminkit/pkg/cache"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/todos"
	"github.com/platinummonkey/adminkit/pkg/users"
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
CREATE UNIQUE INDEX users_name_live ON users (name) WHERE is_deleted = 0;
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
CREATE TABLE todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	completed BOOLEAN NOT NULL DEFAULT 0,
	owner_id INTEGER NOT NULL,
	create_time DATETIME NOT NULL,
	update_time DATETIME NOT NULL
);
CREATE TABLE sys_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	method TEXT NOT NULL,
	ip TEXT NOT NULL,
	params TEXT NOT NULL DEFAULT '',
	spend_time TEXT NOT NULL DEFAULT '',
	create_time DATETIME NOT NULL
);
`

type fakeAvatars struct {
	keys []string
}

func (f *fakeAvatars) PutAvatar(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.test/" + key, nil
}

type testEnv struct {
	t       *testing.T
	db      *sql.DB
	server  *Server
	cache   *cache.ResponseCache
	avatars *fakeAvatars
}

// newTestEnv builds a server over a seeded in-memory database. customize
// may add optional dependencies before the router is built.
func newTestEnv(t *testing.T, customize func(db *sql.DB, deps *Dependencies)) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)

	hasher := auth.BcryptHasher{Cost: 4}
	_, err = rbac.Seed(context.Background(), db, hasher)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret", "HS256", time.Minute)
	require.NoError(t, err)

	respCache := cache.New(nil, nil, nil)
	avatars := &fakeAvatars{}
	userStore := users.NewStore(db, db)
	roleStore := rbac.NewStore(db, db)
	service := users.NewService(userStore, hasher,
		users.WithInvalidator(respCache),
		users.WithAvatarStore(avatars),
	)

	deps := Dependencies{
		Users:    NewUserHandlers(service, tokens),
		Resolver: auth.NewPrincipalResolver(tokens, userStore, roleStore, nil),
		Roles:    rbac.NewHandlers(roleStore, respCache),
		Todos:    todos.NewHandlers(todos.NewStore(db)),
		Cache:    respCache,
	}
	if customize != nil {
		customize(db, &deps)
	}

	return &testEnv{
		t:       t,
		db:      db,
		server:  NewServer(Options{}, deps),
		cache:   respCache,
		avatars: avatars,
	}
}

func (e *testEnv) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, DefaultAPIPrefix+path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(method, path, token, r, "application/json")
}

func (e *testEnv) loginForm(name, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {name}, "password": {password}, "grant_type": {"password"}}
	return e.do(http.MethodPost, "/users/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

// login returns an access token for a seeded account.
func (e *testEnv) login(name string) string {
	e.t.Helper()
	w := e.loginForm(name, rbac.SeedPassword)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var resp loginResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.AccessToken)
	return resp.AccessToken
}

type envelope struct {
	Status  bool            `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func userID(t *testing.T, data json.RawMessage) string {
	t.Helper()
	var u users.User
	require.NoError(t, json.Unmarshal(data, &u))
	return fmt.Sprint(u.ID)
}
