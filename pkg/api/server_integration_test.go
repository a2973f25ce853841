//go:build integration
// +build integration

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/auth"
	"github.com/platinummonkey/adminkit/pkg/cache"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/storage/postgres"
	"github.com/platinummonkey/adminkit/pkg/todos"
	"github.com/platinummonkey/adminkit/pkg/users"
)

func TestIntegration_LoginAndListUsers(t *testing.T) {
	db, cleanup := SetupPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	ran, err := postgres.Migrate(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, ran, "migrations are applied once")

	hasher := auth.BcryptHasher{Cost: 4}
	seeded, err := rbac.Seed(ctx, db, hasher)
	require.NoError(t, err)
	assert.Equal(t, rbac.SeedResult{Resources: 10, Roles: 3, Users: 3}, seeded)

	again, err := rbac.Seed(ctx, db, hasher)
	require.NoError(t, err)
	assert.Equal(t, rbac.SeedResult{}, again)

	tokens, err := auth.NewTokenService("integration-secret", "HS256", time.Minute)
	require.NoError(t, err)
	userStore := users.NewStore(db, db)
	roleStore := rbac.NewStore(db, db)
	respCache := cache.New(nil, nil, nil)

	server := NewServer(Options{}, Dependencies{
		Users:    NewUserHandlers(users.NewService(userStore, hasher, users.WithInvalidator(respCache)), tokens),
		Resolver: auth.NewPrincipalResolver(tokens, userStore, roleStore, nil),
		Roles:    rbac.NewHandlers(roleStore, respCache),
		Todos:    todos.NewHandlers(todos.NewStore(db)),
		Cache:    respCache,
	})

	form := url.Values{"username": {"admin"}, "password": {rbac.SeedPassword}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users?page=1&page_size=2", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total":3`)
	assert.Contains(t, rec.Body.String(), `"pages":2`)
}
