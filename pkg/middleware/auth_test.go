package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	calls     int
	principal *rbac.Principal
	err       error
}

func (f *fakeResolver) Resolve(_ context.Context, credential string) (*rbac.Principal, error) {
	f.calls++
	if credential != "good" {
		return nil, apperr.E(apperr.TokenInvalid, "bad token")
	}
	return f.principal, f.err
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		token   string
		present bool
		wantErr bool
	}{
		{"absent", "", "", false, false},
		{"bearer", "Bearer abc", "abc", true, false},
		{"lowercase scheme", "bearer abc", "abc", true, false},
		{"basic", "Basic dXNlcjpwYXNz", "", true, true},
		{"no token", "Bearer ", "", true, true},
		{"no separator", "Bearerabc", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			token, present, err := BearerToken(r)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.present, present)
			if tt.wantErr {
				assert.True(t, apperr.IsKind(err, apperr.TokenInvalid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	resolver := &fakeResolver{principal: rbac.NewPrincipal(users.User{ID: 3, Name: "alice"}, nil, nil)}
	var seen *rbac.Principal
	h := NewAuthMiddleware(resolver).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous passes through", func(t *testing.T) {
		seen = nil
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, seen)
		assert.Equal(t, 0, resolver.calls)
	})

	t.Run("valid token attaches principal", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer good")
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "alice", seen.Name())
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		seen = nil
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer forged")
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, seen)
		assert.NotContains(t, w.Body.String(), "forged")
	})

	t.Run("malformed header skips resolver", func(t *testing.T) {
		calls := resolver.calls
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Token good")
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, calls, resolver.calls)
	})
}

func TestAuthMiddleware_PrincipalNotFound(t *testing.T) {
	resolver := &fakeResolver{err: apperr.E(apperr.PrincipalNotFound, "gone")}
	h := NewAuthMiddleware(resolver).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_OptionalIgnoresBadCredential(t *testing.T) {
	resolver := &fakeResolver{}
	var ran bool
	h := NewAuthMiddleware(resolver).
		WithOptional(func(r *http.Request) bool { return r.URL.Path == "/login" }).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ran = true
			assert.Nil(t, rbac.PrincipalFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))

	for _, header := range []string{"Bearer expired", "Token nope"} {
		ran = false
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.Header.Set("Authorization", header)
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code, header)
		assert.True(t, ran, header)
	}

	ran = false
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	r.Header.Set("Authorization", "Bearer expired")
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, ran)
}
