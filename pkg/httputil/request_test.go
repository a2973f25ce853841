package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{name: "valid JSON", body: `{"name": "test"}`},
		{name: "invalid JSON", body: `{invalid}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()
	var got int64
	var gotErr error
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	assert.True(t, apperr.IsKind(gotErr, apperr.InvalidArgument))
}

func TestParsePageQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantErr    bool
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{name: "defaults", query: "", wantPage: 1, wantSize: 10, wantOffset: 0},
		{name: "explicit", query: "page=3&page_size=10", wantPage: 3, wantSize: 10, wantOffset: 20},
		{name: "zero page clamps", query: "page=0&page_size=5", wantPage: 1, wantSize: 5, wantOffset: 0},
		{name: "zero page size rejected", query: "page_size=0", wantErr: true},
		{name: "non-numeric page rejected", query: "page=two", wantErr: true},
		{name: "non-numeric page size rejected", query: "page_size=ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users?"+tt.query, nil)
			q, err := ParsePageQuery(req)
			if tt.wantErr {
				assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, q.Page())
			assert.Equal(t, tt.wantSize, q.PageSize())
			assert.Equal(t, tt.wantOffset, q.Offset())
		})
	}
}

func TestParsePageQueryOrError(t *testing.T) {
	w := httptest.NewRecorder()
	_, ok := ParsePageQueryOrError(w, httptest.NewRequest(http.MethodGet, "/users?page_size=-1", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":10009`)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users?name=adm", nil)
	assert.Equal(t, "adm", ParseQueryString(req, "name", ""))
	assert.Equal(t, "x", ParseQueryString(req, "missing", "x"))
}
