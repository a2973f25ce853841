package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "invalid JSON body", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, apperr.E(apperr.InvalidArgument, fmt.Sprintf("missing path parameter: %s", key))
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, apperr.E(apperr.InvalidArgument, fmt.Sprintf("invalid integer for %s: %s", key, str))
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteError(w, err)
		return 0, false
	}
	return val, true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperr.E(apperr.InvalidArgument, fmt.Sprintf("invalid integer for query param %s: %s", key, str))
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}
	return defaultVal
}

// ParsePageQuery reads page and page_size. Missing values take the defaults;
// a page below 1 is clamped; a non-numeric value or a page_size below 1 is
// an InvalidArgument.
func ParsePageQuery(r *http.Request) (pagination.Query, error) {
	page, err := ParseQueryInt(r, "page", pagination.DefaultPage)
	if err != nil {
		return pagination.Query{}, err
	}
	size, err := ParseQueryInt(r, "page_size", pagination.DefaultPageSize)
	if err != nil {
		return pagination.Query{}, err
	}
	return pagination.New(page, size)
}

// ParsePageQueryOrError is ParsePageQuery that writes the error response.
func ParsePageQueryOrError(w http.ResponseWriter, r *http.Request) (pagination.Query, bool) {
	q, err := ParsePageQuery(r)
	if err != nil {
		WriteError(w, err)
		return pagination.Query{}, false
	}
	return q, true
}

// RequireNonEmpty validates that a string field is not empty
func RequireNonEmpty(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		WriteBadRequest(w, fmt.Sprintf("%s is required", fieldName))
		return false
	}
	return true
}
