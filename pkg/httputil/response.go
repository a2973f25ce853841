// Package httputil provides HTTP handler utilities for the response envelope,
// error mapping, request parsing and common middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/adminkit/pkg/apperr"
)

// Envelope codes for kinds that carry no domain code.
const (
	CodeSuccess          = 0
	CodeBadRequest       = 10001
	CodeUnauthorized     = 10002
	CodeForbidden        = 10003
	CodeNotFound         = 10004
	CodeMethodNotAllowed = 10005
	CodeRateLimited      = 10006
	CodeValidation       = 10009
	CodeUnknown          = 10088
)

// Envelope is the body of every JSON API response.
type Envelope struct {
	Status  bool        `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{Status: true, Code: CodeSuccess, Message: "success", Data: data})
}

// WriteCreated writes a 201 envelope around data.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, Envelope{Status: true, Code: CodeSuccess, Message: "success", Data: data})
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// errorMapping is the boundary translation of an error kind.
type errorMapping struct {
	status  int
	code    int
	message string
}

var kindMappings = map[apperr.Kind]errorMapping{
	apperr.TokenInvalid:       {http.StatusUnauthorized, CodeUnauthorized, "unauthorized request"},
	apperr.PrincipalNotFound:  {http.StatusUnauthorized, CodeUnauthorized, "unauthorized request"},
	apperr.PermissionDenied:   {http.StatusForbidden, CodeForbidden, "access denied"},
	apperr.InvalidArgument:    {http.StatusBadRequest, CodeValidation, "invalid request"},
	apperr.NotFound:           {http.StatusNotFound, CodeNotFound, "not found"},
	apperr.MethodNotAllowed:   {http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed"},
	apperr.RateLimited:        {http.StatusTooManyRequests, CodeRateLimited, "too many requests"},
	apperr.StorageUnavailable: {http.StatusServiceUnavailable, CodeUnknown, "storage unavailable"},
	apperr.Internal:           {http.StatusInternalServerError, CodeUnknown, "internal server error"},
}

// StatusFor returns the HTTP status and envelope code for err.
func StatusFor(err error) (int, int) {
	m := mappingFor(err)
	return m.status, m.code
}

func mappingFor(err error) errorMapping {
	kind := apperr.KindOf(err)
	m, ok := kindMappings[kind]
	if !ok {
		m = kindMappings[apperr.Internal]
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Code != 0 {
			m.code = ae.Code
		}
		// Authentication, storage and internal failures keep the generic
		// message; the underlying cause is never echoed.
		switch kind {
		case apperr.InvalidArgument, apperr.PermissionDenied, apperr.NotFound, apperr.RateLimited, apperr.MethodNotAllowed:
			if ae.Message != "" {
				m.message = ae.Message
			}
		}
	}
	return m
}

// WriteError maps err to its status and envelope. It is the only place
// errors become HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	m := mappingFor(err)
	WriteJSON(w, m.status, Envelope{Status: false, Code: m.code, Message: m.message})
}

// WriteBadRequest writes a validation failure with message.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, apperr.E(apperr.InvalidArgument, message))
}

// NotFoundHandler answers unmatched routes with the envelope.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, apperr.E(apperr.NotFound, "route not found"))
	})
}

// MethodNotAllowedHandler answers a matched path with the wrong verb.
func MethodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, apperr.E(apperr.MethodNotAllowed, "method not allowed"))
	})
}
