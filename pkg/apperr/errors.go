// Package apperr defines the error kinds shared by the core packages.
//
// Core packages return *Error values tagged with a Kind and never choose a
// transport status themselves; pkg/httputil maps kinds to HTTP statuses and
// envelope codes at the boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of any transport.
type Kind int

const (
	// Internal is the zero value so untagged errors degrade to a server error.
	Internal Kind = iota
	TokenInvalid
	PrincipalNotFound
	PermissionDenied
	InvalidArgument
	NotFound
	MethodNotAllowed
	RateLimited
	StorageUnavailable
)

var kindNames = map[Kind]string{
	Internal:           "internal",
	TokenInvalid:       "token_invalid",
	PrincipalNotFound:  "principal_not_found",
	PermissionDenied:   "permission_denied",
	InvalidArgument:    "invalid_argument",
	NotFound:           "not_found",
	MethodNotAllowed:   "method_not_allowed",
	RateLimited:        "rate_limited",
	StorageUnavailable: "storage_unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure tagged with a Kind. Code optionally carries a
// domain-specific envelope code (e.g. 10003 for a taken user name); zero
// means "use the default code for the kind".
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and code, so sentinel values declared with
// New can be compared with errors.Is even after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// New creates a tagged error with a domain code.
func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// E creates a tagged error with the default code for its kind.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags err with kind. A nil err returns nil.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
