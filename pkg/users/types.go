package users

import (
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperr"
)

// Gender is the self-declared gender of a user
type Gender int

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// ActiveState tracks whether an account may be used
type ActiveState int

const (
	ActiveNotSet    ActiveState = 0
	ActiveAvailable ActiveState = 1
	// ActiveForbidden accounts cannot log in and their tokens do not resolve.
	ActiveForbidden ActiveState = 2
)

// User is an account. Password holds the digest and is never serialized.
type User struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Password   string      `json:"-"`
	Avatar     string      `json:"avatar"`
	Email      string      `json:"email"`
	Gender     Gender      `json:"gender"`
	Phone      string      `json:"phone"`
	IsActive   ActiveState `json:"is_active"`
	IsDeleted  int         `json:"is_deleted"`
	RoleID     *int64      `json:"role_id"`
	CreateTime time.Time   `json:"create_time"`
	UpdateTime time.Time   `json:"update_time"`
}

// Forbidden reports whether the account has been disabled.
func (u *User) Forbidden() bool {
	return u.IsActive == ActiveForbidden
}

// FieldDocs documents the users table columns.
var FieldDocs = map[string]string{
	"id":          "primary key",
	"name":        "user name, unique among non-deleted users",
	"password":    "password digest",
	"avatar":      "avatar URL",
	"email":       "email address",
	"gender":      "gender: 0 unknown, 1 male, 2 female",
	"phone":       "phone number",
	"is_active":   "state: 0 not set, 1 available, 2 forbidden",
	"is_deleted":  "soft-delete flag: 0 live, 1 deleted",
	"role_id":     "role of the user",
	"create_time": "creation time",
	"update_time": "last update time",
}

// Domain errors. They travel as InvalidArgument with the envelope codes
// clients already know.
var (
	ErrUserNotFound     = apperr.New(apperr.InvalidArgument, 10001, "user not found")
	ErrUserOrPassword   = apperr.New(apperr.InvalidArgument, 10002, "wrong user name or password")
	ErrUsernameUsed     = apperr.New(apperr.InvalidArgument, 10003, "user name already taken")
	ErrAccountForbidden = apperr.New(apperr.PermissionDenied, 0, "account is disabled")
)

// SignupInput is the body of POST /users/signup.
type SignupInput struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
	Email    string `json:"email"`
	Gender   Gender `json:"gender"`
	Phone    string `json:"phone"`
}

// Patch is a partial update. Nil fields are left unchanged. IsActive and
// RoleID are only honored on the administrative endpoint.
type Patch struct {
	Name     *string      `json:"name,omitempty"`
	Password *string      `json:"password,omitempty"`
	Avatar   *string      `json:"avatar,omitempty"`
	Email    *string      `json:"email,omitempty"`
	Gender   *Gender      `json:"gender,omitempty"`
	Phone    *string      `json:"phone,omitempty"`
	IsActive *ActiveState `json:"is_active,omitempty"`
	RoleID   *int64       `json:"role_id,omitempty"`
}

// Filter narrows a user listing.
type Filter struct {
	// NamePrefix matches users whose name starts with the value.
	NamePrefix string
}
