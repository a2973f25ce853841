package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/events"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

// Name and password limits match the users table columns.
const (
	MaxNameLength     = 60
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// PasswordHasher turns raw passwords into digests and checks them.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// Invalidator drops cached responses that embed user data.
type Invalidator interface {
	InvalidateUsers(ctx context.Context) error
}

// AvatarStore stores avatar images and returns their public URL.
type AvatarStore interface {
	PutAvatar(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Service implements the user operations behind the HTTP handlers.
type Service struct {
	store     *Store
	hasher    PasswordHasher
	publisher events.Publisher
	cache     Invalidator
	avatars   AvatarStore
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithPublisher sends lifecycle events after successful mutations.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithInvalidator drops cached user responses after mutations.
func WithInvalidator(c Invalidator) Option {
	return func(s *Service) { s.cache = c }
}

// WithAvatarStore enables avatar uploads.
func WithAvatarStore(a AvatarStore) Option {
	return func(s *Service) { s.avatars = a }
}

// NewService creates a user service.
func NewService(store *Store, hasher PasswordHasher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		hasher:    hasher,
		publisher: events.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.E(apperr.InvalidArgument, "name is required")
	}
	if len(name) > MaxNameLength {
		return apperr.E(apperr.InvalidArgument, fmt.Sprintf("name must be at most %d bytes", MaxNameLength))
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return apperr.E(apperr.InvalidArgument,
			fmt.Sprintf("password must be between %d and %d bytes", MinPasswordLength, MaxPasswordLength))
	}
	return nil
}

func validateGender(g Gender) error {
	if g < GenderUnknown || g > GenderFemale {
		return apperr.E(apperr.InvalidArgument, "gender must be 0, 1 or 2")
	}
	return nil
}

// Signup creates an account. The name must be free among live users.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validateGender(in.Gender); err != nil {
		return nil, err
	}

	if _, err := s.store.GetByName(ctx, in.Name); err == nil {
		return nil, ErrUsernameUsed
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Name:     in.Name,
		Password: digest,
		Avatar:   in.Avatar,
		Email:    in.Email,
		Gender:   in.Gender,
		Phone:    in.Phone,
		IsActive: ActiveNotSet,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, events.UserCreated, u)
	return u, nil
}

// Authenticate checks a name/password pair. Unknown names are
// ErrUserNotFound, wrong passwords ErrUserOrPassword and disabled accounts
// ErrAccountForbidden.
func (s *Service) Authenticate(ctx context.Context, name, password string) (*User, error) {
	u, err := s.store.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, u.Password) {
		return nil, ErrUserOrPassword
	}
	if u.Forbidden() {
		return nil, ErrAccountForbidden
	}
	return u, nil
}

// Get returns a live user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// List returns a page of live users.
func (s *Service) List(ctx context.Context, filter Filter, q pagination.Query) (pagination.Result[User], error) {
	return s.store.List(ctx, filter, q)
}

// All returns up to max live users for export.
func (s *Service) All(ctx context.Context, max int) ([]User, error) {
	return s.store.All(ctx, max)
}

// PatchSelf applies a profile patch from the account owner. State and role
// fields are ignored.
func (s *Service) PatchSelf(ctx context.Context, userID int64, p Patch) (*User, error) {
	p.IsActive = nil
	p.RoleID = nil
	return s.Patch(ctx, userID, p)
}

// Patch applies an administrative patch to the user with id.
func (s *Service) Patch(ctx context.Context, id int64, p Patch) (*User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, u, p)
}

func (s *Service) apply(ctx context.Context, u *User, p Patch) (*User, error) {
	if p.Name != nil && *p.Name != u.Name {
		if err := validateName(*p.Name); err != nil {
			return nil, err
		}
		if other, err := s.store.GetByName(ctx, *p.Name); err == nil && other.ID != u.ID {
			return nil, ErrUsernameUsed
		} else if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		u.Name = *p.Name
	}
	if p.Password != nil {
		if err := validatePassword(*p.Password); err != nil {
			return nil, err
		}
		digest, err := s.hasher.Hash(*p.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		u.Password = digest
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Gender != nil {
		if err := validateGender(*p.Gender); err != nil {
			return nil, err
		}
		u.Gender = *p.Gender
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.IsActive != nil {
		if *p.IsActive < ActiveNotSet || *p.IsActive > ActiveForbidden {
			return nil, apperr.E(apperr.InvalidArgument, "is_active must be 0, 1 or 2")
		}
		u.IsActive = *p.IsActive
	}
	if p.RoleID != nil {
		id := *p.RoleID
		u.RoleID = &id
	}

	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, events.UserUpdated, u)
	return u, nil
}

// Delete soft-deletes the user with id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.afterMutation(ctx, events.UserDeleted, u)
	return nil
}

// UploadAvatar stores an avatar image for the user and records its URL.
func (s *Service) UploadAvatar(ctx context.Context, userID int64, filename string, body io.Reader, size int64, contentType string) (*User, error) {
	if s.avatars == nil {
		return nil, apperr.E(apperr.InvalidArgument, "avatar uploads are not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.E(apperr.InvalidArgument, "avatar must be an image")
	}

	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", u.ID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.avatars.PutAvatar(ctx, key, body, size, contentType)
	if err != nil {
		return nil, err
	}

	u.Avatar = url
	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, events.UserUpdated, u)
	return u, nil
}

// afterMutation invalidates cached user responses and publishes the event.
// Failures are logged; the mutation has already committed.
func (s *Service) afterMutation(ctx context.Context, action events.Action, u *User) {
	if s.cache != nil {
		if err := s.cache.InvalidateUsers(ctx); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("failed to invalidate cached users")
		}
	}

	event := events.UserEvent{ID: u.ID, Name: u.Name, At: time.Now().UTC()}
	if err := s.publisher.PublishUser(ctx, action, event); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("action", string(action)).Warn("failed to publish user event")
	}
}
