package auth

import (
	"context"
	"errors"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/users"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Verifier checks a bearer credential.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// UserLookup finds live users by name.
type UserLookup interface {
	GetByName(ctx context.Context, name string) (*users.User, error)
}

// RoleLookup loads a role and its resources.
type RoleLookup interface {
	GetRole(ctx context.Context, id int64) (*rbac.Role, error)
	ResourcesForRole(ctx context.Context, roleID int64) ([]rbac.Resource, error)
}

var errPrincipalNotFound = apperr.E(apperr.PrincipalNotFound, "principal not found")

// PrincipalResolver turns a bearer credential into the request principal.
type PrincipalResolver struct {
	tokens  Verifier
	users   UserLookup
	roles   RoleLookup
	metrics *observability.Metrics
}

// NewPrincipalResolver creates a resolver. metrics may be nil.
func NewPrincipalResolver(tokens Verifier, users UserLookup, roles RoleLookup, metrics *observability.Metrics) *PrincipalResolver {
	return &PrincipalResolver{tokens: tokens, users: users, roles: roles, metrics: metrics}
}

// Resolve verifies credential and loads the user, role and resources it
// names. An unverifiable credential is TokenInvalid and nothing is looked
// up. Missing and forbidden users are PrincipalNotFound, as is a token whose
// name now belongs to a different account.
func (r *PrincipalResolver) Resolve(ctx context.Context, credential string) (*rbac.Principal, error) {
	ctx, span := observability.Tracer().Start(ctx, "auth.ResolvePrincipal")
	defer span.End()

	p, outcome, err := r.resolve(ctx, credential)
	if r.metrics != nil {
		r.metrics.PrincipalResolveTotal.WithLabelValues(outcome).Inc()
	}
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return p, nil
}

func (r *PrincipalResolver) resolve(ctx context.Context, credential string) (*rbac.Principal, string, error) {
	claims, err := r.tokens.Verify(credential)
	if err != nil {
		return nil, "token_invalid", err
	}

	u, err := r.users.GetByName(ctx, claims.Subject)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, "not_found", errPrincipalNotFound
	}
	if err != nil {
		return nil, "error", err
	}
	if u.ID != claims.UserID {
		return nil, "stale", errPrincipalNotFound
	}
	if u.Forbidden() {
		return nil, "forbidden", errPrincipalNotFound
	}

	if u.RoleID == nil {
		return rbac.NewPrincipal(*u, nil, nil), "ok", nil
	}

	role, err := r.roles.GetRole(ctx, *u.RoleID)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return rbac.NewPrincipal(*u, nil, nil), "ok", nil
	}
	if err != nil {
		return nil, "error", err
	}

	resources, err := r.roles.ResourcesForRole(ctx, role.ID)
	if err != nil {
		return nil, "error", err
	}
	return rbac.NewPrincipal(*u, role, resources), "ok", nil
}
