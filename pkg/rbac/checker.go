package rbac

import (
	"fmt"

	"github.com/platinummonkey/adminkit/pkg/apperr"
)

// IsAuthorized reports whether principal holds the permission code. A nil
// principal or one without a role holds nothing. Codes match exactly;
// there is no hierarchy or wildcard, and empty codes never match.
func IsAuthorized(principal *Principal, code string) bool {
	if principal == nil || principal.role == nil || code == "" {
		return false
	}
	for _, r := range principal.resources {
		if r.PermissionCode == code {
			return true
		}
	}
	return false
}

// Guard returns a PermissionDenied error unless principal holds code.
func Guard(principal *Principal, code string) error {
	if IsAuthorized(principal, code) {
		return nil
	}
	return apperr.E(apperr.PermissionDenied, fmt.Sprintf("permission %q required", code))
}

