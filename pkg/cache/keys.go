package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix starts every response cache key.
const KeyPrefix = "adminkit:resp:"

// Scopes group cached responses for invalidation.
const (
	ScopeUsers = "users"
	ScopeRoles = "roles"
)

// ScopeFor maps a request path to its invalidation scope. Role and
// resource responses share ScopeRoles; everything else is ScopeUsers. The
// API prefix, if any, is skipped.
func ScopeFor(path string) string {
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		switch seg {
		case "roles", "resources":
			return ScopeRoles
		case "users", "todos", "logs":
			return ScopeUsers
		}
	}
	return ScopeUsers
}

// Key builds the cache key of a request. Query parameters are sorted by
// name and value so equivalent URLs share an entry. The principal name is
// part of the hash; responses are never shared between callers.
//
// Format: adminkit:resp:{scope}:{md5(method \0 path \0 query \0 principal)}
func Key(method, path string, query url.Values, principal string) string {
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonical strings.Builder
	for _, name := range names {
		values := append([]string(nil), query[name]...)
		sort.Strings(values)
		for _, v := range values {
			if canonical.Len() > 0 {
				canonical.WriteByte('&')
			}
			canonical.WriteString(url.QueryEscape(name))
			canonical.WriteByte('=')
			canonical.WriteString(url.QueryEscape(v))
		}
	}

	hasher := md5.New()
	hasher.Write([]byte(method))
	hasher.Write([]byte{0})
	hasher.Write([]byte(path))
	hasher.Write([]byte{0})
	hasher.Write([]byte(canonical.String()))
	hasher.Write([]byte{0})
	hasher.Write([]byte(principal))

	return KeyPrefix + ScopeFor(path) + ":" + hex.EncodeToString(hasher.Sum(nil))
}
