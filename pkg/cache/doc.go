// Package cache provides the response cache for read-only list and detail
// endpoints.
//
// Responses are kept in two tiers: an expiring in-process LRU
// (hashicorp/golang-lru) in front of Redis. Concurrent misses for the same
// key run the handler once (singleflight). Keys are scoped so that user
// mutations drop only user responses and role changes drop only role and
// resource responses:
//
//	adminkit:resp:users:{md5}
//	adminkit:resp:roles:{md5}
//
// Only 200 responses are stored. Redis errors degrade to a miss. The cache
// sits behind the permission guard; a principal's own responses are never
// served to another principal because the principal name is part of the key.
package cache
