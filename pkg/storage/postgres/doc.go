// Package postgres holds the PostgreSQL and Redis plumbing: the primary and
// replica connection manager, the schema migrations and the Redis client
// constructor.
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//	    PrimaryURL:  cfg.Database.DSN(),
//	    ReplicaURLs: cfg.Database.ReplicaURLs,
//	}, logger)
//	if _, err := postgres.Migrate(ctx, cm.Primary()); err != nil { ... }
//
// Writes go to Primary; list queries go to Replica, which falls back to the
// primary when no replica is healthy.
package postgres
