package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/adminkit/pkg/audit"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/todos"
	"github.com/platinummonkey/adminkit/pkg/users"
)

// Migration is one schema step. Versions are applied in ascending order and
// recorded in schema_migrations.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrations returns the schema history.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create users",
			SQL: `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(60) NOT NULL,
	password VARCHAR(128) NOT NULL,
	avatar VARCHAR(255) NOT NULL DEFAULT '',
	email VARCHAR(128) NOT NULL DEFAULT '',
	gender SMALLINT NOT NULL DEFAULT 0,
	phone VARCHAR(32) NOT NULL DEFAULT '',
	is_active SMALLINT NOT NULL DEFAULT 0,
	is_deleted SMALLINT NOT NULL DEFAULT 0,
	role_id BIGINT,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_name_live ON users (name) WHERE is_deleted = 0;
CREATE INDEX IF NOT EXISTS users_role_id ON users (role_id);`,
		},
		{
			Version:     2,
			Description: "create roles, resources and role_resource",
			SQL: `
CREATE TABLE IF NOT EXISTS roles (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(64) NOT NULL,
	code VARCHAR(64) NOT NULL UNIQUE,
	description VARCHAR(255) NOT NULL DEFAULT '',
	is_deleted SMALLINT NOT NULL DEFAULT 0,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS resources (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(64) NOT NULL,
	level SMALLINT NOT NULL DEFAULT 0,
	pid BIGINT NOT NULL DEFAULT 0,
	icon VARCHAR(64) NOT NULL DEFAULT '',
	menu_url VARCHAR(255) NOT NULL DEFAULT '',
	request_url VARCHAR(255) NOT NULL DEFAULT '',
	permission_code VARCHAR(128) NOT NULL DEFAULT '',
	is_deleted SMALLINT NOT NULL DEFAULT 0,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS role_resource (
	role_id BIGINT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
	resource_id BIGINT NOT NULL REFERENCES resources (id) ON DELETE CASCADE,
	PRIMARY KEY (role_id, resource_id)
);
CREATE INDEX IF NOT EXISTS role_resource_resource_id ON role_resource (resource_id);`,
		},
		{
			Version:     3,
			Description: "create todos",
			SQL: `
CREATE TABLE IF NOT EXISTS todos (
	id BIGSERIAL PRIMARY KEY,
	title VARCHAR(127) NOT NULL,
	description VARCHAR(1000) NOT NULL DEFAULT '',
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	owner_id BIGINT NOT NULL REFERENCES users (id),
	create_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS todos_owner_id ON todos (owner_id);`,
		},
		{
			Version:     4,
			Description: "create sys_log",
			SQL: `
CREATE TABLE IF NOT EXISTS sys_log (
	id BIGSERIAL PRIMARY KEY,
	url VARCHAR(64) NOT NULL,
	method VARCHAR(10) NOT NULL,
	ip VARCHAR(20) NOT NULL,
	params VARCHAR(255) NOT NULL DEFAULT '',
	spend_time VARCHAR(30) NOT NULL DEFAULT '',
	create_time TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sys_log_create_time ON sys_log (create_time);`,
		},
		{
			Version:     5,
			Description: "column comments",
			SQL: strings.Join([]string{
				columnComments("users", users.FieldDocs),
				columnComments("roles", rbac.RoleFieldDocs),
				columnComments("resources", rbac.ResourceFieldDocs),
				columnComments("role_resource", rbac.RoleResourceFieldDocs),
				columnComments("todos", todos.FieldDocs),
				columnComments("sys_log", audit.FieldDocs),
			}, "\n"),
		},
	}
}

// columnComments renders COMMENT ON COLUMN statements in column order.
func columnComments(table string, docs map[string]string) string {
	columns := make([]string, 0, len(docs))
	for column := range docs {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	var b strings.Builder
	for _, column := range columns {
		fmt.Fprintf(&b, "COMMENT ON COLUMN %s.%s IS '%s';\n",
			table, column, strings.ReplaceAll(docs[column], "'", "''"))
	}
	return b.String()
}

// Migrate applies pending migrations, each in its own transaction, and
// returns how many ran.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read schema_migrations: %w", err)
	}

	ran := 0
	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return ran, err
		}
		ran++
	}
	return ran, nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
