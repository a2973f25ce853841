package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/listing"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

const userColumns = `id, name, password, avatar, email, gender, phone, is_active, is_deleted, role_id, create_time, update_time`

// Table describes the users table for list queries. Soft-deleted rows are
// never visible.
var Table = listing.Table[User]{
	Name: "users",
	Columns: []string{
		"id", "name", "password", "avatar", "email", "gender", "phone",
		"is_active", "is_deleted", "role_id", "create_time", "update_time",
	},
	Where: "is_deleted = 0",
	Scan:  scanUser,
}

// Store persists users. Writes go to the primary; lists go to the reader,
// which is a replica when one is configured.
type Store struct {
	db     *sql.DB
	reader *sql.DB
	now    func() time.Time
}

// NewStore creates a user store. reader may be nil.
func NewStore(db, reader *sql.DB) *Store {
	if reader == nil {
		reader = db
	}
	return &Store{db: db, reader: reader, now: time.Now}
}

func scanUser(s listing.Scanner) (User, error) {
	var u User
	var roleID sql.NullInt64
	err := s.Scan(
		&u.ID,
		&u.Name,
		&u.Password,
		&u.Avatar,
		&u.Email,
		&u.Gender,
		&u.Phone,
		&u.IsActive,
		&u.IsDeleted,
		&roleID,
		&u.CreateTime,
		&u.UpdateTime,
	)
	if err != nil {
		return User{}, err
	}
	if roleID.Valid {
		id := roleID.Int64
		u.RoleID = &id
	}
	return u, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// isUniqueViolation reports a unique index conflict from PostgreSQL.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Create inserts u and fills in its id and timestamps.
func (s *Store) Create(ctx context.Context, u *User) error {
	now := s.now().UTC()
	query := `
		INSERT INTO users (name, password, avatar, email, gender, phone, is_active, is_deleted, role_id, create_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $9)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		u.Name, u.Password, u.Avatar, u.Email, u.Gender, u.Phone, u.IsActive, nullableID(u.RoleID), now,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return ErrUsernameUsed
	}
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to create user", err)
	}

	u.IsDeleted = 0
	u.CreateTime = now
	u.UpdateTime = now
	return nil
}

// GetByID returns a non-deleted user.
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_deleted = 0`
	return s.getOne(ctx, query, id)
}

// GetByName returns the non-deleted user with name.
func (s *Store) GetByName(ctx context.Context, name string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE name = $1 AND is_deleted = 0`
	return s.getOne(ctx, query, name)
}

func (s *Store) getOne(ctx context.Context, query string, arg interface{}) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to get user", err)
	}
	return &u, nil
}

// Update writes every mutable column of u.
func (s *Store) Update(ctx context.Context, u *User) error {
	now := s.now().UTC()
	query := `
		UPDATE users
		SET name = $1, password = $2, avatar = $3, email = $4, gender = $5, phone = $6,
		    is_active = $7, role_id = $8, update_time = $9
		WHERE id = $10 AND is_deleted = 0
	`
	result, err := s.db.ExecContext(ctx, query,
		u.Name, u.Password, u.Avatar, u.Email, u.Gender, u.Phone, u.IsActive, nullableID(u.RoleID), now, u.ID,
	)
	if isUniqueViolation(err) {
		return ErrUsernameUsed
	}
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to update user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to get affected rows", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	u.UpdateTime = now
	return nil
}

// SoftDelete marks the user deleted. The name becomes free for reuse.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_deleted = 1, update_time = $1 WHERE id = $2 AND is_deleted = 0`,
		s.now().UTC(), id,
	)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to delete user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to get affected rows", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns one page of non-deleted users.
func (s *Store) List(ctx context.Context, filter Filter, q pagination.Query) (pagination.Result[User], error) {
	return s.lister(filter).Page(ctx, q)
}

// Count returns the number of non-deleted users.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.lister(Filter{}).Count(ctx)
}

// All returns every non-deleted user in id order, up to max rows.
func (s *Store) All(ctx context.Context, max int) ([]User, error) {
	return s.lister(Filter{}).List(ctx, 0, max)
}

func (s *Store) lister(filter Filter) *listing.Service[User] {
	svc := listing.NewService(s.reader, Table)
	if filter.NamePrefix != "" {
		svc = svc.Where(`name LIKE $1 ESCAPE '\'`, escapeLike(filter.NamePrefix)+"%")
	}
	return svc
}

// CountByRole returns the number of non-deleted users holding roleID.
func (s *Store) CountByRole(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	err := s.reader.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role_id = $1 AND is_deleted = 0`, roleID,
	).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.StorageUnavailable, fmt.Sprintf("failed to count users of role %d", roleID), err)
	}
	return n, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
