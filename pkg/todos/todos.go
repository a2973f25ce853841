// Package todos implements the per-user to-do list.
package todos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/listing"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

// Field limits match the todos table columns.
const (
	MaxTitleLength       = 127
	MaxDescriptionLength = 1000
)

// Todo is one item of a user's list.
type Todo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	OwnerID     int64     `json:"owner_id"`
	CreateTime  time.Time `json:"create_time"`
	UpdateTime  time.Time `json:"update_time"`
}

// Input is the body of create and update requests. Completed is ignored on
// create.
type Input struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// FieldDocs documents the todos table columns.
var FieldDocs = map[string]string{
	"id":          "primary key",
	"title":       "title",
	"description": "description",
	"completed":   "completion flag",
	"owner_id":    "owning user id",
	"create_time": "creation time",
	"update_time": "last update time",
}

// ErrTodoNotFound is returned for missing items and items owned by someone
// else.
var ErrTodoNotFound = apperr.E(apperr.NotFound, "todo not found")

// Table describes the todos table for list queries.
var Table = listing.Table[Todo]{
	Name:    "todos",
	Columns: []string{"id", "title", "description", "completed", "owner_id", "create_time", "update_time"},
	Scan:    scanTodo,
}

const todoColumns = `id, title, description, completed, owner_id, create_time, update_time`

func scanTodo(s listing.Scanner) (Todo, error) {
	var t Todo
	err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.OwnerID, &t.CreateTime, &t.UpdateTime)
	return t, err
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.E(apperr.InvalidArgument, "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return apperr.E(apperr.InvalidArgument, fmt.Sprintf("title must be at most %d bytes", MaxTitleLength))
	}
	if len(in.Description) > MaxDescriptionLength {
		return apperr.E(apperr.InvalidArgument, fmt.Sprintf("description must be at most %d bytes", MaxDescriptionLength))
	}
	return nil
}

// Store persists to-do items. Every operation is scoped to one owner.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a to-do store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// List returns a page of ownerID's items.
func (s *Store) List(ctx context.Context, ownerID int64, q pagination.Query) (pagination.Result[Todo], error) {
	return listing.NewService(s.db, Table).Where("owner_id = $1", ownerID).Page(ctx, q)
}

// Get returns one of ownerID's items.
func (s *Store) Get(ctx context.Context, ownerID, id int64) (*Todo, error) {
	t, err := scanTodo(s.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND owner_id = $2`, id, ownerID,
	))
	if err == sql.ErrNoRows {
		return nil, ErrTodoNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to get todo", err)
	}
	return &t, nil
}

// Create adds an open item for ownerID.
func (s *Store) Create(ctx context.Context, ownerID int64, in Input) (*Todo, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Todo{
		Title:       in.Title,
		Description: in.Description,
		OwnerID:     ownerID,
		CreateTime:  now,
		UpdateTime:  now,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO todos (title, description, completed, owner_id, create_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, t.Title, t.Description, false, ownerID, now).Scan(&t.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to create todo", err)
	}
	return t, nil
}

// Update replaces the title, description and completion flag of an item.
func (s *Store) Update(ctx context.Context, ownerID, id int64, in Input) (*Todo, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE todos SET title = $1, description = $2, completed = $3, update_time = $4
		WHERE id = $5 AND owner_id = $6
	`, in.Title, in.Description, in.Completed, s.now().UTC(), id, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to update todo", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "failed to get affected rows", err)
	} else if n == 0 {
		return nil, ErrTodoNotFound
	}
	return s.Get(ctx, ownerID, id)
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, ownerID, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to delete todo", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to get affected rows", err)
	} else if n == 0 {
		return ErrTodoNotFound
	}
	return nil
}
