// Package listing implements the count + paged fetch pattern shared by every
// list endpoint.
//
// A Service is bound to one entity table. Page runs the count and the fetch in
// one read-only, repeatable-read transaction so the total and the returned
// rows come from the same snapshot. Rows are always ordered by an explicit
// key (id ascending unless the table says otherwise).
package listing

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

// DefaultOrderBy is the sort key applied when a table does not set one.
const DefaultOrderBy = "id ASC"

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...interface{}) error
}

// Table describes how to read one entity from its table.
type Table[T any] struct {
	Name    string
	Columns []string
	// Where is an always-on filter such as the soft-delete predicate.
	Where   string
	OrderBy string
	Scan    func(Scanner) (T, error)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Service lists one entity table.
type Service[T any] struct {
	db     *sql.DB
	table  Table[T]
	filter string
	args   []interface{}
}

// NewService creates a list service over table.
func NewService[T any](db *sql.DB, table Table[T]) *Service[T] {
	if table.OrderBy == "" {
		table.OrderBy = DefaultOrderBy
	}
	return &Service[T]{db: db, table: table}
}

// Where returns a copy of the service narrowed by an extra predicate. The
// predicate uses $1..$n placeholders matching args.
func (s *Service[T]) Where(clause string, args ...interface{}) *Service[T] {
	scoped := *s
	scoped.filter = clause
	scoped.args = append([]interface{}(nil), args...)
	return &scoped
}

// Count returns the number of rows visible through the service's filters.
func (s *Service[T]) Count(ctx context.Context) (int64, error) {
	return s.count(ctx, s.db)
}

// List returns up to limit rows starting at offset, in the table's order.
func (s *Service[T]) List(ctx context.Context, offset, limit int) ([]T, error) {
	return s.list(ctx, s.db, offset, limit)
}

// All returns every row visible through the service's filters in a single
// query, in the table's order.
func (s *Service[T]) All(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(s.table.Columns, ", "), s.table.Name, s.whereClause(), s.table.OrderBy)
	return s.fetch(ctx, s.db, query, s.args, 16)
}

// Page runs Count and List for q inside one read-only transaction.
func (s *Service[T]) Page(ctx context.Context, q pagination.Query) (pagination.Result[T], error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return pagination.Result[T]{}, apperr.Wrap(apperr.StorageUnavailable, "failed to begin read transaction", err)
	}
	defer tx.Rollback()

	total, err := s.count(ctx, tx)
	if err != nil {
		return pagination.Result[T]{}, err
	}

	rows, err := s.list(ctx, tx, q.Offset(), q.Limit())
	if err != nil {
		return pagination.Result[T]{}, err
	}

	if err := tx.Commit(); err != nil {
		return pagination.Result[T]{}, apperr.Wrap(apperr.StorageUnavailable, "failed to commit read transaction", err)
	}

	return pagination.Result[T]{Rows: rows, Meta: q.Finalize(total)}, nil
}

func (s *Service[T]) count(ctx context.Context, q querier) (int64, error) {
	query := "SELECT COUNT(*) FROM " + s.table.Name + s.whereClause()

	var total int64
	if err := q.QueryRowContext(ctx, query, s.args...).Scan(&total); err != nil {
		return 0, apperr.Wrap(apperr.StorageUnavailable, fmt.Sprintf("failed to count %s", s.table.Name), err)
	}
	return total, nil
}

func (s *Service[T]) list(ctx context.Context, q querier, offset, limit int) ([]T, error) {
	n := len(s.args)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		strings.Join(s.table.Columns, ", "), s.table.Name, s.whereClause(), s.table.OrderBy, n+1, n+2)

	args := append(append([]interface{}(nil), s.args...), limit, offset)
	return s.fetch(ctx, q, query, args, min(limit, 100))
}

func (s *Service[T]) fetch(ctx context.Context, q querier, query string, args []interface{}, capHint int) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, fmt.Sprintf("failed to list %s", s.table.Name), err)
	}
	defer rows.Close()

	items := make([]T, 0, capHint)
	for rows.Next() {
		item, err := s.table.Scan(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StorageUnavailable, fmt.Sprintf("failed to scan %s", s.table.Name), err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, fmt.Sprintf("failed to iterate %s", s.table.Name), err)
	}
	return items, nil
}

func (s *Service[T]) whereClause() string {
	var preds []string
	if s.table.Where != "" {
		preds = append(preds, s.table.Where)
	}
	if s.filter != "" {
		preds = append(preds, s.filter)
	}
	if len(preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(preds, " AND ")
}
