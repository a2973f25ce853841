// Package pagination converts page/page_size requests into bounded
// offset/limit fetches and computes page metadata for list responses.
//
// The same Query and Meta shapes are used by every list endpoint.
package pagination

import (
	"math"

	"github.com/platinummonkey/adminkit/pkg/apperr"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

var (
	// ErrInvalidPageSize is returned for a page size below 1.
	ErrInvalidPageSize = apperr.E(apperr.InvalidArgument, "page_size must be at least 1")

	// ErrPageOutOfRange is returned when the row offset of a page does not
	// fit in an int.
	ErrPageOutOfRange = apperr.E(apperr.InvalidArgument, "page is out of range")
)

// Query is a validated page request.
type Query struct {
	page     int
	pageSize int
}

// Meta is the page metadata returned alongside a list of rows.
type Meta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Pages    int64 `json:"pages"`
}

// Result pairs a page of rows with its metadata.
type Result[T any] struct {
	Rows []T
	Meta Meta
}

// New validates a page request. A page below 1 is clamped to 1; a page size
// below 1 is rejected, as is a page whose offset would overflow.
func New(page, pageSize int) (Query, error) {
	if pageSize < 1 {
		return Query{}, ErrInvalidPageSize
	}
	if page < 1 {
		page = DefaultPage
	}
	if page-1 > math.MaxInt/pageSize {
		return Query{}, ErrPageOutOfRange
	}
	return Query{page: page, pageSize: pageSize}, nil
}

// Default returns the first page with the default size.
func Default() Query {
	return Query{page: DefaultPage, pageSize: DefaultPageSize}
}

func (q Query) Page() int     { return q.page }
func (q Query) PageSize() int { return q.pageSize }

// Offset is the number of rows to skip.
func (q Query) Offset() int {
	return (q.page - 1) * q.pageSize
}

// Limit is the number of rows to fetch.
func (q Query) Limit() int {
	return q.pageSize
}

// Finalize builds the page metadata for a total row count.
func (q Query) Finalize(total int64) Meta {
	return Meta{
		Page:     q.page,
		PageSize: q.pageSize,
		Total:    total,
		Pages:    Pages(total, q.pageSize),
	}
}

// Pages is the number of pages needed for total rows. It is zero for an
// empty collection and for a non-positive page size.
func Pages(total int64, pageSize int) int64 {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return (total-1)/int64(pageSize) + 1
}
