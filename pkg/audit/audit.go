// Package audit records one SysLog row per API request and serves the
// trail to holders of the "log" permission.
package audit

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/platinummonkey/adminkit/pkg/listing"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

// Column limits of the sys_log table. Longer values are truncated.
const (
	MaxURLLength    = 64
	MaxMethodLength = 10
	MaxIPLength     = 20
	MaxParamsLength = 255
)

// SysLog is one audited request.
type SysLog struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Method string `json:"method"`
	IP     string `json:"ip"`
	Params string `json:"params"`
	// SpendTime is the handling time in seconds.
	SpendTime  string    `json:"spend_time"`
	CreateTime time.Time `json:"create_time"`
}

// FieldDocs documents the sys_log table columns.
var FieldDocs = map[string]string{
	"id":          "primary key",
	"url":         "request path",
	"method":      "request method",
	"ip":          "client ip",
	"params":      "query parameters",
	"spend_time":  "handling time in seconds",
	"create_time": "request time",
}

// Table describes the sys_log table for list queries.
var Table = listing.Table[SysLog]{
	Name:    "sys_log",
	Columns: []string{"id", "url", "method", "ip", "params", "spend_time", "create_time"},
	Scan:    scanLog,
}

func scanLog(s listing.Scanner) (SysLog, error) {
	var l SysLog
	err := s.Scan(&l.ID, &l.URL, &l.Method, &l.IP, &l.Params, &l.SpendTime, &l.CreateTime)
	return l, err
}

// truncate keeps the first n characters of s. Column limits count
// characters, and a cut never splits a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FormatSpendTime renders d as seconds with microsecond precision.
func FormatSpendTime(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

// Store persists the audit trail.
type Store struct {
	db     *sql.DB
	reader *sql.DB
}

// NewStore creates an audit store. Listings run on reader when it is not nil.
func NewStore(db, reader *sql.DB) *Store {
	if reader == nil {
		reader = db
	}
	return &Store{db: db, reader: reader}
}

// Insert writes one entry, truncating fields to their column widths.
func (s *Store) Insert(ctx context.Context, l SysLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sys_log (url, method, ip, params, spend_time, create_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		truncate(l.URL, MaxURLLength),
		truncate(l.Method, MaxMethodLength),
		truncate(l.IP, MaxIPLength),
		truncate(l.Params, MaxParamsLength),
		l.SpendTime,
		l.CreateTime.UTC(),
	)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "failed to write audit log", err)
	}
	return nil
}

// List returns a page of entries, oldest first.
func (s *Store) List(ctx context.Context, q pagination.Query) (pagination.Result[SysLog], error) {
	return listing.NewService(s.reader, Table).Page(ctx, q)
}

// Prune deletes entries created before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sys_log WHERE create_time < $1`, cutoff.UTC())
	if err != nil {
		return 0, apperr.Wrap(apperr.StorageUnavailable, "failed to prune audit log", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.StorageUnavailable, "failed to get affected rows", err)
	}
	return n, nil
}
