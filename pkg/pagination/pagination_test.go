package pagination

import (
	"math"
	"testing"

	"github.com/platinummonkey/adminkit/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetAndLimit(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		pageSize   int
		wantOffset int
		wantLimit  int
	}{
		{"first page", 1, 10, 0, 10},
		{"third page", 3, 10, 20, 10},
		{"size one", 7, 1, 6, 1},
		{"zero page clamps", 0, 10, 0, 10},
		{"negative page clamps", -4, 25, 0, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New(tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffset, q.Offset())
			assert.Equal(t, tt.wantLimit, q.Limit())
		})
	}
}

func TestNew_RejectsNonPositivePageSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := New(1, size)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
	}
}

func TestNew_RejectsOverflowingOffset(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		pageSize int
	}{
		{"huge page", 922337203685477583, 10},
		{"max page", math.MaxInt, 2},
		{"max size third page", 3, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.page, tt.pageSize)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
		})
	}

	q, err := New(math.MaxInt, 1)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt-1, q.Offset())
	assert.GreaterOrEqual(t, q.Offset(), 0)
}

func TestPages(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{3, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Pages(tt.total, tt.pageSize), "total=%d size=%d", tt.total, tt.pageSize)
	}
}

func TestFinalize(t *testing.T) {
	q, err := New(1, 10)
	require.NoError(t, err)

	meta := q.Finalize(3)
	assert.Equal(t, Meta{Page: 1, PageSize: 10, Total: 3, Pages: 1}, meta)

	empty := q.Finalize(0)
	assert.Equal(t, int64(0), empty.Pages)
}

func TestDefault(t *testing.T) {
	q := Default()
	assert.Equal(t, DefaultPage, q.Page())
	assert.Equal(t, DefaultPageSize, q.PageSize())
	assert.Equal(t, 0, q.Offset())
}
