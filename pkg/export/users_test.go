package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/adminkit/pkg/users"
)

func TestUsersWorkbook(t *testing.T) {
	role := int64(2)
	created := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	rows := []users.User{
		{ID: 1, Name: "admin", Password: "digest", Email: "admin@example.com", Gender: users.GenderFemale,
			IsActive: users.ActiveAvailable, RoleID: &role, CreateTime: created, UpdateTime: created},
		{ID: 2, Name: "guest", IsActive: users.ActiveForbidden, CreateTime: created, UpdateTime: created},
	}

	data, err := UsersWorkbook(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{UsersSheet}, f.GetSheetList())

	got, err := f.GetRows(UsersSheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, UsersHeader, got[0])
	assert.Equal(t, []string{"1", "admin", "admin@example.com", "", "female", "available", "2", "2024-03-01 08:30:00", "2024-03-01 08:30:00"}, got[1])
	assert.Equal(t, "forbidden", got[2][5])
	assert.Equal(t, "", got[2][6])

	for _, row := range got {
		assert.NotContains(t, row, "digest")
	}
}

func TestUsersWorkbook_Empty(t *testing.T) {
	data, err := UsersWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(UsersSheet)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
