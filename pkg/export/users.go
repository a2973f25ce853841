package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/adminkit/pkg/users"
)

// UsersSheet is the sheet name of the user export.
const UsersSheet = "Users"

// ContentType is the MIME type of xlsx workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UsersHeader is the first row of the user export.
var UsersHeader = []string{"ID", "Name", "Email", "Phone", "Gender", "State", "Role ID", "Created", "Updated"}

var usersColumnWidths = []float64{8, 20, 28, 16, 10, 12, 10, 20, 20}

func genderLabel(g users.Gender) string {
	switch g {
	case users.GenderMale:
		return "male"
	case users.GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

func stateLabel(s users.ActiveState) string {
	switch s {
	case users.ActiveAvailable:
		return "available"
	case users.ActiveForbidden:
		return "forbidden"
	default:
		return "not set"
	}
}

func userRow(u users.User) []interface{} {
	role := ""
	if u.RoleID != nil {
		role = strconv.FormatInt(*u.RoleID, 10)
	}
	return []interface{}{
		u.ID,
		u.Name,
		u.Email,
		u.Phone,
		genderLabel(u.Gender),
		stateLabel(u.IsActive),
		role,
		u.CreateTime.UTC().Format(time.DateTime),
		u.UpdateTime.UTC().Format(time.DateTime),
	}
}

// UsersWorkbook renders rows as an xlsx workbook with a styled header.
// Password digests are never written.
func UsersWorkbook(rows []users.User) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(UsersSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(UsersHeader))
	for i, h := range UsersHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(UsersSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(UsersHeader), 1)
	if err := f.SetCellStyle(UsersSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for col, width := range usersColumnWidths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(UsersSheet, name, name, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, u := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := userRow(u)
		if err := f.SetSheetRow(UsersSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
