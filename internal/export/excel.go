// Package export builds the admin users-snapshot workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/selloriy/selloriy/internal/domain"
)

const sheetName = "Users"

var headers = []string{
	"user_id", "username", "first_name", "last_name",
	"referrer_id", "created_at", "last_active_at",
}

// SnapshotName returns a unique filename for a users export.
func SnapshotName() string {
	return fmt.Sprintf("users-%s-%s.xlsx",
		time.Now().UTC().Format("20060102"), uuid.NewString()[:8])
}

// UsersWorkbook renders the user table into an xlsx workbook.
// The caller owns the returned file and must Close it.
func UsersWorkbook(users []domain.User) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			f.Close()
			return nil, err
		}
	}

	for row, u := range users {
		values := []any{
			u.ID, u.Username, u.FirstName, u.LastName,
			u.ReferrerID,
			u.CreatedAt.UTC().Format(time.RFC3339),
			u.LastActiveAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	return f, nil
}

// WriteUsers streams the workbook to w. Used by the HTTP export endpoint.
func WriteUsers(w io.Writer, users []domain.User) error {
	f, err := UsersWorkbook(users)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// SaveUsers writes the workbook to a file on disk. Used by the CLI.
func SaveUsers(path string, users []domain.User) error {
	f, err := UsersWorkbook(users)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}
