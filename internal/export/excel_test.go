package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/selloriy/selloriy/internal/domain"
)

func sampleUsers() []domain.User {
	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return []domain.User{
		{ID: 1, Username: "alice", FirstName: "Alice", CreatedAt: ts, LastActiveAt: ts},
		{ID: 2, Username: "", FirstName: "Bob", LastName: "B", ReferrerID: 1, CreatedAt: ts, LastActiveAt: ts},
	}
}

func TestUsersWorkbook(t *testing.T) {
	f, err := UsersWorkbook(sampleUsers())
	if err != nil {
		t.Fatalf("UsersWorkbook() error: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2 users)", len(rows))
	}
	if rows[0][0] != "user_id" {
		t.Errorf("header[0] = %q, want user_id", rows[0][0])
	}
	if rows[1][1] != "alice" {
		t.Errorf("row1 username = %q, want alice", rows[1][1])
	}
	if rows[2][4] != "1" {
		t.Errorf("row2 referrer_id = %q, want 1", rows[2][4])
	}
}

func TestWriteUsers(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUsers(&buf, sampleUsers()); err != nil {
		t.Fatalf("WriteUsers() error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty workbook stream")
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("stream is not a valid workbook: %v", err)
	}
	defer f.Close()
	if f.GetSheetName(0) != sheetName {
		t.Errorf("sheet = %q, want %q", f.GetSheetName(0), sheetName)
	}
}

func TestSnapshotName(t *testing.T) {
	a, b := SnapshotName(), SnapshotName()
	if a == b {
		t.Error("snapshot names should be unique")
	}
	if !strings.HasSuffix(a, ".xlsx") {
		t.Errorf("name %q should end in .xlsx", a)
	}
}
