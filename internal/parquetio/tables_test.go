package parquetio

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.parquet")
	rows := []TableRow{
		{TableName: "CAP01_APP", TableType: "service", Code: "C03.AH.0010", Text: "Appendectomy open"},
		{TableName: "CAP01_DIAG", TableType: "diagnosis", Code: "K35.2"},
		{TableName: "OR_ANAESTHESIA", TableType: "category", Code: "WA.10.0010"},
	}

	if err := WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("rows = %d, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], rows[i])
		}
	}
}

func TestReader_NumRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.parquet")
	rows := []TableRow{
		{TableName: "T1", TableType: "service", Code: "X1"},
		{TableName: "T1", TableType: "service", Code: "X2"},
	}
	if err := WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if r.NumRows() != 2 {
		t.Errorf("NumRows = %d, want 2", r.NumRows())
	}
}
