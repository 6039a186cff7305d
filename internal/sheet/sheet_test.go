package sheet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestReadRows(t *testing.T) {
	buf := buildXLSX(t, [][]interface{}{
		{"Nombre", "Dorsal", "Posición"},
		{"Dani", 10, "Ala"},
		{},
		{"Sergio", 1, "Portero"},
	})

	rows, err := ReadRows(buf)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Get("nombre") != "Dani" || rows[0].Get("DORSAL") != "10" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Get("posicion") != "Portero" {
		t.Errorf("accent-insensitive header lookup failed: %+v", rows[1])
	}
	if rows[1].Line != 4 {
		t.Errorf("Line = %d, want 4", rows[1].Line)
	}
}

func TestReadRows_HeaderOnly(t *testing.T) {
	buf := buildXLSX(t, [][]interface{}{{"name", "phase"}})
	if _, err := ReadRows(buf); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestReadRows_NotXLSX(t *testing.T) {
	if _, err := ReadRows(bytes.NewBufferString("name,phase\n")); err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
}
