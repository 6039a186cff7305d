// Package sheet reads the first worksheet of an .xlsx upload into rows
// keyed by their (folded) header names.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"lapizarra/backend/internal/utils"

	"github.com/xuri/excelize/v2"
)

const MaxRows = 2000

var ErrEmpty = errors.New("spreadsheet has no data rows")

type Row struct {
	Line  int // 1-based spreadsheet row number
	cells map[string]string
}

// Get returns the trimmed cell under header key (case and accent insensitive).
func (r Row) Get(key string) string {
	return r.cells[utils.FoldLower(key)]
}

// NewRow builds a row from header->value pairs.
func NewRow(line int, cells map[string]string) Row {
	m := make(map[string]string, len(cells))
	for k, v := range cells {
		m[utils.FoldLower(k)] = strings.TrimSpace(v)
	}
	return Row{Line: line, cells: m}
}

// ReadRows parses the first sheet. The first non-empty row is the header;
// fully empty rows are skipped.
func ReadRows(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var header []string
	out := []Row{}
	for i, cols := range raw {
		if isBlank(cols) {
			continue
		}
		if header == nil {
			header = make([]string, len(cols))
			for j, h := range cols {
				header[j] = utils.FoldLower(h)
			}
			continue
		}
		if len(out) >= MaxRows {
			return nil, fmt.Errorf("spreadsheet exceeds %d rows", MaxRows)
		}
		cells := map[string]string{}
		for j, v := range cols {
			if j < len(header) && header[j] != "" {
				cells[header[j]] = strings.TrimSpace(v)
			}
		}
		out = append(out, Row{Line: i + 1, cells: cells})
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RowError reports why a spreadsheet row was rejected.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}
