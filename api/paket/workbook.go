package paket

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"

	"SimonPaket/api/constants"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// colPaketPekerjaan is the primary column heading; its presence on row 3
// marks a workbook generated from the shipped template (title + spacer on
// rows 1-2, header on row 3).
const (
	colPaketPekerjaan     = "PAKET PEKERJAAN"
	colPaketPekerjaanSnak = "PAKET_PEKERJAAN"
)

// rowRecord maps a column heading to the raw cell text of one data row.
type rowRecord map[string]string

// parsedSheet is the reader output: ordered data rows plus the detected
// layout. rowNumber converts a record index back to the physical sheet row
// for error messages.
type parsedSheet struct {
	rows       []rowRecord
	isTemplate bool
}

// rowNumber reports the human-readable sheet row for record index i.
func (p *parsedSheet) rowNumber(i int) int {
	if p.isTemplate {
		return i + 4 // title, spacer, header
	}
	return i + 2 // header only
}

// getFileExt returns the lowercase file extension
func getFileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// readGrid parses the workbook payload into a raw cell grid.
func readGrid(payload []byte, ext string) ([][]string, error) {
	switch ext {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(payload))
		r.FieldsPerRecord = -1
		return r.ReadAll()
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		return f.GetRows(sheet)
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(payload), "utf-8")
		if err != nil {
			return nil, err
		}
		return wb.ReadAllCells(100000), nil
	}
	return nil, errors.New(constants.ErrUnsupportedFileType)
}

// parseWorkbook reads the first worksheet both as a plain header-row-1 sheet
// and as the shipped template (header on row 3), then keeps whichever layout
// the first heading of row 3 indicates. Blank rows (template padding) are
// dropped.
func parseWorkbook(payload []byte, filename string) (*parsedSheet, error) {
	grid, err := readGrid(payload, getFileExt(filename))
	if err != nil {
		return nil, err
	}

	isTemplate := false
	headerIdx := 0
	if len(grid) > 2 && len(grid[2]) > 0 {
		first := strings.TrimSpace(grid[2][0])
		if first == colPaketPekerjaan || first == colPaketPekerjaanSnak {
			isTemplate = true
			headerIdx = 2
		}
	}
	if len(grid) <= headerIdx {
		return &parsedSheet{isTemplate: isTemplate}, nil
	}

	headers := make([]string, len(grid[headerIdx]))
	for i, h := range grid[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []rowRecord
	for _, raw := range grid[headerIdx+1:] {
		rec := make(rowRecord, len(headers))
		empty := true
		for j, key := range headers {
			if key == "" || j >= len(raw) {
				continue
			}
			cell := strings.TrimSpace(raw[j])
			if cell != "" {
				empty = false
			}
			rec[key] = cell
		}
		if empty {
			continue
		}
		rows = append(rows, rec)
	}

	return &parsedSheet{rows: rows, isTemplate: isTemplate}, nil
}

// pick returns the first non-blank value among the candidate column labels.
func (r rowRecord) pick(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}
