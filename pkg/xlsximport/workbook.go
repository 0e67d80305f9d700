package xlsximport

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook wraps an open spreadsheet file.
type Workbook struct {
	file *excelize.File
	path string
}

// Sheet is one worksheet with the header row split off and empty rows
// removed. Rows are padded to the header width.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Open reads a spreadsheet from disk. Only the xlsx family is supported.
func Open(path string) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
	default:
		return nil, fmt.Errorf("unsupported spreadsheet format %q, want .xlsx or .xlsm", filepath.Ext(path))
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{file: file, path: path}, nil
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// SheetNames lists all worksheets in workbook order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// HasSheet reports whether a worksheet with the given name exists.
func (w *Workbook) HasSheet(name string) bool {
	for _, candidate := range w.file.GetSheetList() {
		if candidate == name {
			return true
		}
	}
	return false
}

// Sheet reads one worksheet. The first row becomes the header; rows that
// are entirely empty, or whose first cell is empty, are dropped (exports
// pad the tail of each sheet with blanks).
func (w *Workbook) Sheet(name string) (*Sheet, error) {
	raw, err := w.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(raw) == 0 {
		return &Sheet{Name: name}, nil
	}

	header := make([]string, len(raw[0]))
	for i, cell := range raw[0] {
		header[i] = strings.TrimSpace(cell)
	}

	sheet := &Sheet{Name: name, Header: header}
	for _, row := range raw[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// cell returns the trimmed value at a column index, tolerating short rows.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
