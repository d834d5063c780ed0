package tabular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupported is returned for files that are not spreadsheets.
var ErrUnsupported = errors.New("unsupported spreadsheet format")

// Extensions lists the spreadsheet formats ReadFile accepts.
var Extensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm"}

// IsSpreadsheet reports whether path has a spreadsheet extension.
func IsSpreadsheet(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ReadFile renders every sheet of a workbook as text, one
// "## Sheet: <name>" block per sheet with tab-separated cells.
func ReadFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".xlsm", ".xltx", ".xltm":
		return readExcelize(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

// ReadData returns the visualization data for path: spreadsheets are
// flattened with ReadFile, anything else is read as plain text.
func ReadData(path string) (string, error) {
	if IsSpreadsheet(path) {
		return ReadFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readXLSX(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		writeSheet(&text, sheet.Name, rows)
	}
	return strings.TrimSpace(text.String()), nil
}

func readExcelize(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var text strings.Builder
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		writeSheet(&text, name, rows)
	}
	return strings.TrimSpace(text.String()), nil
}

// writeSheet skips sheets without any non-blank cell.
func writeSheet(text *strings.Builder, name string, rows [][]string) {
	var body strings.Builder
	empty := true
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				empty = false
			}
		}
		body.WriteString(strings.TrimRight(strings.Join(row, "\t"), "\t"))
		body.WriteString("\n")
	}
	if empty {
		return
	}
	fmt.Fprintf(text, "## Sheet: %s\n", name)
	text.WriteString(strings.TrimRight(body.String(), "\n"))
	text.WriteString("\n\n")
}
