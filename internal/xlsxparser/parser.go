// =============================================================================
// CSV Invoice Validator - XLSX Input Reader
// =============================================================================
//
// Invoices can be uploaded as spreadsheets as well as CSV files. This module
// flattens one sheet of an XLSX workbook into CSV text so it goes through
// exactly the same validation as a CSV upload.
//
// CONVERSION RULES:
//   - The first sheet is used unless Options.Sheet names another one.
//   - Cell values are taken as displayed (formatted), not raw.
//   - Every row is padded to the width of the widest row, so a version row
//     typed into A1 alone still has the full column count.
//   - Rows with only empty cells are dropped, the way blank lines are
//     dropped from CSV input.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for a workbook without sheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Options controls the conversion.
type Options struct {
	// Sheet is the sheet to read. Default: the first sheet.
	Sheet string

	// Delimiter is the separator of the produced CSV text.
	// Default: ','
	Delimiter rune
}

// DefaultOptions returns the default conversion options.
func DefaultOptions() Options {
	return Options{Delimiter: ','}
}

// ToCSV reads an XLSX file and returns the selected sheet as CSV text.
//
// PARAMETERS:
//   - path: The path to the XLSX file.
//   - opts: The conversion options.
//
// RETURNS:
//   - The sheet as CSV text.
//   - An error if the file cannot be opened or the sheet cannot be read.
func ToCSV(path string, opts Options) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return sheetToCSV(f, opts)
}

// ReadCSV is ToCSV for an already open stream, such as an upload body.
func ReadCSV(r io.Reader, opts Options) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return sheetToCSV(f, opts)
}

// Sheets lists the sheet names of a workbook in order.
func Sheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

func sheetToCSV(f *excelize.File, opts Options) (string, error) {
	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return "", ErrNoSheets
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to read rows of sheet %q: %w", sheetName, err)
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var buffer bytes.Buffer
	w := csv.NewWriter(&buffer)
	if opts.Delimiter != 0 {
		w.Comma = opts.Delimiter
	}

	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		if err := w.Write(padRow(row, width)); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}

	return buffer.String(), nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
