package xlsxparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "invoice.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestToCSV(t *testing.T) {
	path := writeWorkbook(t,
		[]interface{}{"v1.0"},
		[]interface{}{},
		[]interface{}{"3", "21", "505.00", "106.05"},
		[]interface{}{"2", "ART-1", "Hours, consulting"},
	)

	out, err := ToCSV(path, DefaultOptions())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3, "empty rows are dropped")
	assert.Equal(t, "v1.0,,,", lines[0])
	assert.Equal(t, "3,21,505.00,106.05", lines[1])
	assert.Equal(t, `2,ART-1,"Hours, consulting",`, lines[2])
}

func TestToCSV_Delimiter(t *testing.T) {
	path := writeWorkbook(t, []interface{}{"a", "b"})

	out, err := ToCSV(path, Options{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", out)
}

func TestToCSV_Sheet(t *testing.T) {
	path := writeWorkbook(t, []interface{}{"a"})

	_, err := ToCSV(path, Options{Sheet: "Missing"})
	assert.Error(t, err)

	sheets, err := Sheets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1"}, sheets)
}

func TestReadCSV(t *testing.T) {
	path := writeWorkbook(t, []interface{}{"x", "y"})
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	out, err := ReadCSV(file, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "x,y\n", out)
}

func TestToCSV_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("v1.0,a,b\n"), 0644))

	_, err := ToCSV(path, DefaultOptions())
	assert.Error(t, err)
}
