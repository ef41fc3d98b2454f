package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Rendered(t *testing.T) {
	rowErr := ValidationError{Line: 3, Field: "quantity", Kind: FieldFormat, Message: "Is not a valid number, quantity, tax, discount or amount"}
	assert.Equal(t, "Line 3: Is not a valid number, quantity, tax, discount or amount", rowErr.Rendered())
	assert.Equal(t, "quantity Line 3: Is not a valid number, quantity, tax, discount or amount", rowErr.String())

	fileErr := ValidationError{Field: "file", Kind: ColumnCountTooLow, Message: "Column count 2 is less than minimum 16"}
	assert.Equal(t, "Column count 2 is less than minimum 16", fileErr.Rendered())
}

func TestErrors_Accumulates(t *testing.T) {
	var errs Errors
	assert.True(t, errs.Empty())

	errs.Add(2, "tax_rate", FieldPresence, "Can't be blank")
	errs.Add(2, "tax_rate", FieldPresence, "Can't be blank")
	errs.Append(ValidationError{Line: 4, Field: "payment_means", Kind: FieldFormat, Message: "Only accepted payment means 04"})

	assert.Equal(t, 3, errs.Len())
	assert.Equal(t, []string{
		"Line 2: Can't be blank",
		"Line 2: Can't be blank",
		"Line 4: Only accepted payment means 04",
	}, errs.Messages(), "order kept, duplicates kept")

	byField := errs.ByField()
	assert.Len(t, byField["tax_rate"], 2)
	assert.Len(t, byField["payment_means"], 1)

	assert.True(t, errs.HasKind(FieldFormat))
	assert.False(t, errs.HasKind(ChecksumInvalid))

	all := errs.All()
	all[0].Message = "changed"
	assert.Equal(t, "Can't be blank", errs.All()[0].Message, "All returns a copy")

	errs.Reset()
	assert.True(t, errs.Empty())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "column_count_too_low", ColumnCountTooLow.String())
	assert.Equal(t, "error_kind(42)", ErrorKind(42).String())
	assert.True(t, UnsupportedVersion.IsStructural())
	assert.False(t, FieldFormat.IsStructural())
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	out := FormatErrors([]ValidationError{{Line: 2, Field: "customer_postal_code", Message: "Must be a valid spanish post code"}})
	assert.Contains(t, out, "1 error(s)")
	assert.Contains(t, out, "1. [customer_postal_code] Line 2: Must be a valid spanish post code")
}

func TestWriteErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.errors.log")
	errs := []ValidationError{{Field: "version", Message: "Version v9.9 is not supported"}}

	require.NoError(t, WriteErrorLog("invoice.csv", errs, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Source:    invoice.csv")
	assert.Contains(t, string(data), "Version v9.9 is not supported")
}
