package csvparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n", "\ufeff"} {
		_, err := NewReader(raw, ',')
		assert.ErrorIs(t, err, ErrEmptyInput, "%q", raw)
	}
}

func TestNewReader_InvalidUTF8(t *testing.T) {
	_, err := NewReader("v1.0,\xff\xfe", ',')
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestReader_NumbersRecords(t *testing.T) {
	raw := "v1.0,a,b\n1,\" quoted, cell \",x\n\n2,y\n"

	records, err := ReadAll(raw, ',')
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, 1, records[0].Line)
	assert.Equal(t, []string{"v1.0", "a", "b"}, records[0].Cells)

	assert.Equal(t, 2, records[1].Line)
	assert.Equal(t, " quoted, cell ", records[1].Cell(1), "cells are not trimmed")

	assert.Equal(t, 3, records[2].Line)
	assert.Empty(t, records[2].Cells)

	assert.Equal(t, 4, records[3].Line)
	assert.Equal(t, "", records[3].Cell(5))
}

func TestReader_BlankLines(t *testing.T) {
	raw := "v1.0,\"multi\nline\",c\r\n\r\n\n1,x\n2,y\n\n"

	records, err := ReadAll(raw, ',')
	require.NoError(t, err)

	var lines []int
	var widths []int
	for _, rec := range records {
		lines = append(lines, rec.Line)
		widths = append(widths, len(rec.Cells))
	}
	assert.Equal(t, []int{1, 3, 4, 5, 6, 7}, lines)
	assert.Equal(t, []int{3, 0, 0, 2, 2, 0}, widths)
}

func TestReader_StripsBOM(t *testing.T) {
	records, err := ReadAll("\ufeffv1.0,x", ',')
	require.NoError(t, err)
	assert.Equal(t, "v1.0", records[0].Cell(0))
}

func TestReader_Delimiter(t *testing.T) {
	records, err := ReadAll("v1.0;a;b", ';')
	require.NoError(t, err)
	assert.Len(t, records[0].Cells, 3)
}

func TestReader_StrayQuoteIsAnError(t *testing.T) {
	r, err := NewReader("v1.0,ok\n1,bad\"quote\n2,never", ',')
	require.NoError(t, err)

	require.True(t, r.Next())
	assert.False(t, r.Next())
	require.Error(t, r.Err())
	assert.Contains(t, r.Err().Error(), "line 2")
	assert.Equal(t, 1, r.Line())
	assert.False(t, r.Next(), "reader stays stopped after an error")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", Preview("abc", 64))
	assert.Equal(t, strings.Repeat("x", 64), Preview(strings.Repeat("x", 100), 64))
	assert.Equal(t, "ñá", Preview("ñáé", 2))
	assert.Equal(t, "", Preview("abc", 0))
}
