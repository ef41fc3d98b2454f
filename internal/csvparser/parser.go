// =============================================================================
// CSV Invoice Validator - CSV Parser Module
// =============================================================================
//
// This module turns raw invoice text into a stream of records. An invoice
// file has no header row: every record is data and its kind is carried in
// its first cell, so the parser only numbers the records and leaves the
// interpretation to the validation engine.
//
// FEATURES:
//   - Streaming: records are produced one at a time
//   - Physical 1-based line numbers, used in error messages
//   - Blank lines are records with no cells
//   - Variable number of cells per record (column count is checked by the
//     engine, not by the reader)
//   - Strict quoting: a stray quote is a parse error, not a silent repair
//   - UTF-8 byte order mark is stripped, invalid UTF-8 is rejected
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyInput is returned for input that is empty or whitespace only.
	ErrEmptyInput = errors.New("csv input is empty")

	// ErrInvalidEncoding is returned for input that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("csv input is not valid UTF-8")
)

// utf8BOM is the byte order mark some spreadsheet exports prepend.
const utf8BOM = "\ufeff"

// =============================================================================
// RECORD
// =============================================================================

// Record is one parsed CSV record.
type Record struct {
	// Line is the 1-based physical line the record starts on.
	Line int

	// Cells holds the raw cell values in column order. Cells are not
	// trimmed here.
	Cells []string
}

// Cell returns the cell at index i, or the empty string when the record is
// shorter.
func (r Record) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// =============================================================================
// STREAMING READER
// =============================================================================

// Reader provides record-at-a-time parsing of invoice text.
//
// USAGE:
//
//	r, err := csvparser.NewReader(raw, ',')
//	if err != nil { ... }
//	for r.Next() {
//	    rec := r.Record()
//	    // Process rec
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	reader *csv.Reader
	raw    string
	record Record
	line   int
	err    error

	// offset is the number of bytes of raw consumed by reader.
	offset int

	// physical counts the input lines consumed so far.
	physical int

	// pending holds records decoded but not yet returned by Next.
	pending []Record
	done    bool
}

// NewReader prepares a streaming reader over raw.
//
// PARAMETERS:
//   - raw: The whole invoice text.
//   - delimiter: The cell separator.
//
// RETURNS:
//   - The reader, positioned before the first record.
//   - ErrEmptyInput or ErrInvalidEncoding when the text cannot hold records.
func NewReader(raw string, delimiter rune) (*Reader, error) {
	raw = strings.TrimPrefix(raw, utf8BOM)
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyInput
	}
	if !utf8.ValidString(raw) {
		return nil, ErrInvalidEncoding
	}

	reader := csv.NewReader(strings.NewReader(raw))
	configureReader(reader, delimiter)

	return &Reader{reader: reader, raw: raw}, nil
}

// configureReader applies the invoice format rules to a csv.Reader.
func configureReader(reader *csv.Reader, delimiter rune) {
	if delimiter == 0 {
		delimiter = ','
	}
	reader.Comma = delimiter

	// Column count is a validation concern; let short records through.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = false
	reader.TrimLeadingSpace = false
	reader.ReuseRecord = false
}

// Next advances to the next record. It returns false at the end of input or
// on the first parse error; check Err to tell them apart.
//
// encoding/csv skips empty lines, so the consumed input is inspected to
// restore them as empty records and to keep line numbers physical.
func (r *Reader) Next() bool {
	if r.pop() {
		return true
	}
	if r.err != nil || r.done {
		return false
	}

	cells, err := r.reader.Read()
	if err == io.EOF {
		r.done = true
		r.queueBlankLines(r.raw[r.offset:])
		r.offset = len(r.raw)
		return r.pop()
	}
	if err != nil {
		r.err = fmt.Errorf("error reading line %d: %w", r.physical+1, err)
		return false
	}

	end := int(r.reader.InputOffset())
	rest := r.queueBlankLines(r.raw[r.offset:end])
	r.offset = end

	r.pending = append(r.pending, Record{Line: r.physical + 1, Cells: cells})
	r.physical += strings.Count(rest, "\n")
	if !strings.HasSuffix(rest, "\n") {
		r.physical++
	}
	return r.pop()
}

// queueBlankLines turns the empty lines leading chunk into empty records and
// returns what follows them.
func (r *Reader) queueBlankLines(chunk string) string {
	for {
		switch {
		case strings.HasPrefix(chunk, "\r\n"):
			chunk = chunk[2:]
		case strings.HasPrefix(chunk, "\n"):
			chunk = chunk[1:]
		default:
			return chunk
		}
		r.physical++
		r.pending = append(r.pending, Record{Line: r.physical})
	}
}

func (r *Reader) pop() bool {
	if len(r.pending) == 0 {
		return false
	}
	r.record = r.pending[0]
	r.pending = r.pending[1:]
	r.line++
	return true
}

// Record returns the current record.
func (r *Reader) Record() Record {
	return r.record
}

// Line returns the number of records returned so far.
func (r *Reader) Line() int {
	return r.line
}

// Err returns the parse error that stopped the reader, if any.
func (r *Reader) Err() error {
	return r.err
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// ReadAll parses the whole text at once.
func ReadAll(raw string, delimiter rune) ([]Record, error) {
	r, err := NewReader(raw, delimiter)
	if err != nil {
		return nil, err
	}

	var records []Record
	for r.Next() {
		records = append(records, r.Record())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Preview returns at most n characters of raw, for quoting malformed input
// back to the user.
func Preview(raw string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range raw {
		if count == n {
			return raw[:i]
		}
		count++
	}
	return raw
}
