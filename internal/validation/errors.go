// =============================================================================
// CSV Invoice Validator - Validation Errors
// =============================================================================
//
// Validation failures are values, not Go errors. Every failure is recorded in
// an ordered accumulator together with the record (line) it belongs to and
// the field that failed. A Go error is only returned by the engine when one
// of its collaborators (the identity directory, the context) fails.
//
// RENDERING:
//   - Per-row failures render as "Line <n>: <message>"
//   - File-level failures (line 0) render as the bare message
//
// =============================================================================

package validation

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// ErrorKind classifies a validation failure.
type ErrorKind int

const (
	// StructuralMalformed means the input is empty or not parseable as CSV.
	StructuralMalformed ErrorKind = iota + 1

	// ColumnCountTooLow means a record carries fewer cells than required.
	ColumnCountTooLow

	// UnsupportedVersion means line 1 does not carry the supported version.
	UnsupportedVersion

	// UnsupportedRowKind means a record's kind tag is not a known row kind.
	UnsupportedRowKind

	// FieldFormat covers pattern, range and length violations.
	FieldFormat

	// FieldPresence means a required cell is blank.
	FieldPresence

	// IdentityNotFound means the issuer is unknown or is not the
	// authenticated issuer.
	IdentityNotFound

	// IdentityCreationFailed means an automatically created customer broke
	// the customer invariants.
	IdentityCreationFailed

	// ChecksumInvalid covers tax identifier and IBAN checksum failures.
	ChecksumInvalid
)

var kindNames = map[ErrorKind]string{
	StructuralMalformed:    "structural_malformed",
	ColumnCountTooLow:      "column_count_too_low",
	UnsupportedVersion:     "unsupported_version",
	UnsupportedRowKind:     "unsupported_row_kind",
	FieldFormat:            "field_format",
	FieldPresence:          "field_presence",
	IdentityNotFound:       "identity_not_found",
	IdentityCreationFailed: "identity_creation_failed",
	ChecksumInvalid:        "checksum_invalid",
}

// String returns the snake_case name of the kind.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("error_kind(%d)", int(k))
}

// IsStructural reports whether the kind invalidates the whole document
// rather than a single field.
func (k ErrorKind) IsStructural() bool {
	switch k {
	case StructuralMalformed, ColumnCountTooLow, UnsupportedVersion:
		return true
	}
	return false
}

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// ValidationError represents a single validation failure.
type ValidationError struct {
	// Line is the 1-based record number. Zero marks a file-level failure
	// that is rendered without a line prefix.
	Line int

	// Field is the name of the field that failed, or "file" / "version" for
	// document-level failures.
	Field string

	// Kind classifies the failure.
	Kind ErrorKind

	// Message is the user-facing text, without line prefix.
	Message string
}

// Rendered returns the message as shown to the user.
func (e ValidationError) Rendered() string {
	if e.Line > 0 {
		return fmt.Sprintf("Line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// String returns the field-qualified form used in logs.
func (e ValidationError) String() string {
	return fmt.Sprintf("%s %s", e.Field, e.Rendered())
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Errors is the ordered accumulator of validation failures. Order is the
// order in which failures were encountered; duplicates are kept.
type Errors struct {
	items []ValidationError
}

// Add appends one failure.
func (e *Errors) Add(line int, field string, kind ErrorKind, message string) {
	e.items = append(e.items, ValidationError{
		Line:    line,
		Field:   field,
		Kind:    kind,
		Message: message,
	})
}

// Append appends failures in order.
func (e *Errors) Append(errs ...ValidationError) {
	e.items = append(e.items, errs...)
}

// Len returns the number of failures.
func (e *Errors) Len() int {
	return len(e.items)
}

// Empty reports whether no failure was recorded.
func (e *Errors) Empty() bool {
	return len(e.items) == 0
}

// Reset drops every recorded failure.
func (e *Errors) Reset() {
	e.items = nil
}

// All returns a copy of the failures in encounter order.
func (e *Errors) All() []ValidationError {
	out := make([]ValidationError, len(e.items))
	copy(out, e.items)
	return out
}

// Messages returns the rendered messages in encounter order.
func (e *Errors) Messages() []string {
	out := make([]string, len(e.items))
	for i, item := range e.items {
		out[i] = item.Rendered()
	}
	return out
}

// ByField groups the rendered messages by field, keeping encounter order
// within each field.
func (e *Errors) ByField() map[string][]string {
	out := make(map[string][]string)
	for _, item := range e.items {
		out[item.Field] = append(out[item.Field], item.Rendered())
	}
	return out
}

// HasKind reports whether any failure of the given kind was recorded.
func (e *Errors) HasKind(kind ErrorKind) bool {
	for _, item := range e.items {
		if item.Kind == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// ERROR OUTPUT
// =============================================================================

// FormatErrors formats validation errors for display or logging.
//
// PARAMETERS:
//   - errs: The validation errors to format.
//
// RETURNS:
//   - A formatted string containing all errors.
func FormatErrors(errs []ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errs)))
	for i, err := range errs {
		builder.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, err.Field, err.Rendered()))
	}
	return builder.String()
}

// WriteErrorLog writes validation errors for one input file to filePath.
//
// PARAMETERS:
//   - source: The input file the errors belong to.
//   - errs: The validation errors to write.
//   - filePath: The path to the output file.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(source string, errs []ValidationError, filePath string) error {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Source:    %s\n", source))
	builder.WriteString(fmt.Sprintf("Validated: %s\n\n", time.Now().Format(time.RFC3339)))
	builder.WriteString(FormatErrors(errs))

	if err := os.WriteFile(filePath, []byte(builder.String()), 0644); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}
