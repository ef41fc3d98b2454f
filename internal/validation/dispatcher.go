package validation

import (
	"strings"

	"github.com/ginjaninja78/csv-invoice-validator/internal/csvparser"
	"github.com/ginjaninja78/csv-invoice-validator/internal/rules"
)

// Dispatch picks the row kind for a record. Line 1 and anything carrying a
// version tag is a Version row; otherwise the first cell must be exactly one
// of the numbered tags. Dispatch never fails: unknown tags map to
// KindUnsupported, whose schema reports the error.
func Dispatch(rec csvparser.Record) RowKind {
	tag := rec.Cell(0)
	if rec.Line == 1 || rules.IsVersionTag(tag) {
		return KindVersion
	}
	switch tag {
	case "1":
		return KindHeader
	case "2":
		return KindDetail
	case "3":
		return KindTaxRate
	case "4":
		return KindTotals
	case "5":
		return KindPaymentSchedule
	}
	return KindUnsupported
}

// inspected reports whether the document scan looks at a record at all.
// Only line 1 and records whose leading integer is a numbered kind are
// inspected; the rest are skipped without error.
func inspected(rec csvparser.Record) bool {
	if rec.Line == 1 {
		return true
	}
	n := leadingInt(rec.Cell(0))
	return n >= 1 && n <= 5
}

// leadingInt reads the optional sign and digits at the start of s, after
// leading whitespace, and ignores whatever follows. It returns 0 when s does
// not start with a number ("2abc" is 2, "x2" is 0).
func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1_000_000 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
