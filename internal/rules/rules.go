// =============================================================================
// CSV Invoice Validator - Field Rule Library
// =============================================================================
//
// This package holds the stateless field predicates used by the row schemas:
//   - Signed amounts with 2, 4 or 6 decimal places
//   - Percentages between 0 and 100 with up to 2 decimal places
//   - Strict ISO dates (yyyy-mm-dd), optionally empty
//   - Spanish postal codes and the accepted payment means
//   - Length bounds measured in characters
//
// Every predicate is a pure function over the trimmed cell text. The fixed
// messages the schemas attach to failed predicates live here too, so the
// wording is shared by every row kind.
//
// =============================================================================

package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MESSAGES
// =============================================================================

const (
	// MsgNotValidNumber is attached to every numeric rule failure.
	MsgNotValidNumber = "Is not a valid number, quantity, tax, discount or amount"

	// MsgNotValidDate is attached to every date rule failure.
	MsgNotValidDate = "Is not a valid date. Expected format is yyyy-mm-dd"

	// MsgBlank is attached to presence failures.
	MsgBlank = "Can't be blank"

	MsgNotValidPostCode  = "Must be a valid spanish post code"
	MsgOnlyPaymentMeans  = "Only accepted payment means 04"
	MsgOnlyValidIBAN     = "Only accepted valid IBAN"
	MsgNotValidTaxID     = "Is not a valid tax identifier"
	AcceptedPaymentMeans = "04"
)

// DateLayout is the only accepted date layout.
const DateLayout = "2006-01-02"

// =============================================================================
// COMPILED PATTERNS
// =============================================================================

var (
	amountPatterns = map[int]*regexp.Regexp{
		2: regexp.MustCompile(amountPattern(2)),
		4: regexp.MustCompile(amountPattern(4)),
		6: regexp.MustCompile(amountPattern(6)),
	}

	percentagePattern = regexp.MustCompile(`^((100|[1-9][0-9]?)(\.[0-9]{0,2})?|0(\.[0-9]{0,2})?|\.[0-9]{1,2})$`)
	datePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	postCodePattern   = regexp.MustCompile(`^\d{5}$`)
	versionPattern    = regexp.MustCompile(`^v\d\.\d$`)

	hundred = decimal.NewFromInt(100)
)

// amountPattern builds the amount expression for the given number of
// decimal places. Leading zeros are rejected, a bare leading dot is accepted.
func amountPattern(decimals int) string {
	return fmt.Sprintf(`^-?([1-9][0-9]*(\.[0-9]{0,%[1]d})?|0(\.[0-9]{0,%[1]d})?|\.[0-9]{1,%[1]d})$`, decimals)
}

// =============================================================================
// PREDICATES
// =============================================================================

// Amount reports whether s is a signed amount with at most the given number
// of decimal places. Only 2, 4 and 6 are precompiled; other precisions are
// compiled on demand.
func Amount(s string, decimals int) bool {
	re, ok := amountPatterns[decimals]
	if !ok {
		re = regexp.MustCompile(amountPattern(decimals))
	}
	return re.MatchString(s)
}

// Percentage reports whether s is a value between 0 and 100 inclusive with
// at most two decimal places.
func Percentage(s string) bool {
	if !percentagePattern.MatchString(s) {
		return false
	}
	d, err := ParseDecimal(s)
	if err != nil {
		return false
	}
	return d.LessThanOrEqual(hundred)
}

// ISODate reports whether s is a real calendar date written as yyyy-mm-dd.
func ISODate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// OptionalISODate accepts the empty string or an ISODate.
func OptionalISODate(s string) bool {
	return s == "" || ISODate(s)
}

// PostalCode reports whether s is a five digit Spanish postal code.
func PostalCode(s string) bool {
	return postCodePattern.MatchString(s)
}

// PaymentMeans reports whether s is the single accepted payment means.
func PaymentMeans(s string) bool {
	return s == AcceptedPaymentMeans
}

// IsVersionTag reports whether s looks like a format version tag (v1.0).
func IsVersionTag(s string) bool {
	return versionPattern.MatchString(s)
}

// Present reports whether s carries anything besides whitespace.
func Present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Length checks the character count of s against [min, max]. A max of zero
// or less means unbounded. The returned message is empty when s fits.
func Length(s string, min, max int) (string, bool) {
	n := utf8.RuneCountInString(s)
	if n < min {
		return fmt.Sprintf("Is too short (minimum is %d characters)", min), false
	}
	if max > 0 && n > max {
		return fmt.Sprintf("Is too long (maximum is %d characters)", max), false
	}
	return "", true
}

// =============================================================================
// TYPED CONVERSION
// =============================================================================

// ParseDecimal converts an amount or percentage cell into a decimal. The
// shorthand forms accepted by the amount rules (".5", "-.5", "1.") are
// expanded first.
func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(normalizeAmount(s))
}

func normalizeAmount(s string) string {
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	if strings.HasPrefix(body, ".") {
		body = "0" + body
	}
	body = strings.TrimSuffix(body, ".")
	if neg {
		return "-" + body
	}
	return body
}

// ParseDate converts a yyyy-mm-dd cell into a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
