// =============================================================================
// CSV Invoice Validator - Checksum Module
// =============================================================================
//
// Checksum predicates for the two identifiers the invoice format carries:
//   - Spanish tax identifiers (NIF for individuals, NIE for foreigners and
//     CIF for legal entities)
//   - IBAN account numbers (ISO 13616, mod-97)
//
// Both predicates canonicalise their input first: spaces and dashes are
// removed and letters are upper-cased.
//
// =============================================================================

package checksum

import (
	"math/big"
	"strings"
)

// =============================================================================
// SPANISH TAX IDENTIFIERS
// =============================================================================

const (
	nifLetters     = "TRWAGMYFPDXBNJZSQVHLCKE"
	cifLetters     = "JABCDEFGHI"
	cifOrgTypes    = "ABCDEFGHJNPQRSUVW"
	cifLetterOnly  = "KPQSNW"
	cifDigitOnly   = "ABEH"
	nieReplacement = "XYZ"
)

// ValidTaxID reports whether id is a well-formed Spanish NIF, NIE or CIF
// whose control character matches.
func ValidTaxID(id string) bool {
	id = canonical(id)
	if len(id) != 9 {
		return false
	}

	first := id[0]
	switch {
	case isDigit(first):
		return validNIF(id[:8], id[8])
	case strings.IndexByte(nieReplacement, first) >= 0:
		prefix := byte('0' + strings.IndexByte(nieReplacement, first))
		return validNIF(string(prefix)+id[1:8], id[8])
	case first == 'K' || first == 'L' || first == 'M':
		// Special NIFs for minors and non-residents without NIE.
		return validNIF(id[1:8], id[8])
	case strings.IndexByte(cifOrgTypes, first) >= 0:
		return validCIF(id)
	}
	return false
}

func validNIF(digits string, control byte) bool {
	if !allDigits(digits) {
		return false
	}
	n := 0
	for i := 0; i < len(digits); i++ {
		n = n*10 + int(digits[i]-'0')
	}
	return nifLetters[n%23] == control
}

func validCIF(id string) bool {
	body := id[1:8]
	if !allDigits(body) {
		return false
	}

	sum := 0
	for i := 0; i < len(body); i++ {
		d := int(body[i] - '0')
		if i%2 == 0 {
			d *= 2
			d = d/10 + d%10
		}
		sum += d
	}
	digit := (10 - sum%10) % 10

	control := id[8]
	org := id[0]
	asDigit := control == byte('0'+digit)
	asLetter := control == cifLetters[digit]

	switch {
	case strings.IndexByte(cifLetterOnly, org) >= 0:
		return asLetter
	case strings.IndexByte(cifDigitOnly, org) >= 0:
		return asDigit
	default:
		return asDigit || asLetter
	}
}

// =============================================================================
// IBAN
// =============================================================================

// ibanLengths lists the IBAN length of every country in the SWIFT IBAN
// registry.
var ibanLengths = map[string]int{
	"AD": 24, "AE": 23, "AL": 28, "AT": 20, "AZ": 28, "BA": 20, "BE": 16,
	"BG": 22, "BH": 22, "BI": 27, "BR": 29, "BY": 28, "CH": 21, "CR": 22,
	"CY": 28, "CZ": 24, "DE": 22, "DJ": 27, "DK": 18, "DO": 28, "EE": 20,
	"EG": 29, "ES": 24, "FI": 18, "FK": 18, "FO": 18, "FR": 27, "GB": 22,
	"GE": 22, "GI": 23, "GL": 18, "GR": 27, "GT": 28, "HN": 28, "HR": 21,
	"HU": 28, "IE": 22, "IL": 23, "IQ": 23, "IS": 26, "IT": 27, "JO": 30,
	"KW": 30, "KZ": 20, "LB": 28, "LC": 32, "LI": 21, "LT": 20, "LU": 20,
	"LV": 21, "LY": 25, "MC": 27, "MD": 24, "ME": 22, "MK": 19, "MN": 20,
	"MR": 27, "MT": 31, "MU": 30, "NI": 28, "NL": 18, "NO": 15, "OM": 23,
	"PK": 24, "PL": 28, "PS": 29, "PT": 25, "QA": 29, "RO": 24, "RS": 22,
	"RU": 33, "SA": 24, "SC": 31, "SD": 18, "SE": 24, "SI": 19, "SK": 24,
	"SM": 27, "SO": 23, "ST": 25, "SV": 28, "TL": 23, "TN": 24, "TR": 26,
	"UA": 29, "VA": 22, "VG": 24, "XK": 20, "YE": 30,
}

var ninetySeven = big.NewInt(97)

// ValidIBAN reports whether iban has the registered length for its country
// and passes the mod-97 check.
func ValidIBAN(iban string) bool {
	iban = canonical(iban)
	if len(iban) < 5 {
		return false
	}
	want, ok := ibanLengths[iban[:2]]
	if !ok || len(iban) != want {
		return false
	}
	if !isDigit(iban[2]) || !isDigit(iban[3]) {
		return false
	}

	rearranged := iban[4:] + iban[:4]
	var numeric strings.Builder
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case isDigit(c):
			numeric.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			numeric.WriteString(itoa(int(c-'A') + 10))
		default:
			return false
		}
	}

	n, ok := new(big.Int).SetString(numeric.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, ninetySeven).Int64() == 1
}

// =============================================================================
// HELPERS
// =============================================================================

func canonical(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func itoa(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

// =============================================================================
// CAPABILITY ADAPTER
// =============================================================================

// Checker exposes the IBAN predicate as a value so it can be handed to the
// validation engine.
type Checker struct{}

// IsValidIBAN implements the engine's IBAN capability.
func (Checker) IsValidIBAN(iban string) bool {
	return ValidIBAN(iban)
}
