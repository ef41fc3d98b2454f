package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTaxID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"nif", "12345678Z", true},
		{"nif lower case", "12345678z", true},
		{"nif wrong letter", "12345678A", false},
		{"nie", "X1234567L", true},
		{"nie wrong letter", "X1234567T", false},
		{"cif digit control", "B12345674", true},
		{"cif zero body", "A00000000", true},
		{"cif wrong control", "B12345678", false},
		{"cif letter control required", "P1234567D", true},
		{"cif letter org with digit control", "P12345674", false},
		{"cif either control, letter", "G1234567D", true},
		{"too short", "1234567Z", false},
		{"empty", "", false},
		{"unknown prefix", "I12345674", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTaxID(tt.id))
		})
	}
}

func TestValidIBAN(t *testing.T) {
	tests := []struct {
		name string
		iban string
		want bool
	}{
		{"spanish", "ES9121000418450200051332", true},
		{"spanish grouped", "ES91 2100 0418 4502 0005 1332", true},
		{"british", "GB82WEST12345698765432", true},
		{"lower case", "gb82west12345698765432", true},
		{"bad checksum", "ES9121000418450200051333", false},
		{"wrong length", "ES912100041845020005133", false},
		{"unknown country", "XX9121000418450200051332", false},
		{"empty", "", false},
		{"symbols", "ES91210004184502000513!2", false},
		{"turkish", "TR330006100519786457841326", true},
		{"brazilian with letters", "BR1800360305000010009795493C1", true},
		{"saudi", "SA0380000000608010167519", true},
		{"emirati", "AE070331234567890123456", true},
		{"qatari", "QA58DOHB00001234567890ABCDEFG", true},
		{"norwegian shortest", "NO9386011117947", true},
		{"turkish bad checksum", "TR330006100519786457841327", false},
		{"turkish wrong length", "TR33000610051978645784132", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIBAN(tt.iban))
		})
	}

	assert.True(t, Checker{}.IsValidIBAN("ES9121000418450200051332"))
}
