package directory

import (
	"strings"

	"github.com/ginjaninja78/csv-invoice-validator/internal/checksum"
	"github.com/ginjaninja78/csv-invoice-validator/internal/rules"
	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
)

// customerLimits are the character bounds of the stored customer columns.
var customerLimits = []struct {
	label    string
	value    func(types.CustomerFields) string
	min, max int
}{
	{"Name", func(f types.CustomerFields) string { return f.Name }, 4, 80},
	{"Accounting service", func(f types.CustomerFields) string { return f.AccountingService }, 0, 10},
	{"Management unit", func(f types.CustomerFields) string { return f.ManagementUnit }, 0, 10},
	{"Processing unit", func(f types.CustomerFields) string { return f.ProcessingUnit }, 0, 10},
}

// CheckCustomer returns the customer invariant failures of fields, one
// message per failure. A nil result means the customer can be stored.
func CheckCustomer(fields types.CustomerFields) []string {
	var problems []string

	switch {
	case !rules.Present(fields.TaxID):
		problems = append(problems, "Tax id can't be blank")
	case !checksum.ValidTaxID(fields.TaxID):
		problems = append(problems, "Tax id is not a valid tax identifier")
	}

	if !rules.Present(fields.Name) {
		problems = append(problems, "Name can't be blank")
	}
	for _, limit := range customerLimits {
		if msg, ok := rules.Length(limit.value(fields), limit.min, limit.max); !ok {
			problems = append(problems, limit.label+" "+lowerFirst(msg))
		}
	}
	return problems
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
