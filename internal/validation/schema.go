// =============================================================================
// CSV Invoice Validator - Row Schemas
// =============================================================================
//
// Each row kind is described by a rule table: the ordered list of fields,
// the column each field is read from, and the rules the field must satisfy.
// The engine evaluates every table the same way:
//   1. Extract every field (trimmed unless the field is marked raw)
//   2. For each field in order, run every rule, then its lookup if any
//   3. If nothing failed, build the typed row
//
// All rules of a field run; a blank required number reports both the
// presence and the format failure.
//
// =============================================================================

package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/csv-invoice-validator/internal/csvparser"
	"github.com/ginjaninja78/csv-invoice-validator/internal/rules"
	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
)

// =============================================================================
// RULES
// =============================================================================

// rule checks one field value. check returns the failure message and false
// when the value is rejected.
type rule struct {
	kind  ErrorKind
	check func(value string) (string, bool)
}

func presence() rule {
	return rule{FieldPresence, func(v string) (string, bool) {
		return rules.MsgBlank, rules.Present(v)
	}}
}

func length(min, max int) rule {
	return rule{FieldFormat, func(v string) (string, bool) {
		return rules.Length(v, min, max)
	}}
}

func satisfies(kind ErrorKind, message string, pred func(string) bool) rule {
	return rule{kind, func(v string) (string, bool) {
		return message, pred(v)
	}}
}

func amount(decimals int) rule {
	return satisfies(FieldFormat, rules.MsgNotValidNumber, func(v string) bool {
		return rules.Amount(v, decimals)
	})
}

func percentage() rule {
	return satisfies(FieldFormat, rules.MsgNotValidNumber, rules.Percentage)
}

func date() rule {
	return satisfies(FieldFormat, rules.MsgNotValidDate, rules.ISODate)
}

func optionalDate() rule {
	return satisfies(FieldFormat, rules.MsgNotValidDate, rules.OptionalISODate)
}

// =============================================================================
// FIELDS AND SCHEMAS
// =============================================================================

// lookup is a cross-record check that may query the identity directory.
// It reports failures through st and returns an error only when the
// directory itself fails.
type lookup func(ctx context.Context, st *rowState) error

// fieldSpec is one row of a rule table.
type fieldSpec struct {
	name   string
	column int
	rules  []rule
	lookup lookup

	// raw keeps the cell untrimmed.
	raw bool

	// noLine reports failures without the "Line n:" prefix.
	noLine bool
}

// schema is the rule table of one row kind.
type schema struct {
	kind   RowKind
	fields []fieldSpec
	build  func(st *rowState) Row
}

// =============================================================================
// ROW STATE
// =============================================================================

// rowState carries one record through its schema.
type rowState struct {
	line          int
	values        map[string]string
	errs          []ValidationError
	authenticated types.Issuer

	issuer          types.Issuer
	customer        types.Customer
	customerCreated bool
}

func newRowState(rec csvparser.Record, s *schema, authenticated types.Issuer) *rowState {
	st := &rowState{
		line:          rec.Line,
		values:        make(map[string]string, len(s.fields)),
		authenticated: authenticated,
	}
	for _, f := range s.fields {
		v := rec.Cell(f.column)
		if !f.raw {
			v = strings.TrimSpace(v)
		}
		st.values[f.name] = v
	}
	return st
}

// fail records a failure on the current line.
func (st *rowState) fail(field string, kind ErrorKind, message string) {
	st.errs = append(st.errs, ValidationError{Line: st.line, Field: field, Kind: kind, Message: message})
}

func (st *rowState) str(name string) string {
	return st.values[name]
}

// dec converts a field that already passed its numeric rule.
func (st *rowState) dec(name string) decimal.Decimal {
	d, err := rules.ParseDecimal(st.values[name])
	if err != nil {
		return decimal.Zero
	}
	return d
}

// day converts a field that already passed its date rule. An empty cell
// yields the zero time.
func (st *rowState) day(name string) time.Time {
	v := st.values[name]
	if v == "" {
		return time.Time{}
	}
	t, err := rules.ParseDate(v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// run evaluates the schema against the state.
func (s *schema) run(ctx context.Context, st *rowState) error {
	for _, f := range s.fields {
		value := st.values[f.name]
		for _, r := range f.rules {
			if msg, ok := r.check(value); !ok {
				line := st.line
				if f.noLine {
					line = 0
				}
				st.errs = append(st.errs, ValidationError{Line: line, Field: f.name, Kind: r.kind, Message: msg})
			}
		}
		if f.lookup != nil {
			if err := f.lookup(ctx, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// RULE TABLES
// =============================================================================

// buildSchemas assembles the rule tables. The header and payment schedule
// tables close over the validator's capabilities.
func (v *Validator) buildSchemas() map[RowKind]*schema {
	numeric2 := []rule{presence(), amount(2)}
	numeric4 := []rule{presence(), amount(4)}
	numeric6 := []rule{presence(), amount(6)}
	percent := []rule{presence(), percentage()}

	return map[RowKind]*schema{
		KindVersion: {
			kind: KindVersion,
			fields: []fieldSpec{
				{name: "version", column: 0, raw: true, noLine: true, rules: []rule{{
					kind: UnsupportedVersion,
					check: func(s string) (string, bool) {
						return fmt.Sprintf("Version %s is not supported", s), s == v.opts.SupportedVersion
					},
				}}},
			},
			build: func(st *rowState) Row {
				return VersionRow{Line: st.line, Version: st.str("version")}
			},
		},

		KindHeader: {
			kind: KindHeader,
			fields: []fieldSpec{
				{name: "issuer_tax_id", column: 1, lookup: v.checkIssuer},
				{name: "customer_id", column: 2, lookup: v.resolveCustomer},
				{name: "customer_tax_id", column: 3, rules: []rule{
					presence(),
					satisfies(ChecksumInvalid, rules.MsgNotValidTaxID, v.identity.ValidateTaxID),
				}},
				{name: "customer_name", column: 4, rules: []rule{presence(), length(4, 80)}},
				{name: "customer_accounting_service", column: 5, rules: []rule{presence(), length(0, 10)}},
				{name: "customer_management_unit", column: 6, rules: []rule{presence(), length(0, 10)}},
				{name: "customer_processing_unit", column: 7, rules: []rule{presence(), length(0, 10)}},
				{name: "customer_address", column: 8, rules: []rule{length(0, 80)}},
				{name: "customer_postal_code", column: 9, rules: []rule{
					satisfies(FieldFormat, rules.MsgNotValidPostCode, rules.PostalCode),
				}},
				{name: "customer_town", column: 10, rules: []rule{length(0, 50)}},
				{name: "customer_province", column: 11, rules: []rule{length(0, 20)}},
				{name: "invoice_serie", column: 12, rules: []rule{presence(), length(0, 20)}},
				{name: "invoice_number", column: 13, rules: []rule{presence(), length(0, 20)}},
				{name: "invoice_date", column: 14, rules: []rule{date()}},
				{name: "invoice_subject", column: 15, rules: []rule{length(0, 80)}},
			},
			build: func(st *rowState) Row {
				return HeaderRow{
					Line:              st.line,
					Issuer:            st.issuer,
					Customer:          st.customer,
					CustomerCreated:   st.customerCreated,
					CustomerRef:       st.str("customer_id"),
					CustomerTaxID:     st.str("customer_tax_id"),
					CustomerName:      st.str("customer_name"),
					AccountingService: st.str("customer_accounting_service"),
					ManagementUnit:    st.str("customer_management_unit"),
					ProcessingUnit:    st.str("customer_processing_unit"),
					Address:           st.str("customer_address"),
					PostalCode:        st.str("customer_postal_code"),
					Town:              st.str("customer_town"),
					Province:          st.str("customer_province"),
					Serie:             st.str("invoice_serie"),
					Number:            st.str("invoice_number"),
					Date:              st.day("invoice_date"),
					Subject:           st.str("invoice_subject"),
				}
			},
		},

		KindDetail: {
			kind: KindDetail,
			fields: []fieldSpec{
				{name: "article_code", column: 1, rules: []rule{presence(), length(1, 20)}},
				{name: "delivery_note_number", column: 2},
				{name: "delivery_note_date", column: 3, rules: []rule{optionalDate()}},
				{name: "item_description", column: 4, rules: []rule{presence(), length(1, 80)}},
				{name: "quantity", column: 5, rules: numeric6},
				{name: "unit_price_without_tax", column: 6, rules: numeric6},
				{name: "total_line", column: 7, rules: numeric4},
				{name: "discount_reason", column: 8},
				{name: "discount_rate", column: 9, rules: percent},
				{name: "discount_amount", column: 10, rules: numeric6},
				{name: "tax_rate", column: 11, rules: percent},
				{name: "tax_base", column: 12, rules: numeric2},
				{name: "tax_amount", column: 13, rules: numeric2},
			},
			build: func(st *rowState) Row {
				return DetailRow{
					Line:               st.line,
					ArticleCode:        st.str("article_code"),
					DeliveryNoteNumber: st.str("delivery_note_number"),
					DeliveryNoteDate:   st.day("delivery_note_date"),
					ItemDescription:    st.str("item_description"),
					Quantity:           st.dec("quantity"),
					UnitPrice:          st.dec("unit_price_without_tax"),
					TotalLine:          st.dec("total_line"),
					DiscountReason:     st.str("discount_reason"),
					DiscountRate:       st.dec("discount_rate"),
					DiscountAmount:     st.dec("discount_amount"),
					TaxRate:            st.dec("tax_rate"),
					TaxBase:            st.dec("tax_base"),
					TaxAmount:          st.dec("tax_amount"),
				}
			},
		},

		KindTaxRate: {
			kind: KindTaxRate,
			fields: []fieldSpec{
				{name: "tax_rate", column: 1, rules: percent},
				{name: "tax_base", column: 2, rules: numeric2},
				{name: "tax_amount", column: 3, rules: numeric2},
			},
			build: func(st *rowState) Row {
				return TaxRateRow{
					Line:   st.line,
					Rate:   st.dec("tax_rate"),
					Base:   st.dec("tax_base"),
					Amount: st.dec("tax_amount"),
				}
			},
		},

		KindTotals: {
			kind: KindTotals,
			fields: []fieldSpec{
				{name: "total_gross_amount", column: 1, rules: numeric2},
				{name: "general_discount_reason", column: 2},
				{name: "general_discount_rate", column: 3, rules: percent},
				{name: "total_general_discount", column: 4, rules: numeric6},
				{name: "total_amount_before_taxes", column: 5, rules: numeric2},
				{name: "total_invoice", column: 6, rules: numeric2},
			},
			build: func(st *rowState) Row {
				return TotalsRow{
					Line:                  st.line,
					GrossAmount:           st.dec("total_gross_amount"),
					GeneralDiscountReason: st.str("general_discount_reason"),
					GeneralDiscountRate:   st.dec("general_discount_rate"),
					GeneralDiscount:       st.dec("total_general_discount"),
					AmountBeforeTaxes:     st.dec("total_amount_before_taxes"),
					TotalInvoice:          st.dec("total_invoice"),
				}
			},
		},

		KindPaymentSchedule: {
			kind: KindPaymentSchedule,
			fields: []fieldSpec{
				{name: "installment_due_date", column: 1, rules: []rule{presence(), date()}},
				{name: "installment_due_amount", column: 2, rules: numeric2},
				{name: "payment_means", column: 3, rules: []rule{
					presence(),
					satisfies(FieldFormat, rules.MsgOnlyPaymentMeans, rules.PaymentMeans),
				}},
				{name: "account_number_to_be_credited", column: 4, rules: []rule{
					satisfies(ChecksumInvalid, rules.MsgOnlyValidIBAN, v.iban.IsValidIBAN),
				}},
			},
			build: func(st *rowState) Row {
				return PaymentScheduleRow{
					Line:          st.line,
					DueDate:       st.day("installment_due_date"),
					Amount:        st.dec("installment_due_amount"),
					PaymentMeans:  st.str("payment_means"),
					AccountNumber: st.str("account_number_to_be_credited"),
				}
			},
		},

		KindUnsupported: {
			kind: KindUnsupported,
			fields: []fieldSpec{
				{name: "file", column: 0, raw: true, rules: []rule{{
					kind: UnsupportedRowKind,
					check: func(s string) (string, bool) {
						return fmt.Sprintf("This row kind %s is not supported", s), false
					},
				}}},
			},
		},
	}
}
