// =============================================================================
// CSV Invoice Validator - Row Kinds and Validated Rows
// =============================================================================
//
// An invoice CSV mixes six record shapes, told apart by the first cell:
//
//   v1.0  Version          (always line 1)
//   1     Header           issuer, customer and invoice identification
//   2     Detail           one invoice line
//   3     TaxRate          one entry of the tax breakdown
//   4     Totals           invoice totals
//   5     PaymentSchedule  one installment
//
// Anything else is Unsupported. A record that passes its schema becomes one
// of the typed rows below and is handed to the document assembler.
//
// =============================================================================

package validation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
)

// =============================================================================
// ROW KIND
// =============================================================================

// RowKind is the closed set of record shapes.
type RowKind int

const (
	KindUnsupported RowKind = iota
	KindVersion
	KindHeader
	KindDetail
	KindTaxRate
	KindTotals
	KindPaymentSchedule
)

// String returns the kind name.
func (k RowKind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindHeader:
		return "header"
	case KindDetail:
		return "detail"
	case KindTaxRate:
		return "tax_rate"
	case KindTotals:
		return "totals"
	case KindPaymentSchedule:
		return "payment_schedule"
	default:
		return "unsupported"
	}
}

// Tag returns the first-cell tag of a numbered kind, or "" for Version and
// Unsupported.
func (k RowKind) Tag() string {
	switch k {
	case KindHeader:
		return "1"
	case KindDetail:
		return "2"
	case KindTaxRate:
		return "3"
	case KindTotals:
		return "4"
	case KindPaymentSchedule:
		return "5"
	}
	return ""
}

// =============================================================================
// VALIDATED ROWS
// =============================================================================

// Row is a record that passed its schema. The set of implementations is
// closed to this package.
type Row interface {
	Kind() RowKind
	LineNumber() int
	row()
}

// VersionRow is the accepted line 1.
type VersionRow struct {
	Line    int
	Version string
}

// HeaderRow identifies the parties and the invoice.
type HeaderRow struct {
	Line int

	// Issuer is the registered issuer matching issuer_tax_id.
	Issuer types.Issuer

	// Customer is the customer matching customer_tax_id, created on the fly
	// when it was not known yet.
	Customer types.Customer

	// CustomerCreated reports whether this validation created Customer.
	CustomerCreated bool

	// CustomerRef is the caller supplied customer_id cell.
	CustomerRef string

	CustomerTaxID     string
	CustomerName      string
	AccountingService string
	ManagementUnit    string
	ProcessingUnit    string
	Address           string
	PostalCode        string
	Town              string
	Province          string

	Serie   string
	Number  string
	Date    time.Time
	Subject string
}

// DetailRow is one invoice line.
type DetailRow struct {
	Line int

	ArticleCode        string
	DeliveryNoteNumber string

	// DeliveryNoteDate is the zero time when the cell was empty.
	DeliveryNoteDate time.Time

	ItemDescription string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	TotalLine       decimal.Decimal
	DiscountReason  string
	DiscountRate    decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
	TaxBase         decimal.Decimal
	TaxAmount       decimal.Decimal
}

// TaxRateRow is one entry of the tax breakdown.
type TaxRateRow struct {
	Line   int
	Rate   decimal.Decimal
	Base   decimal.Decimal
	Amount decimal.Decimal
}

// TotalsRow carries the invoice totals.
type TotalsRow struct {
	Line                  int
	GrossAmount           decimal.Decimal
	GeneralDiscountReason string
	GeneralDiscountRate   decimal.Decimal
	GeneralDiscount       decimal.Decimal
	AmountBeforeTaxes     decimal.Decimal
	TotalInvoice          decimal.Decimal
}

// PaymentScheduleRow is one installment.
type PaymentScheduleRow struct {
	Line          int
	DueDate       time.Time
	Amount        decimal.Decimal
	PaymentMeans  string
	AccountNumber string
}

func (VersionRow) Kind() RowKind         { return KindVersion }
func (HeaderRow) Kind() RowKind          { return KindHeader }
func (DetailRow) Kind() RowKind          { return KindDetail }
func (TaxRateRow) Kind() RowKind         { return KindTaxRate }
func (TotalsRow) Kind() RowKind          { return KindTotals }
func (PaymentScheduleRow) Kind() RowKind { return KindPaymentSchedule }

func (r VersionRow) LineNumber() int         { return r.Line }
func (r HeaderRow) LineNumber() int          { return r.Line }
func (r DetailRow) LineNumber() int          { return r.Line }
func (r TaxRateRow) LineNumber() int         { return r.Line }
func (r TotalsRow) LineNumber() int          { return r.Line }
func (r PaymentScheduleRow) LineNumber() int { return r.Line }

func (VersionRow) row()         {}
func (HeaderRow) row()          {}
func (DetailRow) row()          {}
func (TaxRateRow) row()         {}
func (TotalsRow) row()          {}
func (PaymentScheduleRow) row() {}
