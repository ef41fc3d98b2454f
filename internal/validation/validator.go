// =============================================================================
// CSV Invoice Validator - Validation Engine
// =============================================================================
//
// This module validates one invoice CSV document record by record and hands
// every accepted record, as a typed row, to a document assembler.
//
// VALIDATION STRATEGY:
//   1. Structural: the input must be CSV text, every record must carry the
//      minimum column count, and line 1 must carry the supported version.
//      A structural failure stops the scan.
//   2. Row-level: line 1 and every record tagged 1..5 is checked against the
//      rule table of its kind. Row failures are collected and the scan goes
//      on with the next record.
//   3. Identity: the header row's issuer must be registered and be the
//      authenticated issuer; its customer is looked up and created when
//      unknown.
//
// ERROR HANDLING:
//   - Failures are collected in encounter order, never raised
//   - The verdict is all-or-nothing: one failure rejects the document and
//     the assembler is cleared
//   - A Go error is returned only when a collaborator fails (directory
//     unreachable, context cancelled)
//
// =============================================================================

package validation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ginjaninja78/csv-invoice-validator/internal/config"
	"github.com/ginjaninja78/csv-invoice-validator/internal/csvparser"
	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
)

// =============================================================================
// CAPABILITIES
// =============================================================================

// IdentityLookup is the issuer/customer directory the engine queries and,
// for unknown customers, writes to.
type IdentityLookup interface {
	// FindIssuerByTaxID returns the issuer and true, or false when no issuer
	// is registered under taxID.
	FindIssuerByTaxID(ctx context.Context, taxID string) (types.Issuer, bool, error)

	// FindCustomerByTaxID returns the customer and true, or false when the
	// customer is unknown.
	FindCustomerByTaxID(ctx context.Context, taxID string) (types.Customer, bool, error)

	// CreateCustomer creates the customer, or returns the existing one when
	// another caller created it first. Invariant failures are reported as
	// *types.InvalidCustomerError.
	CreateCustomer(ctx context.Context, fields types.CustomerFields) (types.Customer, error)

	// ValidateTaxID reports whether taxID passes the tax identifier checksum.
	ValidateTaxID(taxID string) bool
}

// IBANChecker validates bank account numbers.
type IBANChecker interface {
	IsValidIBAN(iban string) bool
}

// Assembler builds the output document from accepted rows.
type Assembler interface {
	// Clear drops every row received so far.
	Clear()

	// AddRow receives one accepted row, in input order.
	AddRow(row Row)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options contains options for validation.
type Options struct {
	// SupportedVersion is the only accepted line 1 tag.
	// Default: "v1.0"
	SupportedVersion string

	// MinColumns is the minimum cell count of every record.
	// Default: 16
	MinColumns int

	// PreviewLength is the number of characters of malformed input quoted
	// back in the error message.
	// Default: 64
	PreviewLength int

	// Delimiter separates cells.
	// Default: ','
	Delimiter rune

	// Logger receives debug output per record and a summary per document.
	// Default: no-op
	Logger *zap.Logger
}

// DefaultOptions returns the options of the v1.0 invoice format.
func DefaultOptions() Options {
	return Options{
		SupportedVersion: "v1.0",
		MinColumns:       16,
		PreviewLength:    64,
		Delimiter:        ',',
		Logger:           zap.NewNop(),
	}
}

// OptionsFromConfig builds options from the format settings.
func OptionsFromConfig(format config.FormatSettings, log *zap.Logger) Options {
	return Options{
		SupportedVersion: format.SupportedVersion,
		MinColumns:       format.MinColumns,
		PreviewLength:    format.PreviewLength,
		Delimiter:        format.DelimiterRune(),
		Logger:           log,
	}
}

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome is the verdict on one document.
type Outcome struct {
	// Errors holds every failure in encounter order.
	Errors Errors

	// RecordsRead is the number of records the scan reached.
	RecordsRead int

	// RowsAccepted is the number of rows forwarded to the assembler.
	RowsAccepted int

	// Aborted reports whether a structural failure stopped the scan.
	Aborted bool
}

// Valid reports whether the document was accepted.
func (o *Outcome) Valid() bool {
	return o.Errors.Empty()
}

// Messages returns the rendered failures in encounter order.
func (o *Outcome) Messages() []string {
	return o.Errors.Messages()
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator validates invoice documents. It keeps no per-document state, so
// one Validator may serve concurrent Validate calls as long as its
// capabilities are safe for concurrent use.
type Validator struct {
	identity IdentityLookup
	iban     IBANChecker
	opts     Options
	log      *zap.Logger
	schemas  map[RowKind]*schema
}

// NewValidator creates a Validator.
//
// PARAMETERS:
//   - identity: The issuer/customer directory.
//   - iban: The IBAN checker.
//   - opts: Format options; zero fields fall back to DefaultOptions.
func NewValidator(identity IdentityLookup, iban IBANChecker, opts Options) *Validator {
	def := DefaultOptions()
	if opts.SupportedVersion == "" {
		opts.SupportedVersion = def.SupportedVersion
	}
	if opts.MinColumns == 0 {
		opts.MinColumns = def.MinColumns
	}
	if opts.PreviewLength == 0 {
		opts.PreviewLength = def.PreviewLength
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = def.Delimiter
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}

	v := &Validator{
		identity: identity,
		iban:     iban,
		opts:     opts,
		log:      opts.Logger.Named("validation"),
	}
	v.schemas = v.buildSchemas()
	return v
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks raw against the invoice format on behalf of issuer and
// forwards every accepted row to asm.
//
// PARAMETERS:
//   - ctx: Bounds the directory queries. Cancellation stops the scan.
//   - raw: The whole CSV text.
//   - issuer: The authenticated issuer the invoice must belong to.
//   - asm: The document assembler. It is cleared first, and cleared again
//     when the document is rejected.
//
// RETURNS:
//   - The outcome. Outcome.Valid reports the verdict.
//   - An error only when a collaborator failed; the outcome is nil then.
func (v *Validator) Validate(ctx context.Context, raw string, issuer types.Issuer, asm Assembler) (*Outcome, error) {
	asm.Clear()
	out := &Outcome{}

	reader, err := csvparser.NewReader(raw, v.opts.Delimiter)
	if err != nil {
		v.malformed(out, raw)
		return v.finish(out, asm), nil
	}

	for reader.Next() {
		if err := ctx.Err(); err != nil {
			asm.Clear()
			return nil, err
		}

		rec := reader.Record()
		out.RecordsRead++

		if n := len(rec.Cells); n < v.opts.MinColumns {
			out.Errors.Add(0, "file", ColumnCountTooLow,
				fmt.Sprintf("Column count %d is less than minimum %d", n, v.opts.MinColumns))
			out.Aborted = true
			break
		}

		if !inspected(rec) {
			v.log.Debug("record skipped", zap.Int("line", rec.Line), zap.String("tag", rec.Cell(0)))
			continue
		}

		row, errs, err := v.validateRecord(ctx, rec, issuer)
		if err != nil {
			asm.Clear()
			return nil, err
		}

		if len(errs) > 0 {
			out.Errors.Append(errs...)
			if rec.Line == 1 {
				out.Aborted = true
				break
			}
			continue
		}

		asm.AddRow(row)
		out.RowsAccepted++
	}

	if err := reader.Err(); err != nil {
		v.log.Debug("csv parse failed", zap.Error(err))
		v.malformed(out, raw)
		out.Aborted = true
	}

	if !out.Aborted && out.RecordsRead == 0 {
		v.malformed(out, raw)
	}

	return v.finish(out, asm), nil
}

// ValidateRecord runs one record through the dispatcher and its schema. It
// is exposed for callers that stream records themselves.
func (v *Validator) ValidateRecord(ctx context.Context, rec csvparser.Record, issuer types.Issuer) (Row, []ValidationError, error) {
	return v.validateRecord(ctx, rec, issuer)
}

func (v *Validator) validateRecord(ctx context.Context, rec csvparser.Record, issuer types.Issuer) (Row, []ValidationError, error) {
	kind := Dispatch(rec)
	s := v.schemas[kind]

	st := newRowState(rec, s, issuer)
	if err := s.run(ctx, st); err != nil {
		return nil, nil, err
	}

	v.log.Debug("record validated",
		zap.Int("line", rec.Line),
		zap.Stringer("kind", kind),
		zap.Int("errors", len(st.errs)),
	)

	if len(st.errs) > 0 || s.build == nil {
		return nil, st.errs, nil
	}
	return s.build(st), nil, nil
}

func (v *Validator) malformed(out *Outcome, raw string) {
	preview := csvparser.Preview(raw, v.opts.PreviewLength)
	out.Errors.Add(0, "file", StructuralMalformed, fmt.Sprintf("\"%s...\" is not a valid CSV file", preview))
}

func (v *Validator) finish(out *Outcome, asm Assembler) *Outcome {
	if !out.Valid() {
		asm.Clear()
	}
	v.log.Info("document validated",
		zap.Bool("valid", out.Valid()),
		zap.Int("records", out.RecordsRead),
		zap.Int("rows", out.RowsAccepted),
		zap.Int("errors", out.Errors.Len()),
		zap.Bool("aborted", out.Aborted),
	)
	return out
}

// =============================================================================
// IDENTITY LOOKUPS
// =============================================================================

// checkIssuer requires the header's issuer to be registered and to be the
// authenticated issuer. Both checks always run.
func (v *Validator) checkIssuer(ctx context.Context, st *rowState) error {
	taxID := st.str("issuer_tax_id")

	issuer, found, err := v.identity.FindIssuerByTaxID(ctx, taxID)
	if err != nil {
		return fmt.Errorf("find issuer %q: %w", taxID, err)
	}
	if !found {
		st.fail("issuer_tax_id", IdentityNotFound, fmt.Sprintf("Issuer %s is not registered", taxID))
	}
	if st.authenticated.TaxID != taxID {
		st.fail("issuer_tax_id", IdentityNotFound,
			fmt.Sprintf("Issuer %s is not current issuer. You can not upload invoices from another issuer", taxID))
	}

	st.issuer = issuer
	return nil
}

// resolveCustomer finds the header's customer by tax id and creates it when
// it is unknown. Creation failures are reported under "customer".
func (v *Validator) resolveCustomer(ctx context.Context, st *rowState) error {
	fields := types.CustomerFields{
		TaxID:             st.str("customer_tax_id"),
		Name:              st.str("customer_name"),
		AccountingService: st.str("customer_accounting_service"),
		ManagementUnit:    st.str("customer_management_unit"),
		ProcessingUnit:    st.str("customer_processing_unit"),
	}

	customer, found, err := v.identity.FindCustomerByTaxID(ctx, fields.TaxID)
	if err != nil {
		return fmt.Errorf("find customer %q: %w", fields.TaxID, err)
	}
	if found {
		st.customer = customer
		return nil
	}

	customer, err = v.identity.CreateCustomer(ctx, fields)
	var invalid *types.InvalidCustomerError
	if errors.As(err, &invalid) {
		for _, problem := range invalid.Problems {
			st.fail("customer", IdentityCreationFailed, problem)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("create customer %q: %w", fields.TaxID, err)
	}

	v.log.Info("customer created", zap.String("tax_id", customer.TaxID), zap.Stringer("id", customer.ID))
	st.customer = customer
	st.customerCreated = true
	return nil
}
