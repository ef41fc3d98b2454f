package validation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/csv-invoice-validator/internal/checksum"
	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeIdentity struct {
	mu          sync.Mutex
	issuers     map[string]types.Issuer
	customers   map[string]types.Customer
	createCalls int
	lookups     int
	failWith    error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		issuers: map[string]types.Issuer{
			"B12345674": {ID: uuid.New(), TaxID: "B12345674", Name: "Issuer SL"},
			"B00000000": {ID: uuid.New(), TaxID: "B00000000", Name: "Other SL"},
		},
		customers: map[string]types.Customer{},
	}
}

func (f *fakeIdentity) FindIssuerByTaxID(_ context.Context, taxID string) (types.Issuer, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.failWith != nil {
		return types.Issuer{}, false, f.failWith
	}
	i, ok := f.issuers[taxID]
	return i, ok, nil
}

func (f *fakeIdentity) FindCustomerByTaxID(_ context.Context, taxID string) (types.Customer, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	c, ok := f.customers[taxID]
	return c, ok, nil
}

func (f *fakeIdentity) CreateCustomer(_ context.Context, fields types.CustomerFields) (types.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	if !checksum.ValidTaxID(fields.TaxID) {
		return types.Customer{}, &types.InvalidCustomerError{
			TaxID:    fields.TaxID,
			Problems: []string{"Tax id is not a valid tax identifier"},
		}
	}
	if existing, ok := f.customers[fields.TaxID]; ok {
		return existing, nil
	}
	c := types.Customer{
		ID:                uuid.New(),
		TaxID:             fields.TaxID,
		Name:              fields.Name,
		AccountingService: fields.AccountingService,
		ManagementUnit:    fields.ManagementUnit,
		ProcessingUnit:    fields.ProcessingUnit,
	}
	f.customers[c.TaxID] = c
	return c, nil
}

func (f *fakeIdentity) ValidateTaxID(taxID string) bool {
	return checksum.ValidTaxID(taxID)
}

type recordingAssembler struct {
	rows   []Row
	clears int
}

func (a *recordingAssembler) Clear() {
	a.rows = nil
	a.clears++
}

func (a *recordingAssembler) AddRow(r Row) {
	a.rows = append(a.rows, r)
}

// =============================================================================
// FIXTURES
// =============================================================================

var currentIssuer = types.Issuer{TaxID: "B12345674", Name: "Issuer SL"}

// record pads cells to the 16 column minimum.
func record(cells ...string) string {
	for len(cells) < 16 {
		cells = append(cells, "")
	}
	return strings.Join(cells, ",")
}

func doc(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

var (
	versionLine = record("v1.0")
	headerLine  = record("1", "B12345674", "C-1", "A00000000", "Acme SL", "AS01", "MU01", "PU01",
		"Calle Mayor 1", "28001", "Madrid", "Madrid", "S001", "000123", "2024-01-15", "Services")
	detailLine = record("2", "ART-1", "DN-1", "2024-01-10", "Consulting hours", "10", "50.5", "505.00",
		"", "0", "0", "21", "505.00", "106.05")
	taxLine     = record("3", "21", "505.00", "106.05")
	totalsLine  = record("4", "505.00", "", "0", "0", "505.00", "611.05")
	paymentLine = record("5", "2024-02-15", "611.05", "04", "ES9121000418450200051332")
)

func validDocument() string {
	return doc(versionLine, headerLine, detailLine, taxLine, totalsLine, paymentLine)
}

func newTestValidator(identity *fakeIdentity) *Validator {
	return NewValidator(identity, checksum.Checker{}, DefaultOptions())
}

func runValidate(t *testing.T, v *Validator, raw string) (*Outcome, *recordingAssembler) {
	t.Helper()
	asm := &recordingAssembler{}
	out, err := v.Validate(context.Background(), raw, currentIssuer, asm)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out, asm
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestValidate_ValidDocument(t *testing.T) {
	identity := newFakeIdentity()
	identity.customers["A00000000"] = types.Customer{ID: uuid.New(), TaxID: "A00000000", Name: "Acme SL"}

	out, asm := runValidate(t, newTestValidator(identity), validDocument())

	require.True(t, out.Valid(), out.Messages())
	assert.Equal(t, 6, out.RecordsRead)
	assert.Equal(t, 6, out.RowsAccepted)
	assert.False(t, out.Aborted)

	kinds := make([]RowKind, len(asm.rows))
	for i, r := range asm.rows {
		kinds[i] = r.Kind()
		assert.Equal(t, i+1, r.LineNumber())
	}
	assert.Equal(t, []RowKind{KindVersion, KindHeader, KindDetail, KindTaxRate, KindTotals, KindPaymentSchedule}, kinds)

	header := asm.rows[1].(HeaderRow)
	assert.Equal(t, "S001", header.Serie)
	assert.Equal(t, "000123", header.Number)
	assert.Equal(t, "B12345674", header.Issuer.TaxID)
	assert.Equal(t, "A00000000", header.Customer.TaxID)
	assert.False(t, header.CustomerCreated)
	assert.Equal(t, 2024, header.Date.Year())

	detail := asm.rows[2].(DetailRow)
	assert.True(t, detail.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, detail.UnitPrice.Equal(decimal.RequireFromString("50.5")))
	assert.True(t, detail.TaxRate.Equal(decimal.NewFromInt(21)))

	totals := asm.rows[4].(TotalsRow)
	assert.True(t, totals.TotalInvoice.Equal(decimal.RequireFromString("611.05")))

	payment := asm.rows[5].(PaymentScheduleRow)
	assert.Equal(t, "04", payment.PaymentMeans)
	assert.Equal(t, 0, identity.createCalls)
}

func TestValidate_TrimsCells(t *testing.T) {
	detail := record("2", "  ART-1 ", "", "", " Hours ", " 1 ", "2", "2", "", "0", "0", "21", "2", ".42")
	out, asm := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, detail))

	require.True(t, out.Valid(), out.Messages())
	row := asm.rows[1].(DetailRow)
	assert.Equal(t, "ART-1", row.ArticleCode)
	assert.Equal(t, "Hours", row.ItemDescription)
	assert.True(t, row.DeliveryNoteDate.IsZero())
	assert.True(t, row.TaxAmount.Equal(decimal.RequireFromString("0.42")))
}

// =============================================================================
// CUSTOMER RESOLUTION
// =============================================================================

func TestValidate_CreatesUnknownCustomerOnce(t *testing.T) {
	identity := newFakeIdentity()
	v := newTestValidator(identity)

	first, asm := runValidate(t, v, validDocument())
	require.True(t, first.Valid(), first.Messages())
	header := asm.rows[1].(HeaderRow)
	assert.True(t, header.CustomerCreated)
	assert.Equal(t, "Acme SL", header.Customer.Name)
	assert.Equal(t, "PU01", identity.customers["A00000000"].ProcessingUnit)

	second, asm2 := runValidate(t, v, validDocument())
	require.True(t, second.Valid())
	assert.Equal(t, 1, identity.createCalls, "second run finds the customer")
	assert.False(t, asm2.rows[1].(HeaderRow).CustomerCreated)
	assert.Equal(t, header.Customer.ID, asm2.rows[1].(HeaderRow).Customer.ID)

	assert.Equal(t, first.Messages(), second.Messages())
	assert.Equal(t, first.RowsAccepted, second.RowsAccepted)
}

func TestValidate_CustomerCreationFailure(t *testing.T) {
	identity := newFakeIdentity()
	header := record("1", "B12345674", "C-1", "A00000001", "Acme SL", "AS01", "MU01", "PU01",
		"", "28001", "", "", "S001", "1", "2024-01-15", "")

	out, asm := runValidate(t, newTestValidator(identity), doc(versionLine, header))

	require.False(t, out.Valid())
	errs := out.Errors.All()
	require.Len(t, errs, 2)

	assert.Equal(t, "customer", errs[0].Field)
	assert.Equal(t, IdentityCreationFailed, errs[0].Kind)
	assert.Equal(t, "Line 2: Tax id is not a valid tax identifier", errs[0].Rendered())

	assert.Equal(t, "customer_tax_id", errs[1].Field)
	assert.Equal(t, ChecksumInvalid, errs[1].Kind)
	assert.Empty(t, asm.rows)
	assert.Empty(t, identity.customers)
}

// =============================================================================
// STRUCTURAL FAILURES
// =============================================================================

func TestValidate_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "  \n "} {
		out, asm := runValidate(t, newTestValidator(newFakeIdentity()), raw)

		require.False(t, out.Valid())
		errs := out.Errors.All()
		require.Len(t, errs, 1)
		assert.Equal(t, StructuralMalformed, errs[0].Kind)
		assert.Equal(t, "file", errs[0].Field)
		assert.Equal(t, 0, errs[0].Line)
		assert.Empty(t, asm.rows)
	}

	out, _ := runValidate(t, newTestValidator(newFakeIdentity()), "")
	assert.Equal(t, `"..." is not a valid CSV file`, out.Messages()[0])
}

func TestValidate_MalformedPreviewIsTruncated(t *testing.T) {
	raw := "\"" + strings.Repeat("x", 100)

	out, _ := runValidate(t, newTestValidator(newFakeIdentity()), raw)

	require.Len(t, out.Messages(), 1)
	want := "\"" + "\"" + strings.Repeat("x", 63) + "...\" is not a valid CSV file"
	assert.Equal(t, want, out.Messages()[0])
}

func TestValidate_ShortFirstRecord(t *testing.T) {
	identity := newFakeIdentity()
	out, asm := runValidate(t, newTestValidator(identity), doc("v1.0,a,b", headerLine))

	errs := out.Errors.All()
	require.Len(t, errs, 1)
	assert.Equal(t, ColumnCountTooLow, errs[0].Kind)
	assert.Equal(t, "Column count 3 is less than minimum 16", errs[0].Rendered())
	assert.True(t, out.Aborted)
	assert.Equal(t, 1, out.RecordsRead)
	assert.Empty(t, asm.rows)
	assert.Zero(t, identity.lookups)
}

func TestValidate_ShortRecordStopsScan(t *testing.T) {
	out, asm := runValidate(t, newTestValidator(newFakeIdentity()),
		doc(versionLine, detailLine, "2,too,short", record("2abc")))

	errs := out.Errors.All()
	require.Len(t, errs, 1)
	assert.Equal(t, "Column count 3 is less than minimum 16", errs[0].Message)
	assert.Equal(t, 3, out.RecordsRead)
	assert.Equal(t, 2, out.RowsAccepted)
	assert.Empty(t, asm.rows, "rejected documents leave nothing assembled")
}

func TestValidate_BlankLineStopsScan(t *testing.T) {
	out, asm := runValidate(t, newTestValidator(newFakeIdentity()),
		doc(versionLine, headerLine, "", detailLine))

	errs := out.Errors.All()
	require.Len(t, errs, 1)
	assert.Equal(t, ColumnCountTooLow, errs[0].Kind)
	assert.Equal(t, "Column count 0 is less than minimum 16", errs[0].Rendered())
	assert.True(t, out.Aborted)
	assert.False(t, out.Valid())
	assert.Equal(t, 3, out.RecordsRead)
	assert.Empty(t, asm.rows)
}

func TestValidate_PhysicalLineNumbers(t *testing.T) {
	multiline := record("2", "ART-1", "DN-1", "2024-01-10", "\"Consulting\nhours\"", "10", "50.5", "505.00",
		"", "0", "0", "21", "505.00", "106.05")
	badTax := record("3", "21", "abc", "106.05")

	out, _ := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, multiline, badTax))

	errs := out.Errors.All()
	require.Len(t, errs, 1)
	assert.Equal(t, 4, errs[0].Line)
	assert.True(t, strings.HasPrefix(errs[0].Rendered(), "Line 4: "), errs[0].Rendered())
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	identity := newFakeIdentity()
	out, asm := runValidate(t, newTestValidator(identity), doc(record("v2.0"), headerLine, detailLine))

	errs := out.Errors.All()
	require.Len(t, errs, 1)
	assert.Equal(t, UnsupportedVersion, errs[0].Kind)
	assert.Equal(t, "version", errs[0].Field)
	assert.Equal(t, "Version v2.0 is not supported", errs[0].Rendered(), "no line prefix")
	assert.Equal(t, 1, out.RecordsRead)
	assert.True(t, out.Aborted)
	assert.Zero(t, identity.lookups, "records past line 1 are not examined")
	assert.Empty(t, asm.rows)
}

func TestValidate_FirstLineIsAlwaysVersion(t *testing.T) {
	out, _ := runValidate(t, newTestValidator(newFakeIdentity()), doc(headerLine))

	require.Equal(t, []string{"Version 1 is not supported"}, out.Messages())
	assert.False(t, out.Errors.HasKind(StructuralMalformed))
}

func TestValidate_ConfiguredVersion(t *testing.T) {
	opts := DefaultOptions()
	opts.SupportedVersion = "v1.1"
	v := NewValidator(newFakeIdentity(), checksum.Checker{}, opts)

	out, _ := runValidate(t, v, validDocument())
	assert.Equal(t, []string{"Version v1.0 is not supported"}, out.Messages())

	out, _ = runValidate(t, v, doc(record("v1.1"), detailLine))
	assert.True(t, out.Valid(), out.Messages())
}

func TestValidate_ParseErrorMidDocument(t *testing.T) {
	broken := record("2", "bad\"quote")
	out, asm := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, detailLine, broken, taxLine))

	msgs := out.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasSuffix(msgs[0], "...\" is not a valid CSV file"))
	assert.True(t, out.Aborted)
	assert.Equal(t, 2, out.RecordsRead)
	assert.Empty(t, asm.rows)
}

// =============================================================================
// ROW FAILURES
// =============================================================================

func TestValidate_PaymentMeans(t *testing.T) {
	payment := record("5", "2024-02-15", "611.05", "07", "ES9121000418450200051332")
	out, _ := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, payment))

	errs := out.Errors.All()
	require.Len(t, errs, 1)
	assert.Equal(t, FieldFormat, errs[0].Kind)
	assert.Equal(t, "payment_means", errs[0].Field)
	assert.Equal(t, "Line 2: Only accepted payment means 04", errs[0].Rendered())
}

func TestValidate_InvalidIBAN(t *testing.T) {
	payment := record("5", "2024-02-15", "611.05", "04", "ES9121000418450200051333")
	out, _ := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, payment))

	errs := out.Errors.All()
	require.Len(t, errs, 1)
	assert.Equal(t, ChecksumInvalid, errs[0].Kind)
	assert.Equal(t, "Line 2: Only accepted valid IBAN", errs[0].Rendered())
}

func TestValidate_CollectsAcrossRows(t *testing.T) {
	badPostCode := record("1", "B12345674", "C-1", "A00000000", "Acme SL", "AS01", "MU01", "PU01",
		"", "2800", "", "", "S001", "1", "2024-01-15", "")
	badDetail := record("2", "ART-1", "", "2024-13-01", "Hours", "1", "1", "1.23456",
		"", "0", "0", "21", "1", "0.21")

	out, asm := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, badPostCode, badDetail, taxLine))

	assert.Equal(t, []string{
		"Line 2: Must be a valid spanish post code",
		"Line 3: Is not a valid date. Expected format is yyyy-mm-dd",
		"Line 3: Is not a valid number, quantity, tax, discount or amount",
	}, out.Messages())
	assert.False(t, out.Aborted)
	assert.Equal(t, 4, out.RecordsRead)
	assert.Equal(t, 2, out.RowsAccepted, "version and tax rows passed")
	assert.Empty(t, asm.rows)

	byField := out.Errors.ByField()
	assert.Len(t, byField["delivery_note_date"], 1)
	assert.Len(t, byField["total_line"], 1)
}

func TestValidate_BlankRequiredNumber(t *testing.T) {
	tax := record("3", "", "10", "2.1")
	out, _ := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, tax))

	errs := out.Errors.All()
	require.Len(t, errs, 2)
	assert.Equal(t, FieldPresence, errs[0].Kind)
	assert.Equal(t, "Line 2: Can't be blank", errs[0].Rendered())
	assert.Equal(t, FieldFormat, errs[1].Kind)
	assert.Equal(t, "tax_rate", errs[1].Field)
}

func TestValidate_PercentageBounds(t *testing.T) {
	for _, rate := range []string{"100.01", "101", "-5"} {
		out, _ := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, record("3", rate, "1", "1")))
		assert.Equal(t, []string{"Line 2: " + "Is not a valid number, quantity, tax, discount or amount"}, out.Messages(), rate)
	}
}

func TestValidate_LengthBounds(t *testing.T) {
	header := record("1", "B12345674", "C-1", "A00000000", "Acm", "ACCOUNTING-1", "MU01", "PU01",
		"", "28001", "", "", "S001", "1", "2024-01-15", "")
	identity := newFakeIdentity()
	identity.customers["A00000000"] = types.Customer{TaxID: "A00000000"}

	out, _ := runValidate(t, newTestValidator(identity), doc(versionLine, header))

	assert.Equal(t, []string{
		"Line 2: Is too short (minimum is 4 characters)",
		"Line 2: Is too long (maximum is 10 characters)",
	}, out.Messages())
}

func TestValidate_IssuerChecks(t *testing.T) {
	identity := newFakeIdentity()
	identity.customers["A00000000"] = types.Customer{TaxID: "A00000000"}
	v := newTestValidator(identity)

	unknown := strings.Replace(headerLine, "B12345674", "B99999999", 1)
	out, _ := runValidate(t, v, doc(versionLine, unknown))
	assert.Equal(t, []string{
		"Line 2: Issuer B99999999 is not registered",
		"Line 2: Issuer B99999999 is not current issuer. You can not upload invoices from another issuer",
	}, out.Messages())

	other := strings.Replace(headerLine, "B12345674", "B00000000", 1)
	out, _ = runValidate(t, v, doc(versionLine, other))
	require.Len(t, out.Errors.All(), 1)
	assert.Equal(t, IdentityNotFound, out.Errors.All()[0].Kind)
	assert.Contains(t, out.Messages()[0], "is not current issuer")
}

// =============================================================================
// ROW FILTERING
// =============================================================================

func TestValidate_UnsupportedAndSkippedKinds(t *testing.T) {
	out, asm := runValidate(t, newTestValidator(newFakeIdentity()), doc(
		versionLine,
		record("9", "ignored"),
		record("note", "ignored"),
		record("2abc"),
		record("02"),
		record("0"),
	))

	assert.Equal(t, []string{
		"Line 4: This row kind 2abc is not supported",
		"Line 5: This row kind 02 is not supported",
	}, out.Messages())
	for _, e := range out.Errors.All() {
		assert.Equal(t, UnsupportedRowKind, e.Kind)
		assert.Equal(t, "file", e.Field)
	}
	assert.Equal(t, 6, out.RecordsRead)
	assert.Empty(t, asm.rows)
}

func TestValidate_SkippedRecordsDoNotInvalidate(t *testing.T) {
	out, asm := runValidate(t, newTestValidator(newFakeIdentity()), doc(versionLine, record("comment"), taxLine))

	require.True(t, out.Valid())
	assert.Len(t, asm.rows, 2)
}

// =============================================================================
// COLLABORATOR FAILURES
// =============================================================================

func TestValidate_DirectoryFailure(t *testing.T) {
	identity := newFakeIdentity()
	identity.failWith = errors.New("connection refused")

	asm := &recordingAssembler{}
	out, err := newTestValidator(identity).Validate(context.Background(), validDocument(), currentIssuer, asm)

	require.Error(t, err)
	assert.ErrorIs(t, err, identity.failWith)
	assert.Nil(t, out)
	assert.Empty(t, asm.rows)
}

func TestValidate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newTestValidator(newFakeIdentity()).Validate(ctx, validDocument(), currentIssuer, &recordingAssembler{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestValidate_ClearsAssemblerFirst(t *testing.T) {
	asm := &recordingAssembler{rows: []Row{TaxRateRow{Line: 99}}}
	_, err := newTestValidator(newFakeIdentity()).Validate(context.Background(), doc(versionLine), currentIssuer, asm)

	require.NoError(t, err)
	require.Len(t, asm.rows, 1)
	assert.Equal(t, KindVersion, asm.rows[0].Kind())
}

func TestValidateRecord(t *testing.T) {
	v := newTestValidator(newFakeIdentity())
	row, errs, err := v.ValidateRecord(context.Background(), parseRecord(t, taxLine, 7), currentIssuer)

	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 7, row.LineNumber())
	assert.True(t, row.(TaxRateRow).Rate.Equal(decimal.NewFromInt(21)))
}
