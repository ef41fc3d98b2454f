// =============================================================================
// CSV Invoice Validator - XML Writer Module
// =============================================================================
//
// The Generator is the document assembler of the validation engine. The
// validator hands it every accepted row in file order and clears it when the
// document turns out to be invalid, so whatever it holds after a valid run is
// the complete invoice.
//
// XML STRUCTURE:
//
//   <invoice version="v1.0">
//     <parties>
//       <issuer>...</issuer>
//       <customer id="...">...</customer>
//     </parties>
//     <header>...</header>
//     <items>
//       <item n="1">...</item>
//     </items>
//     <taxes>
//       <tax n="1">...</tax>
//     </taxes>
//     <totals>...</totals>
//     <paymentSchedule>
//       <installment n="1">...</installment>
//     </paymentSchedule>
//   </invoice>
//
// Empty values are written as self-closing elements.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/csv-invoice-validator/internal/rules"
	"github.com/ginjaninja78/csv-invoice-validator/internal/validation"
)

// ErrEmptyDocument is returned by Serialize when no row was assembled.
var ErrEmptyDocument = errors.New("no rows assembled")

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version for the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding for the XML declaration.
	// Default: "UTF-8"
	Encoding string

	// RootElement is the name of the document element.
	// Default: "invoice"
	RootElement string

	// RootAttributes are additional attributes for the root element.
	// Example: {"xmlns": "http://example.com/invoice"}
	RootAttributes map[string]string

	// IndexAttribute is the attribute carrying the 1-based position of
	// items, taxes and installments.
	// Default: "n"
	IndexAttribute string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
		RootElement:           "invoice",
		RootAttributes:        make(map[string]string),
		IndexAttribute:        "n",
	}
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator collects the rows of one invoice. It is not safe for concurrent
// use; the converter creates one per file.
type Generator struct {
	options GenerateOptions

	version  *validation.VersionRow
	header   *validation.HeaderRow
	details  []validation.DetailRow
	taxes    []validation.TaxRateRow
	totals   *validation.TotalsRow
	payments []validation.PaymentScheduleRow
}

// NewGenerator creates an empty generator with default options.
func NewGenerator() *Generator {
	return NewGeneratorWithOptions(DefaultGenerateOptions())
}

// NewGeneratorWithOptions creates an empty generator.
func NewGeneratorWithOptions(options GenerateOptions) *Generator {
	return &Generator{options: options}
}

// Clear drops everything assembled so far.
func (g *Generator) Clear() {
	g.version = nil
	g.header = nil
	g.details = nil
	g.taxes = nil
	g.totals = nil
	g.payments = nil
}

// AddRow appends a validated row. A second header or totals row replaces
// the first.
func (g *Generator) AddRow(row validation.Row) {
	switch r := row.(type) {
	case validation.VersionRow:
		g.version = &r
	case validation.HeaderRow:
		g.header = &r
	case validation.DetailRow:
		g.details = append(g.details, r)
	case validation.TaxRateRow:
		g.taxes = append(g.taxes, r)
	case validation.TotalsRow:
		g.totals = &r
	case validation.PaymentScheduleRow:
		g.payments = append(g.payments, r)
	}
}

// Empty reports whether no row has been assembled.
func (g *Generator) Empty() bool {
	return g.version == nil && g.header == nil && g.totals == nil &&
		len(g.details) == 0 && len(g.taxes) == 0 && len(g.payments) == 0
}

// Header returns the assembled header row.
func (g *Generator) Header() (validation.HeaderRow, bool) {
	if g.header == nil {
		return validation.HeaderRow{}, false
	}
	return *g.header, true
}

// Totals returns the assembled totals row.
func (g *Generator) Totals() (validation.TotalsRow, bool) {
	if g.totals == nil {
		return validation.TotalsRow{}, false
	}
	return *g.totals, true
}

// Details returns the assembled invoice lines in file order.
func (g *Generator) Details() []validation.DetailRow {
	return append([]validation.DetailRow(nil), g.details...)
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary is what gets persisted about an accepted invoice.
type Summary struct {
	CustomerID   uuid.UUID
	Serie        string
	Number       string
	Date         time.Time
	Subject      string
	TotalInvoice decimal.Decimal
}

// Summary returns the invoice summary. It needs a header row; the total is
// zero when no totals row was assembled.
func (g *Generator) Summary() (Summary, bool) {
	if g.header == nil {
		return Summary{}, false
	}

	s := Summary{
		CustomerID: g.header.Customer.ID,
		Serie:      g.header.Serie,
		Number:     g.header.Number,
		Date:       g.header.Date,
		Subject:    g.header.Subject,
	}
	if g.totals != nil {
		s.TotalInvoice = g.totals.TotalInvoice
	}
	return s, true
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Serialize renders the assembled invoice.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - ErrEmptyDocument if nothing was assembled.
func (g *Generator) Serialize() ([]byte, error) {
	if g.Empty() {
		return nil, ErrEmptyDocument
	}

	var buffer bytes.Buffer

	if g.options.IncludeXMLDeclaration {
		buffer.WriteString(fmt.Sprintf("<?xml version=\"%s\" encoding=\"%s\"?>\n",
			g.options.XMLVersion, g.options.Encoding))
	}

	writeElement(&buffer, g.buildDocument(), g.options.Indent, 0)

	return buffer.Bytes(), nil
}

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr   `xml:",attr"`
	Value      string       `xml:",chardata"`
	Children   []XMLElement `xml:",any"`
}

// buildDocument constructs the element tree of the invoice.
func (g *Generator) buildDocument() XMLElement {
	root := XMLElement{XMLName: xml.Name{Local: g.rootName()}}

	// Map iteration order is random; sort for stable output.
	keys := make([]string, 0, len(g.options.RootAttributes))
	for key := range g.options.RootAttributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		root.Attributes = append(root.Attributes, attr(key, g.options.RootAttributes[key]))
	}
	if g.version != nil {
		root.Attributes = append(root.Attributes, attr("version", g.version.Version))
	}

	if g.header != nil {
		root.Children = append(root.Children, buildParties(*g.header), buildHeader(*g.header))
	}

	if len(g.details) > 0 {
		items := element("items", "")
		for i, d := range g.details {
			items.Children = append(items.Children, g.indexed("item", i, buildDetail(d)))
		}
		root.Children = append(root.Children, items)
	}

	if len(g.taxes) > 0 {
		taxes := element("taxes", "")
		for i, t := range g.taxes {
			taxes.Children = append(taxes.Children, g.indexed("tax", i, []XMLElement{
				element("rate", t.Rate.String()),
				element("base", t.Base.String()),
				element("amount", t.Amount.String()),
			}))
		}
		root.Children = append(root.Children, taxes)
	}

	if g.totals != nil {
		t := g.totals
		root.Children = append(root.Children, parent("totals",
			element("grossAmount", t.GrossAmount.String()),
			element("generalDiscountReason", t.GeneralDiscountReason),
			element("generalDiscountRate", t.GeneralDiscountRate.String()),
			element("generalDiscount", t.GeneralDiscount.String()),
			element("amountBeforeTaxes", t.AmountBeforeTaxes.String()),
			element("totalInvoice", t.TotalInvoice.String()),
		))
	}

	if len(g.payments) > 0 {
		schedule := element("paymentSchedule", "")
		for i, p := range g.payments {
			schedule.Children = append(schedule.Children, g.indexed("installment", i, []XMLElement{
				element("dueDate", formatDate(p.DueDate)),
				element("amount", p.Amount.String()),
				element("paymentMeans", p.PaymentMeans),
				element("accountNumber", p.AccountNumber),
			}))
		}
		root.Children = append(root.Children, schedule)
	}

	return root
}

func buildParties(h validation.HeaderRow) XMLElement {
	issuer := parent("issuer",
		element("taxId", h.Issuer.TaxID),
		element("name", h.Issuer.Name),
	)

	customer := parent("customer",
		element("reference", h.CustomerRef),
		element("taxId", h.CustomerTaxID),
		element("name", h.CustomerName),
		element("accountingService", h.AccountingService),
		element("managementUnit", h.ManagementUnit),
		element("processingUnit", h.ProcessingUnit),
		parent("address",
			element("street", h.Address),
			element("postalCode", h.PostalCode),
			element("town", h.Town),
			element("province", h.Province),
		),
	)
	if h.Customer.ID != uuid.Nil {
		customer.Attributes = append(customer.Attributes, attr("id", h.Customer.ID.String()))
	}

	return parent("parties", issuer, customer)
}

func buildHeader(h validation.HeaderRow) XMLElement {
	return parent("header",
		element("serie", h.Serie),
		element("number", h.Number),
		element("date", formatDate(h.Date)),
		element("subject", h.Subject),
	)
}

func buildDetail(d validation.DetailRow) []XMLElement {
	return []XMLElement{
		element("articleCode", d.ArticleCode),
		element("deliveryNoteNumber", d.DeliveryNoteNumber),
		element("deliveryNoteDate", formatDate(d.DeliveryNoteDate)),
		element("description", d.ItemDescription),
		element("quantity", d.Quantity.String()),
		element("unitPrice", d.UnitPrice.String()),
		element("totalLine", d.TotalLine.String()),
		element("discountReason", d.DiscountReason),
		element("discountRate", d.DiscountRate.String()),
		element("discountAmount", d.DiscountAmount.String()),
		element("taxRate", d.TaxRate.String()),
		element("taxBase", d.TaxBase.String()),
		element("taxAmount", d.TaxAmount.String()),
	}
}

// indexed builds a repeated element carrying its 1-based position.
func (g *Generator) indexed(name string, i int, children []XMLElement) XMLElement {
	e := XMLElement{XMLName: xml.Name{Local: name}, Children: children}
	if g.options.IndexAttribute != "" {
		e.Attributes = []xml.Attr{attr(g.options.IndexAttribute, strconv.Itoa(i+1))}
	}
	return e
}

func (g *Generator) rootName() string {
	if g.options.RootElement == "" {
		return "invoice"
	}
	return g.options.RootElement
}

func element(name, value string) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Value: value}
}

func parent(name string, children ...XMLElement) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Children: children}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(rules.DateLayout)
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)

	for _, a := range element.Attributes {
		buffer.WriteString(fmt.Sprintf(" %s=\"%s\"", a.Name.Local, escapeXML(a.Value)))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")

		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}

		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}
