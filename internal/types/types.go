// =============================================================================
// CSV Invoice Validator - Shared Types
// =============================================================================
//
// This package contains the identity types shared across modules to avoid
// import cycles. Types defined here are used by:
//   - validation (resolved issuer and customer on a header row)
//   - directory  (persistence of issuers and customers)
//   - xmlwriter  (party blocks of the serialized invoice)
//
// =============================================================================

package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTITY TYPES
// =============================================================================

// Issuer is the company that emits invoices. Uploads are only accepted for
// the issuer the caller is authenticated as.
type Issuer struct {
	// ID is the directory identifier.
	ID uuid.UUID

	// TaxID is the Spanish tax identifier (NIF/CIF) of the issuer.
	TaxID string

	// Name is the registered company name.
	Name string
}

// Customer is the invoice recipient. Customers are created on the fly the
// first time a header row references an unknown tax identifier.
type Customer struct {
	ID                uuid.UUID
	TaxID             string
	Name              string
	AccountingService string
	ManagementUnit    string
	ProcessingUnit    string
}

// CustomerFields carries the header values used to create a customer.
type CustomerFields struct {
	TaxID             string
	Name              string
	AccountingService string
	ManagementUnit    string
	ProcessingUnit    string
}

// =============================================================================
// ERRORS
// =============================================================================

// InvalidCustomerError is returned when a customer cannot be created because
// its own fields break the customer invariants. Each problem is one
// user-facing message.
type InvalidCustomerError struct {
	TaxID    string
	Problems []string
}

func (e *InvalidCustomerError) Error() string {
	return fmt.Sprintf("customer %s is invalid: %s", e.TaxID, strings.Join(e.Problems, "; "))
}
