// =============================================================================
// CSV Invoice Validator - Main Entry Point
// =============================================================================
//
// USAGE:
//   invoicer validate <file>  - Validate a single invoice file
//   invoicer process          - Validate and convert the input directory
//   invoicer seed <file>      - Register issuers and customers
//   invoicer version          - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Validation engine, identity directory, readers and writers
//   - pkg/       : Shared file handling utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/csv-invoice-validator/cmd"
)

func main() {
	cmd.Execute()
}
