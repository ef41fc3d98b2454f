// =============================================================================
// CSV Invoice Validator - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   invoicer validate <file> --issuer <tax id> [--xml <path>]
//
// Validates a single CSV or XLSX invoice and prints every error message in
// file order. The exit status is 0 for a valid invoice and 2 for an invalid
// one. Nothing is archived and no error log is written.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/csv-invoice-validator/internal/converter"
	"github.com/ginjaninja78/csv-invoice-validator/internal/validation"
	"github.com/ginjaninja78/csv-invoice-validator/internal/xmlwriter"
)

// xmlOut is where the validate command writes the generated XML ("-" for
// stdout). Empty means no XML.
var xmlOut string

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a single invoice file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDirectory()
		if err != nil {
			return err
		}
		defer dir.Close()

		issuer, err := currentIssuer(cmd.Context(), dir)
		if err != nil {
			return err
		}

		raw, err := converter.ReadInput(args[0], cfg.Format.DelimiterRune())
		if err != nil {
			return err
		}

		gen := xmlwriter.NewGenerator()
		outcome, err := newValidator(dir).Validate(cmd.Context(), raw, issuer, gen)
		if err != nil {
			return err
		}

		return reportValidation(cmd.OutOrStdout(), args[0], outcome, gen)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addIssuerFlag(validateCmd)

	validateCmd.Flags().StringVar(
		&xmlOut,
		"xml",
		"",
		"Write the generated XML of a valid invoice to this path (- for stdout)",
	)
}

// reportValidation prints the verdict and, for a valid invoice, writes the
// XML requested with --xml.
func reportValidation(w io.Writer, path string, outcome *validation.Outcome, gen *xmlwriter.Generator) error {
	if !outcome.Valid() {
		fmt.Fprintf(w, "%s: invalid\n", path)
		for _, msg := range outcome.Messages() {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		log.Info("invoice rejected", zap.String("file", path), zap.Int("errors", outcome.Errors.Len()))
		return errInvalidInvoice
	}

	fmt.Fprintf(w, "%s: valid (%d rows)\n", path, outcome.RowsAccepted)
	if s, ok := gen.Summary(); ok {
		fmt.Fprintf(w, "  invoice %s/%s dated %s, total %s\n",
			s.Serie, s.Number, s.Date.Format("2006-01-02"), s.TotalInvoice.String())
	}

	if xmlOut == "" {
		return nil
	}

	doc, err := gen.Serialize()
	if err != nil {
		return err
	}
	if xmlOut == "-" {
		_, err = w.Write(doc)
		return err
	}
	if err := os.WriteFile(xmlOut, doc, 0644); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}
	return nil
}
