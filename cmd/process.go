// =============================================================================
// CSV Invoice Validator - Process Command
// =============================================================================
//
// This file defines the 'process' command, which converts every invoice in
// the input directory.
//
// COMMAND USAGE:
//   invoicer process --issuer <tax id> [flags]
//
// FLAGS:
//   --limit  : Override processing.max_concurrency
//   --file   : Process only the given file(s) instead of the input directory
//
// PROCESSING PIPELINE:
//   1. Create the configured directories
//   2. Discover *.csv and *.xlsx files in the input directory
//   3. For each file (concurrently, bounded by max_concurrency):
//      a. Validate the invoice
//      b. Accepted: write the XML and archive the input
//      c. Rejected: write an error log, leave the input in place
//   4. Print and write the processing summary
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/csv-invoice-validator/internal/converter"
	"github.com/ginjaninja78/csv-invoice-validator/internal/xmlwriter"
	"github.com/ginjaninja78/csv-invoice-validator/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// concurrencyLimit overrides processing.max_concurrency when positive.
var concurrencyLimit int

// onlyFiles restricts processing to the listed files.
var onlyFiles []string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate and convert every invoice in the input directory",
	Long: `The process command scans the input directory for CSV and XLSX invoices,
validates each of them on behalf of the issuer and converts the valid ones
to XML.

Files are processed concurrently. A failure on one file does not affect the
others unless processing.continue_on_error is false.

On a valid invoice:
  - The generated XML is placed in the output directory
  - The original file is moved to the input archive

On an invalid invoice:
  - An error log is created in the error log directory
  - The original file remains in the input directory`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)
	addIssuerFlag(processCmd)

	processCmd.Flags().IntVar(
		&concurrencyLimit,
		"limit",
		0,
		"Maximum number of files processed at once (default processing.max_concurrency)",
	)

	processCmd.Flags().StringSliceVar(
		&onlyFiles,
		"file",
		nil,
		"Process only these files",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	startTime := time.Now()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	dir, err := openDirectory()
	if err != nil {
		return err
	}
	defer dir.Close()

	issuer, err := currentIssuer(ctx, dir)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	files := utils.NewFileManager(cfg.Directories, cfg.Processing.ArchiveInput)

	inputFiles := onlyFiles
	if len(inputFiles) == 0 {
		inputFiles, err = files.DiscoverInputFiles()
		if err != nil {
			return err
		}
	}

	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No invoice files found in the input directory.")
		return nil
	}

	fmt.Fprintf(out, "Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 2: PROCESS FILES CONCURRENTLY
	// =========================================================================

	limit := cfg.Processing.MaxConcurrency
	if concurrencyLimit > 0 {
		limit = concurrencyLimit
	}

	conv := converter.New(newValidator(dir), files, converter.Options{
		OutputNameFormat: cfg.Processing.OutputNameFormat,
		Delimiter:        cfg.Format.DelimiterRune(),
		XML:              xmlwriter.DefaultGenerateOptions(),
		Logger:           log,
	})

	results := conv.RunBatch(ctx, inputFiles, issuer, limit, !cfg.Processing.ContinueOnError)

	for _, result := range results {
		name := filepath.Base(result.FilePath)
		switch result.Status {
		case converter.StatusAccepted:
			fmt.Fprintf(out, "  ✓ %s -> %s\n", name, result.OutputFile)
		case converter.StatusRejected:
			fmt.Fprintf(out, "  ✗ %s: %d error(s), see %s\n", name, len(result.Errors), result.ErrorLog)
		default:
			fmt.Fprintf(out, "  ! %s: %v\n", name, result.Error)
		}
	}

	// =========================================================================
	// STEP 3: SUMMARY
	// =========================================================================

	summary := converter.Summarize(results, startTime, time.Now())

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Accepted:        %d\n", summary.AcceptedFiles)
	fmt.Fprintf(out, "Rejected:        %d\n", summary.RejectedFiles)
	fmt.Fprintf(out, "Failed:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))

	summaryPath, err := utils.WriteSummaryLog(summary, cfg.Directories.OutputDir)
	if err != nil {
		log.Warn("failed to write processing summary", zap.Error(err))
	} else {
		log.Info("processing summary written", zap.String("path", summaryPath))
	}

	if summary.FailedFiles > 0 && !cfg.Processing.ContinueOnError {
		return fmt.Errorf("%d file(s) could not be processed", summary.FailedFiles)
	}
	return nil
}
