// =============================================================================
// CSV Invoice Validator - Converter Module
// =============================================================================
//
// This module runs the per-file pipeline, from reading an uploaded invoice
// to writing its XML or its error log.
//
// CONVERSION PIPELINE:
//   1. Read the input (CSV text, or the first sheet of an XLSX workbook)
//   2. Validate it on behalf of the issuer, assembling the invoice
//   3. Accepted: serialize the invoice and write the XML file
//   4. Accepted: archive the input and the output
//   5. Rejected: write the error log and leave the input in place
//
// CONCURRENCY:
//   A Converter holds no per-file state and can run many files at once.
//   RunBatch fans files out over a bounded errgroup.
//
// =============================================================================

package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
	"github.com/ginjaninja78/csv-invoice-validator/internal/validation"
	"github.com/ginjaninja78/csv-invoice-validator/internal/xlsxparser"
	"github.com/ginjaninja78/csv-invoice-validator/internal/xmlwriter"
	"github.com/ginjaninja78/csv-invoice-validator/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Status is the verdict on one file.
type Status int

const (
	// StatusFailed means the file could not be processed at all.
	StatusFailed Status = iota
	// StatusAccepted means the invoice was valid and written.
	StatusAccepted
	// StatusRejected means the invoice failed validation.
	StatusRejected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return "failed"
	}
}

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	Status Status

	// OutputFile is the path to the generated XML file.
	// This is empty unless the invoice was accepted.
	OutputFile string

	// ArchivePath is where the input was moved, if it was archived.
	ArchivePath string

	// ErrorLog is the path to the error log of a rejected invoice.
	ErrorLog string

	// Errors are the validation errors of a rejected invoice, in order.
	Errors []validation.ValidationError

	// Summary is set for accepted invoices that carry a header.
	Summary *xmlwriter.Summary

	// Error is set when Status is StatusFailed.
	Error error

	Stats ProcessingStats
}

// Success reports whether the invoice was accepted.
func (r Result) Success() bool {
	return r.Status == StatusAccepted
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RecordsRead is the number of CSV records read before the scan stopped.
	RecordsRead int

	// RowsAccepted is the number of records that passed their schema.
	RowsAccepted int

	// ValidationErrors is the number of validation errors encountered.
	ValidationErrors int

	// CustomerCreated reports whether the header introduced a new customer.
	CustomerCreated bool

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options configures a Converter.
type Options struct {
	// OutputNameFormat is passed to utils.GenerateOutputFileName with the
	// invoice serie and number as parameters.
	// Default: "{uuid}.xml"
	OutputNameFormat string

	// Delimiter is used when flattening spreadsheets into CSV text. It must
	// match the validator's delimiter.
	// Default: ','
	Delimiter rune

	// XML controls the generated documents.
	XML xmlwriter.GenerateOptions

	// Logger receives one entry per file.
	// Default: no-op
	Logger *zap.Logger
}

// DefaultOptions returns the default converter options.
func DefaultOptions() Options {
	return Options{
		OutputNameFormat: "{uuid}.xml",
		Delimiter:        ',',
		XML:              xmlwriter.DefaultGenerateOptions(),
		Logger:           zap.NewNop(),
	}
}

// Converter handles the conversion of invoice files to XML.
type Converter struct {
	validator *validation.Validator
	files     *utils.FileManager
	opts      Options
	logger    *zap.Logger
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter.
//
// PARAMETERS:
//   - validator: The validation engine, wired to the identity directory.
//   - files: Resolves output, archive and error log locations.
//   - opts: The converter options.
func New(validator *validation.Validator, files *utils.FileManager, opts Options) *Converter {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &Converter{
		validator: validator,
		files:     files,
		opts:      opts,
		logger:    opts.Logger.Named("converter"),
	}
}

// =============================================================================
// PIPELINE
// =============================================================================

// Run executes the conversion pipeline for one file.
//
// PARAMETERS:
//   - ctx: Cancels directory queries and the scan.
//   - path: The input file.
//   - issuer: The issuer the invoice is uploaded by.
//
// RETURNS:
//   - A Result describing the outcome. Infrastructure failures are reported
//     in Result.Error with StatusFailed; invalid invoices are not errors.
func (c *Converter) Run(ctx context.Context, path string, issuer types.Issuer) (result Result) {
	startTime := time.Now()
	result = Result{FilePath: path, Status: StatusFailed}
	log := c.logger.With(zap.String("file", filepath.Base(path)))

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	// =========================================================================
	// STEP 1: READ INPUT
	// =========================================================================

	raw, err := ReadInput(path, c.opts.Delimiter)
	if err != nil {
		result.Error = err
		log.Error("failed to read input", zap.Error(err))
		return result
	}

	// =========================================================================
	// STEP 2: VALIDATE
	// =========================================================================

	gen := xmlwriter.NewGeneratorWithOptions(c.opts.XML)
	outcome, err := c.validator.Validate(ctx, raw, issuer, gen)
	if err != nil {
		result.Error = fmt.Errorf("validation aborted: %w", err)
		log.Error("validation aborted", zap.Error(err))
		return result
	}

	result.Stats.RecordsRead = outcome.RecordsRead
	result.Stats.RowsAccepted = outcome.RowsAccepted
	result.Stats.ValidationErrors = outcome.Errors.Len()

	// =========================================================================
	// STEP 3 (REJECTED): WRITE ERROR LOG
	// =========================================================================

	if !outcome.Valid() {
		result.Status = StatusRejected
		result.Errors = outcome.Errors.All()
		result.ErrorLog = c.files.ErrorLogPath(path)

		if err := validation.WriteErrorLog(path, result.Errors, result.ErrorLog); err != nil {
			log.Warn("failed to write error log", zap.Error(err))
			result.ErrorLog = ""
		}

		log.Info("invoice rejected",
			zap.Int("errors", result.Stats.ValidationErrors),
			zap.String("error_log", result.ErrorLog))
		return result
	}

	// =========================================================================
	// STEP 3 (ACCEPTED): WRITE XML
	// =========================================================================

	params := map[string]string{}
	if header, ok := gen.Header(); ok {
		result.Stats.CustomerCreated = header.CustomerCreated
		params["serie"] = header.Serie
		params["number"] = header.Number
	}
	if summary, ok := gen.Summary(); ok {
		result.Summary = &summary
	}

	doc, err := gen.Serialize()
	if err != nil {
		result.Error = fmt.Errorf("failed to generate XML: %w", err)
		log.Error("failed to generate XML", zap.Error(err))
		return result
	}

	outputPath := c.files.OutputPath(c.opts.OutputNameFormat, params)
	if err := os.WriteFile(outputPath, doc, 0644); err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		log.Error("failed to write output", zap.Error(err))
		return result
	}

	result.Status = StatusAccepted
	result.OutputFile = outputPath

	// =========================================================================
	// STEP 4: ARCHIVE FILES
	// =========================================================================
	// Archival problems are logged but do not fail an accepted invoice.

	if archived, err := c.files.ArchiveInputFile(path); err != nil {
		log.Warn("failed to archive input", zap.Error(err))
	} else if archived != path {
		result.ArchivePath = archived
	}
	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		log.Warn("failed to archive output", zap.Error(err))
	}

	log.Info("invoice accepted",
		zap.String("output", outputPath),
		zap.Int("rows", result.Stats.RowsAccepted),
		zap.Bool("customer_created", result.Stats.CustomerCreated))

	return result
}

// ReadInput returns an invoice file as CSV text. Spreadsheets are flattened
// with xlsxparser using delimiter; anything else is read as is.
func ReadInput(path string, delimiter rune) (string, error) {
	if utils.IsSpreadsheet(path) {
		raw, err := xlsxparser.ToCSV(path, xlsxparser.Options{Delimiter: delimiter})
		if err != nil {
			return "", fmt.Errorf("failed to read spreadsheet: %w", err)
		}
		return raw, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// BATCH PROCESSING
// =============================================================================

// RunBatch processes paths concurrently, at most limit at a time, and
// returns one result per path in input order.
//
// Failed files never stop the batch unless stopOnFailure is set; the
// remaining files are then skipped and reported with the context error.
func (c *Converter) RunBatch(ctx context.Context, paths []string, issuer types.Issuer, limit int, stopOnFailure bool) []Result {
	results := make([]Result, len(paths))
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{FilePath: path, Status: StatusFailed, Error: err}
				return nil
			}

			results[i] = c.Run(gctx, path, issuer)
			if stopOnFailure && results[i].Status == StatusFailed {
				return results[i].Error
			}
			return nil
		})
	}

	// Per-file errors are already in results.
	_ = g.Wait()

	return results
}

// Summarize folds batch results into a processing summary.
func Summarize(results []Result, start, end time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:  start,
		EndTime:    end,
		TotalFiles: len(results),
	}

	for _, r := range results {
		summary.TotalRecords += r.Stats.RecordsRead
		summary.ValidationErrors += r.Stats.ValidationErrors
		if r.Stats.CustomerCreated {
			summary.CustomersCreated++
		}

		switch r.Status {
		case StatusAccepted:
			summary.AcceptedFiles++
			info := utils.AcceptedFileInfo{
				InputFile:   r.FilePath,
				OutputFile:  r.OutputFile,
				ArchivePath: r.ArchivePath,
				Records:     r.Stats.RecordsRead,
				ProcessTime: r.Stats.ProcessingTime,
			}
			if r.Summary != nil {
				info.Serie = r.Summary.Serie
				info.Number = r.Summary.Number
				info.Total = r.Summary.TotalInvoice.String()
			}
			summary.Accepted = append(summary.Accepted, info)
		case StatusRejected:
			summary.RejectedFiles++
			summary.Rejected = append(summary.Rejected, utils.RejectedFileInfo{
				InputFile: r.FilePath,
				ErrorLog:  r.ErrorLog,
				Errors:    len(r.Errors),
			})
		default:
			summary.FailedFiles++
			msg := ""
			if r.Error != nil {
				msg = r.Error.Error()
			}
			summary.Failed = append(summary.Failed, utils.FailedFileInfo{
				InputFile:    r.FilePath,
				ErrorMessage: msg,
			})
		}
	}

	return summary
}
