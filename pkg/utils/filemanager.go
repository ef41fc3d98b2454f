// =============================================================================
// CSV Invoice Validator - File Manager Utility
// =============================================================================
//
// This module provides the file handling of the batch pipeline:
//   - Input discovery (*.csv and *.xlsx invoices)
//   - Output and error log naming
//   - File archival (moving processed files)
//   - The processing summary report
//
// ARCHIVAL STRATEGY:
//   - Accepted inputs are moved to input_archive
//   - Generated XML is copied to output_archive for long-term storage
//   - Rejected inputs remain in their original location
//   - Error logs are created in the error log directory
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/csv-invoice-validator/internal/config"
)

// InputExtensions are the invoice file types picked up from the input
// directory.
var InputExtensions = []string{".csv", ".xlsx"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the converter.
type FileManager struct {
	// InputDir is the directory where invoice files are placed.
	InputDir string

	// OutputDir is the directory where XML files are placed.
	OutputDir string

	// InputArchiveDir is the directory for archived input files.
	InputArchiveDir string

	// OutputArchiveDir is the directory for archived output files.
	OutputArchiveDir string

	// ErrorLogDir receives one error log per rejected input.
	ErrorLogDir string

	// UseTimestampSubdirs creates date-based subdirectories in archives.
	// Example: input_archive/2024/01/15/invoice.csv
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether to archive files after successful processing.
	ArchiveOnSuccess bool

	now func() time.Time
}

// NewFileManager creates a FileManager for the configured directories.
func NewFileManager(dirs config.DirectorySettings, archiveOnSuccess bool) *FileManager {
	errorLogDir := dirs.ErrorLogDir
	if errorLogDir == "" {
		errorLogDir = dirs.OutputDir
	}
	return &FileManager{
		InputDir:         dirs.InputDir,
		OutputDir:        dirs.OutputDir,
		InputArchiveDir:  dirs.InputArchiveDir,
		OutputArchiveDir: dirs.OutputArchiveDir,
		ErrorLogDir:      errorLogDir,
		ArchiveOnSuccess: archiveOnSuccess,
		now:              time.Now,
	}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the invoice files directly inside the input
// directory, sorted by name. Office lock files ("~$...") are ignored.
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "~$") {
			continue
		}
		if IsInputFile(entry.Name()) {
			files = append(files, filepath.Join(fm.InputDir, entry.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}

// IsInputFile reports whether name has one of the InputExtensions.
func IsInputFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range InputExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// IsSpreadsheet reports whether name is an XLSX workbook.
func IsSpreadsheet(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath, err := fm.prepareArchivePath(fm.InputArchiveDir, filePath)
	if err != nil {
		return "", err
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// ArchiveOutputFile copies an output file to the archive directory. The
// original stays in the output directory.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath, err := fm.prepareArchivePath(fm.OutputArchiveDir, filePath)
	if err != nil {
		return "", err
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// prepareArchivePath creates the archive directory and picks a file name
// that does not overwrite an earlier archive of the same upload.
func (fm *FileManager) prepareArchivePath(archiveDir, filePath string) (string, error) {
	now := fm.clock()

	dir := archiveDir
	if fm.UseTimestampSubdirs {
		dir = filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	fileName := filepath.Base(filePath)
	archivePath := filepath.Join(dir, fileName)
	if FileExists(archivePath) {
		ext := filepath.Ext(fileName)
		stem := strings.TrimSuffix(fileName, ext)
		archivePath = filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, now.Format("20060102_150405.000000000"), ext))
	}

	return archivePath, nil
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// OutputPath returns the path of a new XML file in the output directory.
func (fm *FileManager) OutputPath(format string, params map[string]string) string {
	return filepath.Join(fm.OutputDir, GenerateOutputFileName(format, params))
}

// ErrorLogPath returns the error log path of a rejected input file.
//
// EXAMPLE:
//
//	input/invoice_42.csv -> <error log dir>/invoice_42.errors.log
func (fm *FileManager) ErrorLogPath(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(fm.ErrorLogDir, stem+".errors.log")
}

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     any key of params, e.g. {serie} and {number}
//   - params: A map of placeholder values. Path separators in values are
//     replaced with "_".
//
// RETURNS:
//   - The generated file name, always ending in ".xml".
//
// EXAMPLE:
//
//	format: "{serie}-{number}_{uuid}.xml"
//	params: {"serie": "S001", "number": "000123"}
//	output: "S001-000123_a1b2c3d4-e5f6-7890-abcd-ef1234567890.xml"
func GenerateOutputFileName(format string, params map[string]string) string {
	if format == "" {
		format = "{uuid}.xml"
	}

	now := time.Now()
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = sanitizeFileNamePart(value)
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xml") {
		result += ".xml"
	}

	return result
}

func sanitizeFileNamePart(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalFiles       int
	AcceptedFiles    int
	RejectedFiles    int
	FailedFiles      int
	TotalRecords     int
	ValidationErrors int
	CustomersCreated int
	Accepted         []AcceptedFileInfo
	Rejected         []RejectedFileInfo
	Failed           []FailedFileInfo
}

// AcceptedFileInfo describes an input that produced an invoice.
type AcceptedFileInfo struct {
	InputFile   string
	OutputFile  string
	ArchivePath string
	Serie       string
	Number      string
	Total       string
	Records     int
	ProcessTime time.Duration
}

// RejectedFileInfo describes an input that failed validation.
type RejectedFileInfo struct {
	InputFile string
	ErrorLog  string
	Errors    int
}

// FailedFileInfo describes an input that could not be processed at all.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	timestamp := summary.EndTime.Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := WriteSummary(file, summary); err != nil {
		return "", err
	}
	return summaryPath, nil
}

// WriteSummary renders summary to w.
func WriteSummary(w io.Writer, summary ProcessingSummary) error {
	writer := bufio.NewWriter(w)
	rule := strings.Repeat("=", 80) + "\n"
	thin := strings.Repeat("-", 80) + "\n"

	fmt.Fprintf(writer, "Invoice Validator - Processing Summary\n%s\n", rule)
	fmt.Fprintf(writer, "Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String())
	fmt.Fprintf(writer, "Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Accepted:           %d\n"+
		"  Rejected:           %d\n"+
		"  Failed:             %d\n"+
		"  Total Records:      %d\n"+
		"  Validation Errors:  %d\n"+
		"  Customers Created:  %d\n\n",
		summary.TotalFiles,
		summary.AcceptedFiles,
		summary.RejectedFiles,
		summary.FailedFiles,
		summary.TotalRecords,
		summary.ValidationErrors,
		summary.CustomersCreated)

	if len(summary.Accepted) > 0 {
		fmt.Fprintf(writer, "Accepted Files:\n%s", thin)
		for _, f := range summary.Accepted {
			fmt.Fprintf(writer, "  Input:        %s\n", f.InputFile)
			fmt.Fprintf(writer, "  Output:       %s\n", f.OutputFile)
			fmt.Fprintf(writer, "  Invoice:      %s/%s (total %s)\n", f.Serie, f.Number, f.Total)
			fmt.Fprintf(writer, "  Records:      %d\n", f.Records)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", f.ProcessTime.String())
		}
	}

	if len(summary.Rejected) > 0 {
		fmt.Fprintf(writer, "Rejected Files:\n%s", thin)
		for _, f := range summary.Rejected {
			fmt.Fprintf(writer, "  File:   %s\n", f.InputFile)
			fmt.Fprintf(writer, "  Errors: %d (see %s)\n\n", f.Errors, f.ErrorLog)
		}
	}

	if len(summary.Failed) > 0 {
		fmt.Fprintf(writer, "Failed Files:\n%s", thin)
		for _, f := range summary.Failed {
			fmt.Fprintf(writer, "  File:  %s\n", f.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n\n", f.ErrorMessage)
		}
	}

	fmt.Fprintf(writer, "%sEnd of Summary\n", rule)

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
