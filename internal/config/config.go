// =============================================================================
// CSV Invoice Validator - Configuration Module
// =============================================================================
//
// This module is responsible for loading and validating the application
// configuration. Values are resolved in this order (highest first):
//   1. Environment variables with the INVOICER_ prefix
//      (e.g. INVOICER_STORE_DSN, INVOICER_FORMAT_SUPPORTED_VERSION)
//   2. The YAML configuration file (config.yaml by default)
//   3. Built-in defaults
//
// The invoice format settings (supported version, minimum column count) are
// loaded once at startup and handed to the validation engine, so a format
// revision never requires touching validator logic.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "INVOICER"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the whole application configuration.
type Config struct {
	Format      FormatSettings
	Directories DirectorySettings
	Store       StoreSettings
	Log         LogSettings
	Processing  ProcessingSettings
}

// FormatSettings describes the accepted invoice CSV format.
type FormatSettings struct {
	// SupportedVersion is the only version tag accepted on line 1.
	// Default: "v1.0"
	SupportedVersion string

	// MinColumns is the minimum number of cells every record must carry.
	// Default: 16
	MinColumns int

	// PreviewLength is how many characters of a malformed input are quoted
	// back in the error message.
	// Default: 64
	PreviewLength int

	// Delimiter separates cells. Only single-character delimiters are
	// supported.
	// Default: ","
	Delimiter string
}

// DirectorySettings holds the file locations used by the batch pipeline.
type DirectorySettings struct {
	// InputDir is scanned for *.csv and *.xlsx invoice files.
	InputDir string

	// OutputDir receives the generated invoice XML files.
	OutputDir string

	// InputArchiveDir receives input files once they were converted.
	InputArchiveDir string

	// OutputArchiveDir is for long-term storage of generated XML files.
	OutputArchiveDir string

	// ErrorLogDir receives one error log per rejected input file.
	ErrorLogDir string
}

// StoreSettings selects the issuer/customer directory backend.
type StoreSettings struct {
	// Driver is "sqlite" or "postgres".
	Driver string

	// DSN is the driver specific data source name.
	DSN string

	// AutoMigrate creates the directory tables on startup.
	AutoMigrate bool
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// ProcessingSettings tunes the batch pipeline.
type ProcessingSettings struct {
	// MaxConcurrency is the maximum number of files validated at once.
	// Set to 1 for sequential processing.
	MaxConcurrency int

	// OutputNameFormat defines the generated XML file name.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {serie}     - Invoice serie
	//   {number}    - Invoice number
	OutputNameFormat string

	// ArchiveInput moves successfully converted inputs to InputArchiveDir.
	ArchiveInput bool

	// ContinueOnError keeps processing the batch after an infrastructure
	// failure on one file.
	ContinueOnError bool
}

// =============================================================================
// DEFAULTS
// =============================================================================

func setDefaults(v *viper.Viper) {
	v.SetDefault("format.supported_version", "v1.0")
	v.SetDefault("format.min_columns", 16)
	v.SetDefault("format.preview_length", 64)
	v.SetDefault("format.delimiter", ",")

	v.SetDefault("directories.input_dir", "./input")
	v.SetDefault("directories.output_dir", "./output")
	v.SetDefault("directories.input_archive_dir", "./input_archive")
	v.SetDefault("directories.output_archive_dir", "./output_archive")
	v.SetDefault("directories.error_log_dir", "./output")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "invoicer.db")
	v.SetDefault("store.auto_migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("processing.max_concurrency", 4)
	v.SetDefault("processing.output_name_format", "{uuid}.xml")
	v.SetDefault("processing.archive_input", true)
	v.SetDefault("processing.continue_on_error", true)
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return build(v)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file at configPath, applies environment
// overrides and defaults, and validates the result.
//
// PARAMETERS:
//   - configPath: Path to a YAML file. An empty path or a missing file
//     falls back to defaults and environment variables.
//
// RETURNS:
//   - A pointer to the Config struct.
//   - An error if the file cannot be parsed or a value is invalid.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := build(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func build(v *viper.Viper) *Config {
	return &Config{
		Format: FormatSettings{
			SupportedVersion: v.GetString("format.supported_version"),
			MinColumns:       v.GetInt("format.min_columns"),
			PreviewLength:    v.GetInt("format.preview_length"),
			Delimiter:        v.GetString("format.delimiter"),
		},
		Directories: DirectorySettings{
			InputDir:         v.GetString("directories.input_dir"),
			OutputDir:        v.GetString("directories.output_dir"),
			InputArchiveDir:  v.GetString("directories.input_archive_dir"),
			OutputArchiveDir: v.GetString("directories.output_archive_dir"),
			ErrorLogDir:      v.GetString("directories.error_log_dir"),
		},
		Store: StoreSettings{
			Driver:      v.GetString("store.driver"),
			DSN:         v.GetString("store.dsn"),
			AutoMigrate: v.GetBool("store.auto_migrate"),
		},
		Log: LogSettings{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Processing: ProcessingSettings{
			MaxConcurrency:   v.GetInt("processing.max_concurrency"),
			OutputNameFormat: v.GetString("processing.output_name_format"),
			ArchiveInput:     v.GetBool("processing.archive_input"),
			ContinueOnError:  v.GetBool("processing.continue_on_error"),
		},
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var versionTag = regexp.MustCompile(`^v\d\.\d$`)

// Validate checks the values the engine depends on.
func (c *Config) Validate() error {
	if !versionTag.MatchString(c.Format.SupportedVersion) {
		return fmt.Errorf("format.supported_version %q must look like v1.0", c.Format.SupportedVersion)
	}
	if c.Format.MinColumns < 1 {
		return fmt.Errorf("format.min_columns must be positive, got %d", c.Format.MinColumns)
	}
	if c.Format.PreviewLength < 0 {
		return fmt.Errorf("format.preview_length must not be negative, got %d", c.Format.PreviewLength)
	}
	switch d := c.Format.Delimiter; {
	case d == "\\t", d == "tab", d == "TAB":
	case len([]rune(d)) != 1:
		return fmt.Errorf("format.delimiter must be a single character, got %q", c.Format.Delimiter)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver %q is not supported (use sqlite or postgres)", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return errors.New("store.dsn is required")
	}

	if c.Processing.MaxConcurrency < 1 {
		c.Processing.MaxConcurrency = 1
	}
	return nil
}

// EnsureDirectories creates every configured directory that does not exist
// yet.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Directories.InputDir,
		c.Directories.OutputDir,
		c.Directories.InputArchiveDir,
		c.Directories.OutputArchiveDir,
		c.Directories.ErrorLogDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a rune.
func (f FormatSettings) DelimiterRune() rune {
	switch f.Delimiter {
	case "\\t", "tab", "TAB":
		return '\t'
	}
	for _, r := range f.Delimiter {
		return r
	}
	return ','
}
