// =============================================================================
// CSV Invoice Validator - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoicer)
//   ├── validateCmd (invoicer validate <file>)
//   ├── processCmd  (invoicer process)
//   ├── seedCmd     (invoicer seed <file>)
//   └── versionCmd  (invoicer version)
//
// The root command loads the configuration (viper) and builds the logger
// (zap) before any subcommand runs.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/csv-invoice-validator/internal/checksum"
	"github.com/ginjaninja78/csv-invoice-validator/internal/config"
	"github.com/ginjaninja78/csv-invoice-validator/internal/directory"
	"github.com/ginjaninja78/csv-invoice-validator/internal/logger"
	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
	"github.com/ginjaninja78/csv-invoice-validator/internal/validation"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// issuerTaxID is the tax id of the issuer uploading the invoices.
var issuerTaxID string

// cfg and log are set by the root command before a subcommand runs.
var (
	cfg *config.Config
	log = zap.NewNop()
)

// errInvalidInvoice makes the process exit with status 2 once the errors
// have been printed.
var errInvalidInvoice = errors.New("invoice is not valid")

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Invoice CSV validator - check and convert invoice uploads",
	Long: `invoicer validates invoice files (CSV or XLSX) uploaded by registered
issuers against the v1.0 invoice format and converts the accepted ones to XML.

Key Features:
  - Line by line validation with ordered, line numbered error messages
  - Issuer check and on-the-fly customer registration
  - Spanish tax id, postal code and IBAN checks
  - Concurrent batch processing with archival and error logs

Example Usage:
  invoicer seed directory.yaml                     # Register issuers and customers
  invoicer validate invoice.csv --issuer B12345674 # Check a single file
  invoicer process --issuer B12345674              # Convert the input directory`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}

		l, err := logger.New(loaded.Log)
		if err != nil {
			return err
		}

		cfg, log = loaded, l
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errInvalidInvoice) {
			stop()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the configuration file (default is ./config.yaml if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED WIRING
// =============================================================================

// openDirectory connects to the configured identity store.
func openDirectory() (*directory.Directory, error) {
	return directory.Open(cfg.Store, cfg.Log.Level, log)
}

// newValidator builds the validation engine on top of the directory.
func newValidator(dir *directory.Directory) *validation.Validator {
	return validation.NewValidator(dir, checksum.Checker{}, validation.OptionsFromConfig(cfg.Format, log))
}

// currentIssuer resolves the --issuer flag.
func currentIssuer(ctx context.Context, dir *directory.Directory) (types.Issuer, error) {
	if issuerTaxID == "" {
		return types.Issuer{}, errors.New("--issuer is required")
	}
	issuer, err := dir.Issuer(ctx, issuerTaxID)
	if err != nil {
		return types.Issuer{}, fmt.Errorf("cannot upload invoices: %w", err)
	}
	return issuer, nil
}

// addIssuerFlag registers --issuer on commands that validate invoices.
func addIssuerFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&issuerTaxID,
		"issuer",
		os.Getenv(config.EnvPrefix+"_ISSUER"),
		"Tax id of the registered issuer uploading the invoices (env INVOICER_ISSUER)",
	)
}
