// =============================================================================
// CSV Invoice Validator - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   invoicer version
//
// OUTPUT:
//   Invoice Validator
//   Version:         1.0.0
//   Invoice Format:  v1.0
//   Build Date:      2024-01-01
//   Go Version:      go1.24.0
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/csv-invoice-validator/internal/config"
)

// These variables are set at build time using ldflags, e.g.
//   go build -ldflags "-X 'github.com/ginjaninja78/csv-invoice-validator/cmd.Version=1.0.0'"

// Version is the application version.
var Version = "1.0.0"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, the default invoice format version, the build date and the Go runtime version.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Invoice Validator")
		fmt.Fprintf(out, "Version:         %s\n", Version)
		fmt.Fprintf(out, "Invoice Format:  %s\n", config.Default().Format.SupportedVersion)
		fmt.Fprintf(out, "Build Date:      %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version:      %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
