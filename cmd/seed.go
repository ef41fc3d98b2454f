// =============================================================================
// CSV Invoice Validator - Seed Command
// =============================================================================
//
// COMMAND USAGE:
//   invoicer seed <file.yaml>
//
// Registers the issuers and customers listed in a YAML file. Entries that
// already exist are kept as they are, so the same file can be applied again.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/csv-invoice-validator/internal/directory"
)

// seedCmd represents the 'seed' command.
var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Register issuers and customers from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := directory.LoadSeed(args[0])
		if err != nil {
			return err
		}

		dir, err := openDirectory()
		if err != nil {
			return err
		}
		defer dir.Close()

		result, err := dir.ApplySeed(cmd.Context(), seed)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d issuer(s) and %d customer(s)\n", result.Issuers, result.Customers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
