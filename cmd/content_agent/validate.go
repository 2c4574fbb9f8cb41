package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-content-pipeline/internal/schemas"
)

var validateCommand = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a results file or failure ledger against its JSON Schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateCmd,
}

var validateLedger bool

func init() {
	validateCommand.Flags().BoolVar(&validateLedger, "ledger", false, "Validate as a failure ledger instead of a results file")
	rootCmd.AddCommand(validateCommand)
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	schemaName := schemas.KeyRecordsSchema
	if validateLedger {
		schemaName = schemas.FailureLedgerSchema
	}
	if err := schemas.ValidateFile(schemaName, args[0]); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%s)\n", args[0], schemaName)
	return nil
}
