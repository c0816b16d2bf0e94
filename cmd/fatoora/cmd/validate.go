package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/document"
	"github.com/rezonia/fatoora/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <invoice.xml>",
	Short: "Check an invoice document for the required elements",
	Long: `Validate runs the pre-submission structure gate against an invoice
document and reports the first missing required element, if any.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read invoice: %w", err)
	}

	if err := document.Validate(data); err != nil {
		var validationErr *model.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("invalid document: missing %s", validationErr.Element)
		}
		return err
	}

	fmt.Println("document is valid")
	return nil
}
