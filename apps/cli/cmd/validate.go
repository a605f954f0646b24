package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/tuner/packages/suite"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate suite files without executing them",
	Long: `Decode suite files and report errors without sending any request.

Examples:
  tuner validate users.yaml
  tuner validate ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := suite.Discover(args)
	if err != nil {
		return exitErrorf(ExitUsageError, "cannot access suites: %w", err)
	}

	if len(files) == 0 {
		return exitErrorf(ExitUsageError, "no suite files found")
	}

	hasErrors := false
	for _, file := range files {
		s, err := suite.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d calls)\n", file, len(s.Calls))
	}

	if hasErrors {
		return exitErrorf(ExitParseError, "validation failed")
	}

	return nil
}
