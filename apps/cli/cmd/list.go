package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/tuner/packages/suite"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List all calls in suite files",
	Long: `List the calls defined in suite files.

Examples:
  tuner list users.yaml
  tuner list ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := suite.Discover(args)
	if err != nil {
		return exitErrorf(ExitUsageError, "cannot access suites: %w", err)
	}

	if len(files) == 0 {
		return exitErrorf(ExitUsageError, "no suite files found")
	}

	for _, file := range files {
		s, err := suite.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", file, s.Name)
		for _, call := range s.Calls {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s [%s %s]\n", call.Name(), call.Model.EffectiveMethod(), call.Model.URL)
			if len(call.Tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(call.Tags, ", "))
			}
			if len(call.Depends) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    depends: %s\n", strings.Join(call.Depends, ", "))
			}
			if call.Skip != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "    skip: %s\n", call.Skip)
			}
		}
	}

	return nil
}
