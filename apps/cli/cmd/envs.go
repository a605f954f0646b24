package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/tuner/packages/core/config"
	"github.com/spf13/cobra"
)

var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List configured environments",
	Long: `List the environments defined in the config file. The default
environment is marked with *.`,
	Args: cobra.NoArgs,
	RunE: envsCommand,
}

func envsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	names := cfg.EnvironmentNames()
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No environments configured")
		return nil
	}

	for _, name := range names {
		marker := " "
		if name == cfg.DefaultEnvironment {
			marker = "*"
		}
		ec := cfg.Environments[name]
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s (%d variables)\n", marker, name, ec.URLPrefix, len(ec.Variables))
	}
	return nil
}
