package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/tuner/packages/core/config"
	"github.com/abdul-hamid-achik/tuner/packages/core/env"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new tuner project",
	Long: `Initialize a new tuner project in the current directory.

This creates:
  - tuner.yaml     - Configuration file with environments
  - example.yaml   - Example suite

Examples:
  tuner init
  tuner init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSuite = `name: example
description: Example suite created by tuner init
variables:
  resource_name: Test Resource
calls:
  - name: health
    url: /health
    tags: [smoke]

  - name: create resource
    method: POST
    url: /resources
    tags: [crud]
    body:
      type: json
      data:
        name: Test Resource
        description: Created by tuner
    post_request:
      - type: assert
        path: $.id
        operator: exists
      - type: assert
        path: $.name
        source: response
        expected: Test Resource
      - type: extract
        path: $.id
        variable: resource_id

  - name: get resource
    url: /resources/{{resource_id}}
    tags: [crud]
    depends: [create resource]
    post_request:
      - type: assert
        path: $.id
        source: response
        operator: exists
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "tuner.yaml")
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.DefaultEnvironment = env.Test
	cfg.Templating = config.BoolPtr(true)
	cfg.Headers = map[string]string{"User-Agent": "tuner/" + version}
	cfg.Environments = map[string]config.EnvironmentConfig{
		env.Test:       {URLPrefix: "http://localhost:3000"},
		env.Staging:    {URLPrefix: "https://staging.api.example.com"},
		env.Production: {URLPrefix: "https://api.example.com"},
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleSuite), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\ntuner project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'tuner run example.yaml' to execute the example suite.\n")

	return nil
}
