package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "tuner",
	Short: "Declarative HTTP API tests.",
	Long: `tuner runs declarative HTTP API test suites. Each call is a request
model (method, url, params, headers, auth, body) with pre-request and
post-request operations that set variables, extract values and assert
on the response. Calls in a suite share one context, so values
extracted by one call feed the next.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(exitCode(rootCmd.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", ee.Err)
		}
		return ee.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return ExitUsageError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("TUNER_CONFIG", ""), "Path to config file (env: TUNER_CONFIG)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(envsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
