package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := resolvedVersion()
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tuner version %s\n", v)
		fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

// resolvedVersion prefers the ldflags value and falls back to the module
// version recorded by `go install`.
func resolvedVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
