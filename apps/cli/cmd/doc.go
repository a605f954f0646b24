// Package cmd implements the tuner CLI commands using Cobra.
//
// Available commands:
//   - run: execute suite files against the selected environment
//   - validate: decode suite files without executing them
//   - list: print the calls defined in suite files
//   - envs: list the environments of the config file
//   - init: create a config file and an example suite
//   - version: show version information
package cmd
