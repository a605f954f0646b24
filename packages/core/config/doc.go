// Package config loads the project configuration file.
//
// The first of tuner.yaml, .tuner.yaml, tuner.yml, tuner.json and
// .tuner.json found in the working directory is used. Unset values fall
// back to DefaultConfig, and command-line flags are merged on top with
// Merge.
package config
