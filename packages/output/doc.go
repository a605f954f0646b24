// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - console: human-readable colored terminal output
//   - json: machine-readable JSON output
//   - junit: JUnit XML for CI integration
//   - tap: Test Anything Protocol
//
// Each formatter implements Formatter. Formats that accumulate results
// before writing also implement Flushable.
package output
