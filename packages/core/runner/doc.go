// Package runner executes suite files and collects per-call results.
//
// Every suite runs through a single executor, so variables extracted by
// one call are visible to the calls after it. Calls are ordered by their
// dependencies, filtered by name and tags, retried when configured, and
// the run stops at the first failure in bail mode.
package runner
