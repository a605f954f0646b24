package cmd

import "fmt"

// Exit codes for the tuner CLI
const (
	// ExitSuccess indicates all calls passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more calls failed
	ExitTestFailure = 1

	// ExitParseError indicates a suite file could not be decoded
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates every failure was a transport failure
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries the process exit code out of a command. A nil Err
// exits silently.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitErrorf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}
