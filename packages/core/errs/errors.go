// Package errs defines the error taxonomy shared by the execution engine.
//
// Configuration errors (unknown assertion operator, negative wait, missing path
// parameter) and assertion failures are distinct kinds so callers can tell a
// broken test definition apart from a failing test. Transport failures are not
// listed here: the executor converts them into zero-status responses.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigError via errors.Is.
	ErrConfiguration = errors.New("configuration error")
	// ErrAssertion is matched by every *AssertionError via errors.Is.
	ErrAssertion = errors.New("assertion failed")
)

// ConfigKind classifies a configuration error.
type ConfigKind string

const (
	KindUnknownOperator  ConfigKind = "unknown_operator"
	KindNegativeWait     ConfigKind = "negative_wait"
	KindPathSubstitution ConfigKind = "path_substitution"
	KindInvalidOperation ConfigKind = "invalid_operation"
)

// ConfigError reports a test definition that can never succeed.
type ConfigError struct {
	Kind    ConfigKind
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Configf builds a ConfigError of the given kind.
func Configf(kind ConfigKind, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AssertionError is raised when an assertion predicate evaluates to false.
// Message is either the caller supplied message or the default
// "assert failed: {actual} {op} {expected}".
type AssertionError struct {
	Message  string
	Actual   any
	Operator string
	Expected any
}

func (e *AssertionError) Error() string {
	return e.Message
}

func (e *AssertionError) Unwrap() error {
	return ErrAssertion
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsAssertion reports whether err is an assertion failure.
func IsAssertion(err error) bool {
	return errors.Is(err, ErrAssertion)
}
