package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/errs"
	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatJUnit   = "junit"
	FormatTAP     = "tap"
)

// Formats lists the accepted --output values.
var Formats = []string{FormatConsole, FormatJSON, FormatJUnit, FormatTAP}

type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that write everything at the end.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case FormatConsole, "":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case FormatJSON:
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case FormatJUnit:
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case FormatTAP:
		return NewTAPFormatter(TAPWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (available: %s)", format, strings.Join(Formats, ", "))
}

// assertionFailure returns the failed assertion behind r.Error, if any.
func assertionFailure(r *runner.RequestResult) *errs.AssertionError {
	var ae *errs.AssertionError
	if errors.As(r.Error, &ae) {
		return ae
	}
	return nil
}

// failureMessage describes why a non-skipped result failed.
func failureMessage(r *runner.RequestResult) string {
	switch {
	case r.Error != nil:
		return r.Error.Error()
	case r.Response != nil && r.Response.IsTransportFailure():
		return fmt.Sprintf("transport failure: %v", r.Response.JSON()["error"])
	case r.Response != nil:
		return fmt.Sprintf("unexpected status %d", r.Response.StatusCode)
	}
	return "failed"
}

func requestLine(r *runner.RequestResult) (method, url string) {
	if r.Request == nil {
		return "", ""
	}
	method, _ = r.Request["method"].(string)
	url, _ = r.Request["url"].(string)
	return method, url
}

// requestHeaders reads the header map of a request snapshot.
func requestHeaders(r *runner.RequestResult) map[string]string {
	h, ok := r.Request["headers"].(map[string]any)
	if !ok || len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprint(v)
	}
	return out
}
