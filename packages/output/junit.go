package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
)

// JUnitTestSuites is the report root. Each suite file becomes one
// testsuite and each call one testcase.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	File      string          `xml:"file,attr,omitempty"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure is a call that ran and did not meet expectations
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError is a call or suite that could not be evaluated
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	className := result.Suite
	if className == "" {
		className = result.File
	}
	ts := JUnitTestSuite{
		Name:      className,
		File:      result.File,
		Time:      result.Duration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for _, r := range result.Results {
		tc := junitCase(className, r)
		switch {
		case tc.Skipped != nil:
			ts.Skipped++
		case tc.Error != nil:
			ts.Errors++
		case tc.Failure != nil:
			ts.Failures++
		}
		ts.TestCases = append(ts.TestCases, tc)
	}
	ts.Tests = len(ts.TestCases)
	f.testSuites = append(f.testSuites, ts)
}

func junitCase(className string, r *runner.RequestResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      r.Name,
		ClassName: className,
		Time:      r.Duration.Seconds(),
	}
	if r.Skipped {
		tc.Skipped = &JUnitSkipped{Message: r.SkipReason}
		return tc
	}
	tc.SystemOut = junitSystemOut(r)
	if r.Passed {
		return tc
	}

	if ae := assertionFailure(r); ae != nil {
		tc.Failure = &JUnitFailure{
			Message: ae.Message,
			Type:    "AssertionError",
			Content: fmt.Sprintf("%s: expected %v, got %v", ae.Operator, ae.Expected, ae.Actual),
		}
		return tc
	}
	if r.Error != nil {
		tc.Error = &JUnitError{Message: r.Error.Error(), Type: "Error"}
		return tc
	}
	kind := "StatusError"
	if r.Response != nil && r.Response.IsTransportFailure() {
		kind = "TransportError"
	}
	tc.Failure = &JUnitFailure{Message: failureMessage(r), Type: kind}
	return tc
}

func junitSystemOut(r *runner.RequestResult) string {
	var lines []string
	if method, url := requestLine(r); method != "" {
		lines = append(lines, method+" "+url)
	}
	if r.Response != nil {
		lines = append(lines, fmt.Sprintf("status: %d", r.Response.StatusCode))
	}
	if r.Attempts > 1 {
		lines = append(lines, fmt.Sprintf("attempts: %d", r.Attempts))
	}
	return strings.Join(lines, "\n")
}

// FormatError reports a suite that failed before any call ran as a
// testsuite holding one errored testcase.
func (f *JUnitFormatter) FormatError(err error) {
	f.testSuites = append(f.testSuites, JUnitTestSuite{
		Name:      "suite error",
		Tests:     1,
		Errors:    1,
		Timestamp: time.Now().Format(time.RFC3339),
		TestCases: []JUnitTestCase{{
			Name:      "load",
			ClassName: "suite error",
			Error:     &JUnitError{Message: err.Error(), Type: "SuiteError"},
		}},
	})
}

func (f *JUnitFormatter) FormatHeader(version string) {}

func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	suites := JUnitTestSuites{
		Name:       "tuner",
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}
	for _, ts := range f.testSuites {
		suites.Tests += ts.Tests
		suites.Failures += ts.Failures
		suites.Errors += ts.Errors
		suites.Skipped += ts.Skipped
	}

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(f.writer, "\n")
	return err
}
