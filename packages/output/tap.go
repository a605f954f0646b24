package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
	"gopkg.in/yaml.v3"
)

// TAPFormatter writes TAP version 13. Failed calls carry a YAML diagnostic
// block; suites are separated by comment lines.
type TAPFormatter struct {
	writer io.Writer
	suites []tapSuite
	errors []string
	count  int
}

type tapSuite struct {
	title  string
	points []tapPoint
}

type tapPoint struct {
	number    int
	ok        bool
	name      string
	directive string
	diag      *tapDiagnostic
}

type tapDiagnostic struct {
	Message   string        `yaml:"message"`
	Severity  string        `yaml:"severity"`
	Method    string        `yaml:"method,omitempty"`
	URL       string        `yaml:"url,omitempty"`
	Status    int           `yaml:"status,omitempty"`
	Attempts  int           `yaml:"attempts,omitempty"`
	Duration  string        `yaml:"duration,omitempty"`
	Assertion *tapAssertion `yaml:"assertion,omitempty"`
}

type tapAssertion struct {
	Operator string `yaml:"operator"`
	Expected any    `yaml:"expected"`
	Actual   any    `yaml:"actual"`
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	s := tapSuite{title: result.Suite}
	if result.File != "" {
		s.title = fmt.Sprintf("%s (%s)", result.Suite, result.File)
	}
	for _, r := range result.Results {
		f.count++
		s.points = append(s.points, tapPointFor(f.count, r))
	}
	f.suites = append(f.suites, s)
}

func tapPointFor(n int, r *runner.RequestResult) tapPoint {
	p := tapPoint{number: n, ok: r.Passed || r.Skipped, name: r.Name}
	if r.Skipped {
		reason := r.SkipReason
		if reason == "" {
			reason = "skipped"
		}
		p.directive = "SKIP " + reason
		return p
	}
	if r.Passed {
		return p
	}

	d := &tapDiagnostic{
		Message:  failureMessage(r),
		Severity: "fail",
		Duration: r.Duration.Round(time.Millisecond).String(),
	}
	if r.Attempts > 1 {
		d.Attempts = r.Attempts
	}
	d.Method, d.URL = requestLine(r)
	if r.Response != nil {
		d.Status = r.Response.StatusCode
	}
	if ae := assertionFailure(r); ae != nil {
		d.Message = ae.Message
		d.Assertion = &tapAssertion{Operator: ae.Operator, Expected: ae.Expected, Actual: ae.Actual}
	} else if r.Error != nil {
		d.Severity = "error"
	}
	p.diag = d
	return p
}

// FormatError records a suite that could not run; it is reported as a
// comment since it has no test point.
func (f *TAPFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *TAPFormatter) FormatHeader(version string) {}

// Flush writes the plan, every test point and the suite errors
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	var b bytes.Buffer
	b.WriteString("TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", f.count)

	for _, s := range f.suites {
		fmt.Fprintf(&b, "# %s\n", s.title)
		for _, p := range s.points {
			if err := p.write(&b); err != nil {
				return err
			}
		}
	}
	for _, e := range f.errors {
		fmt.Fprintf(&b, "# error: %s\n", e)
	}
	fmt.Fprintf(&b, "# time: %s\n", totalDuration.Round(time.Millisecond))

	_, err := f.writer.Write(b.Bytes())
	return err
}

func (p tapPoint) write(b *bytes.Buffer) error {
	status := "ok"
	if !p.ok {
		status = "not ok"
	}
	fmt.Fprintf(b, "%s %d - %s", status, p.number, p.name)
	if p.directive != "" {
		fmt.Fprintf(b, " # %s", p.directive)
	}
	b.WriteString("\n")
	if p.diag == nil {
		return nil
	}

	var doc bytes.Buffer
	enc := yaml.NewEncoder(&doc)
	enc.SetIndent(2)
	if err := enc.Encode(p.diag); err != nil {
		return fmt.Errorf("encode tap diagnostic: %w", err)
	}
	_ = enc.Close()

	b.WriteString("  ---\n")
	for _, line := range strings.Split(strings.TrimRight(doc.String(), "\n"), "\n") {
		fmt.Fprintf(b, "  %s\n", line)
	}
	b.WriteString("  ...\n")
	return nil
}
