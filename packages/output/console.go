package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
	"github.com/fatih/color"
)

// bodyPreviewLen caps the response body shown in verbose mode
const bodyPreviewLen = 200

// formatValue renders assertion operands; containers are summarized and
// long scalars truncated.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	return truncate(fmt.Sprintf("%v", v), maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

type palette struct {
	pass, fail, skip, info, bold func(a ...any) string
}

func newPalette() palette {
	return palette{
		pass: color.New(color.FgGreen).SprintFunc(),
		fail: color.New(color.FgRed).SprintFunc(),
		skip: color.New(color.FgYellow).SprintFunc(),
		info: color.New(color.FgCyan).SprintFunc(),
		bold: color.New(color.Bold).SprintFunc(),
	}
}

// ConsoleFormatter prints results as they arrive. Verbose mode adds the
// request line, request headers, status and a body preview per call.
type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) { f.writer = w }
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) { f.verbose = v }
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) { f.noColor = nc }
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	p := newPalette()

	title := result.Suite
	if result.File != "" {
		title = result.File
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", p.bold("Running: "+title))

	for _, r := range result.Results {
		f.writeCall(p, r)
	}
	f.writeSummary(p, result)
}

func (f *ConsoleFormatter) writeCall(p palette, r *runner.RequestResult) {
	if r.Skipped {
		line := fmt.Sprintf("  %s %s", p.skip("-"), r.Name)
		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			line += fmt.Sprintf(" (%s)", r.SkipReason)
		}
		fmt.Fprintln(f.writer, line)
		return
	}

	symbol := p.pass("✓")
	if !r.Passed {
		symbol = p.fail("✗")
	}
	line := fmt.Sprintf("  %s %s %s", symbol, r.Name, p.info(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
	if r.Attempts > 1 {
		line += " " + p.skip(fmt.Sprintf("[%d attempts]", r.Attempts))
	}
	fmt.Fprintln(f.writer, line)

	if f.verbose {
		f.writeDetail(r)
	}
	if !r.Passed {
		f.writeFailure(p, r)
	}
}

func (f *ConsoleFormatter) writeDetail(r *runner.RequestResult) {
	if method, url := requestLine(r); method != "" {
		fmt.Fprintf(f.writer, "    %s %s\n", method, url)
	}
	headers := requestHeaders(r)
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(f.writer, "      %s: %s\n", name, headers[name])
	}
	if r.Response == nil {
		return
	}
	fmt.Fprintf(f.writer, "    Status: %d\n", r.Response.StatusCode)
	if body := strings.TrimSpace(r.Response.Text()); body != "" {
		fmt.Fprintf(f.writer, "    Body: %s\n", truncate(body, bodyPreviewLen))
	}
}

func (f *ConsoleFormatter) writeFailure(p palette, r *runner.RequestResult) {
	arrow := p.fail("→")
	ae := assertionFailure(r)
	if ae == nil {
		fmt.Fprintf(f.writer, "    %s %s\n", arrow, failureMessage(r))
		return
	}
	fmt.Fprintf(f.writer, "    %s %s\n", arrow, ae.Message)
	fmt.Fprintf(f.writer, "      Operator: %s\n", ae.Operator)
	fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(ae.Expected, 100))
	fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(ae.Actual, 100))
}

func (f *ConsoleFormatter) writeSummary(p palette, result *runner.RunResult) {
	var parts []string
	if result.Passed > 0 {
		parts = append(parts, p.pass(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		parts = append(parts, p.fail(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		parts = append(parts, p.skip(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	parts = append(parts, fmt.Sprintf("%d total", result.Passed+result.Failed+result.Skipped))

	fmt.Fprintf(f.writer, "\nTests: %s\n", strings.Join(parts, ", "))
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())

	latency := NewLatency()
	latency.Add(result)
	if latency.Count() > 1 {
		fmt.Fprintf(f.writer, "Latency: %s\n", latency.Summary())
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s %v\n", newPalette().fail("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	fmt.Fprintf(f.writer, "%s %s\n", newPalette().bold("tuner"), version)
}
