package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Errors   []string    `json:"errors,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Latency *JSONLatency `json:"latency,omitempty"`
}

// JSONLatency holds call duration percentiles in milliseconds
type JSONLatency struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

func newJSONLatency(l *Latency) *JSONLatency {
	if l.Count() == 0 {
		return nil
	}
	s := l.Summary()
	return &JSONLatency{
		Min:  durationMillis(s.Min),
		Mean: durationMillis(s.Mean),
		P50:  durationMillis(s.P50),
		P95:  durationMillis(s.P95),
		P99:  durationMillis(s.P99),
		Max:  durationMillis(s.Max),
	}
}

// JSONTest represents a single call result
type JSONTest struct {
	Name       string         `json:"name"`
	Suite      string         `json:"suite"`
	File       string         `json:"file,omitempty"`
	Passed     bool           `json:"passed"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skipReason,omitempty"`
	Attempts   int            `json:"attempts,omitempty"`
	Duration   float64        `json:"duration"`
	Error      string         `json:"error,omitempty"`
	Request    *JSONRequest   `json:"request,omitempty"`
	Response   *JSONResponse  `json:"response,omitempty"`
	Assertion  *JSONAssertion `json:"assertion,omitempty"`
}

type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONAssertion is the failed assertion of a call
type JSONAssertion struct {
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	errors  []string
	latency *Latency
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
		latency: NewLatency(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) { f.writer = w }
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.latency.Add(result)
	for _, r := range result.Results {
		f.results = append(f.results, newJSONTest(result, r))
	}
}

func newJSONTest(result *runner.RunResult, r *runner.RequestResult) JSONTest {
	t := JSONTest{
		Name:     r.Name,
		Suite:    result.Suite,
		File:     result.File,
		Passed:   r.Passed,
		Skipped:  r.Skipped,
		Attempts: r.Attempts,
		Duration: float64(r.Duration.Milliseconds()),
	}
	// Filter skips are noise in machine output.
	if r.SkipReason != "filtered out" {
		t.SkipReason = r.SkipReason
	}
	if !r.Passed && !r.Skipped {
		t.Error = failureMessage(r)
	}
	if method, url := requestLine(r); method != "" {
		t.Request = &JSONRequest{Method: method, URL: url, Headers: requestHeaders(r)}
	}
	if resp := r.Response; resp != nil {
		t.Response = &JSONResponse{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Headers:    resp.Headers,
			Body:       resp.Body,
			Duration:   float64(resp.DurationMs()),
		}
	}
	if ae := assertionFailure(r); ae != nil {
		t.Assertion = &JSONAssertion{
			Operator: ae.Operator,
			Expected: ae.Expected,
			Actual:   ae.Actual,
			Message:  ae.Message,
		}
	}
	return t
}

// FormatError records suite-level errors; call errors live on each test.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(string) {}

// Flush writes the accumulated JSON document.
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	summary := JSONSummary{Total: len(f.results), Latency: newJSONLatency(f.latency)}
	for _, t := range f.results {
		switch {
		case t.Skipped:
			summary.Skipped++
		case t.Passed:
			summary.Passed++
		default:
			summary.Failed++
		}
	}

	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(JSONOutput{
		Summary:  summary,
		Tests:    f.results,
		Errors:   f.errors,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	})
}
