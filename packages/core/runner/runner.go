package runner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/executor"
	"github.com/abdul-hamid-achik/tuner/packages/http"
	"github.com/abdul-hamid-achik/tuner/packages/operations"
	"github.com/abdul-hamid-achik/tuner/packages/suite"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultRetryDelay is the delay between retries when a call sets none
	DefaultRetryDelay = time.Second
)

type Runner struct {
	config  *Config
	log     *zap.Logger
	limiter *rate.Limiter
}

type Config struct {
	// Environment supplies the URL prefix and environment variables. Nil
	// means no environment.
	Environment   executor.Environment
	ClientOptions []http.ClientOption
	// Transport replaces the HTTP client; used by tests.
	Transport  http.Doer
	Logger     *zap.Logger
	Templating bool
	Bail       bool
	NameFilter string
	TagsFilter []string
	// Variables are seeded into every suite after the suite's own.
	Variables map[string]any
	// RateLimit caps requests per second across all suites. Zero is unlimited.
	RateLimit float64
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{config: cfg, log: log, limiter: http.NewLimiter(cfg.RateLimit)}
}

type RunResult struct {
	File     string
	Suite    string
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// HasFailures reports whether any call failed.
func (r *RunResult) HasFailures() bool {
	return r.Failed > 0
}

type RequestResult struct {
	Name       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Attempts   int
	Duration   time.Duration
	// Request is the merged request snapshot: method, url, params,
	// headers, cookies and body.
	Request  map[string]any
	Response *http.Response
	Error    error
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	s, err := suite.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.RunSuite(ctx, s)
}

func (r *Runner) RunSuite(ctx context.Context, s *suite.Suite) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		File:  s.Path,
		Suite: s.Name,
	}
	log := r.log.With(zap.String("suite", s.Name))

	ordered, err := r.topologicalSort(s.Calls)
	if err != nil {
		return nil, err
	}

	ex, closeTransport := r.newExecutor(s)
	defer closeTransport()
	defer ex.Close()

	if s.WaitFor != nil {
		if err := r.waitForService(ctx, log, s.WaitFor, ex); err != nil {
			return nil, err
		}
	}

	hasOnly := slices.ContainsFunc(s.Calls, func(c *suite.Call) bool { return c.Only })
	executed := make(map[string]*RequestResult)

	for _, call := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := call.Name()
		if !r.shouldRun(call, hasOnly) {
			result.skip(name, "filtered out")
			continue
		}
		if call.Skip != "" {
			result.skip(name, call.Skip)
			continue
		}
		if dependencyFailed(call, executed) {
			result.skip(name, "dependency failed")
			continue
		}

		reqResult := r.runWithRetry(ctx, log, ex, call)
		result.Results = append(result.Results, reqResult)
		executed[name] = reqResult

		if reqResult.Passed {
			result.Passed++
			continue
		}
		result.Failed++
		if r.config.Bail {
			log.Info("bail: stopping after first failure", zap.String("call", name))
			break
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// newExecutor builds the suite's executor. The returned func closes any
// client created here for throttling.
func (r *Runner) newExecutor(s *suite.Suite) (*executor.Executor, func()) {
	closeTransport := func() {}
	opts := []executor.Option{
		executor.WithLogger(r.log.With(zap.String("suite", s.Name))),
		executor.WithBaseDir(s.BaseDir()),
		executor.WithClientOptions(r.config.ClientOptions...),
	}
	if r.config.Environment != nil {
		opts = append(opts, executor.WithEnvironment(r.config.Environment))
	}
	transport := r.config.Transport
	if r.limiter != nil {
		if transport == nil {
			client := http.NewClient(r.config.ClientOptions...)
			closeTransport = client.Close
			transport = client
		}
		transport = http.Throttle(transport, r.limiter)
	}
	if transport != nil {
		opts = append(opts, executor.WithTransport(transport))
	}
	if r.config.Templating {
		opts = append(opts, executor.WithTemplating())
	}

	ex := executor.New(opts...)
	for name, value := range s.Variables {
		ex.SetVariable(name, value)
	}
	for name, value := range r.config.Variables {
		ex.SetVariable(name, value)
	}
	return ex, closeTransport
}

func (res *RunResult) skip(name, reason string) {
	res.Results = append(res.Results, &RequestResult{
		Name:       name,
		Skipped:    true,
		SkipReason: reason,
	})
	res.Skipped++
}

func dependencyFailed(call *suite.Call, executed map[string]*RequestResult) bool {
	for _, dep := range call.Depends {
		if res, ok := executed[dep]; ok && !res.Passed {
			return true
		}
	}
	return false
}

// runWithRetry executes call up to 1+Retry times. With RetryOn set only
// the listed status codes trigger another attempt.
func (r *Runner) runWithRetry(ctx context.Context, log *zap.Logger, ex *executor.Executor, call *suite.Call) *RequestResult {
	delay := call.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var result *RequestResult
	for attempt := 0; attempt <= call.Retry; attempt++ {
		result = r.execute(ctx, ex, call)
		result.Attempts = attempt + 1
		if result.Passed || attempt == call.Retry {
			return result
		}
		if len(call.RetryOn) > 0 && (result.Response == nil || !slices.Contains(call.RetryOn, result.Response.StatusCode)) {
			return result
		}

		log.Debug("retrying call",
			zap.String("call", call.Name()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}
	}
	return result
}

func (r *Runner) execute(ctx context.Context, ex *executor.Executor, call *suite.Call) *RequestResult {
	result := &RequestResult{Name: call.Name()}

	start := time.Now()
	// The previous call's snapshot must not leak into this result when
	// the request is never built.
	ex.Context().Request = nil
	resp, err := ex.ExecuteWith(ctx, call.Model, call.Overrides)
	result.Duration = time.Since(start)
	result.Request = ex.Context().Request
	result.Response = resp
	result.Error = err

	result.Passed = err == nil && resp != nil && (hasAssert(call.Model.PostRequest) || resp.IsSuccess())
	return result
}

// hasAssert reports whether ops contain an enabled assertion. Calls
// without one pass on any 2xx response.
func hasAssert(ops []operations.Operation) bool {
	for _, op := range ops {
		if op != nil && op.Type() == operations.TypeAssert && op.Enabled() {
			return true
		}
	}
	return false
}

// topologicalSort orders calls so that dependencies run first. Calls
// without ordering constraints keep their file order.
func (r *Runner) topologicalSort(calls []*suite.Call) ([]*suite.Call, error) {
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		if _, dup := index[c.Name()]; !dup {
			index[c.Name()] = i
		}
	}

	inDegree := make([]int, len(calls))
	dependents := make([][]int, len(calls))
	for i, c := range calls {
		for _, dep := range c.Depends {
			j, ok := index[dep]
			if !ok {
				r.log.Warn("call depends on unknown call", zap.String("call", c.Name()), zap.String("depends", dep))
				continue
			}
			dependents[j] = append(dependents[j], i)
			inDegree[i]++
		}
	}

	// Kahn's algorithm, always taking the lowest ready index
	sorted := make([]*suite.Call, 0, len(calls))
	done := make([]bool, len(calls))
	for len(sorted) < len(calls) {
		next := -1
		for i := range calls {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("circular dependency detected in calls")
		}
		done[next] = true
		sorted = append(sorted, calls[next])
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}

	return sorted, nil
}

func (r *Runner) shouldRun(call *suite.Call, hasOnly bool) bool {
	if hasOnly && !call.Only {
		return false
	}

	if r.config.NameFilter != "" && !matchesPattern(call.Name(), r.config.NameFilter) {
		return false
	}

	if len(r.config.TagsFilter) > 0 && !slices.ContainsFunc(r.config.TagsFilter, call.HasTag) {
		return false
	}

	return true
}

// matchesPattern supports a leading and/or trailing * wildcard.
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case prefix:
		return strings.HasSuffix(name, core)
	case suffix:
		return strings.HasPrefix(name, core)
	}
	return name == pattern
}
