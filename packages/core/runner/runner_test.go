package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/env"
	"github.com/abdul-hamid-achik/tuner/packages/core/errs"
	"github.com/abdul-hamid-achik/tuner/packages/operations"
	"github.com/abdul-hamid-achik/tuner/packages/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/users" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 7, "name": "alice"}`))
		case strings.HasPrefix(r.URL.Path, "/users/"):
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "auth": r.Header.Get("Authorization")})
		case r.URL.Path == "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "not found"}`))
		default:
			_, _ = w.Write([]byte(`{"status": "ok", "items": [1, 2, 3]}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func parseSuite(t *testing.T, content string) *suite.Suite {
	t.Helper()
	s, err := suite.Parse([]byte(content), "")
	require.NoError(t, err)
	return s
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.config)
		assert.NotNil(t, r.log)
	})

	t.Run("with custom config", func(t *testing.T) {
		r := NewRunner(&Config{Bail: true, TagsFilter: []string{"smoke"}})
		assert.True(t, r.config.Bail)
		assert.Equal(t, []string{"smoke"}, r.config.TagsFilter)
	})
}

func TestRunner_RunFile(t *testing.T) {
	server := newAPIServer(t)

	content := `
name: health
calls:
  - name: status
    url: ` + server.URL + `/status
    post_request:
      - type: assert
        path: $.status
        expected: ok
      - type: assert
        path: $.items
        operator: contains
        expected: 2
`
	testFile := filepath.Join(t.TempDir(), "health.yaml")
	require.NoError(t, os.WriteFile(testFile, []byte(content), 0644))

	result, err := NewRunner(nil).RunFile(context.Background(), testFile)
	require.NoError(t, err)

	assert.Equal(t, "health", result.Suite)
	assert.Equal(t, testFile, result.File)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Results, 1)
	res := result.Results[0]
	assert.True(t, res.Passed)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 200, res.Response.StatusCode)
	assert.Equal(t, "GET", res.Request["method"])
	assert.False(t, result.HasFailures())
}

func TestRunner_RunFile_ParseError(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(testFile, []byte("calls:\n  - name: x\n"), 0644))

	_, err := NewRunner(nil).RunFile(context.Background(), testFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing file")
}

func TestRunner_FailingAssertion(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
calls:
  - name: status
    url: `+server.URL+`/status
    post_request:
      - type: assert
        path: $.status
        expected: down
`)

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	res := result.Results[0]
	assert.False(t, res.Passed)
	assert.True(t, errors.Is(res.Error, errs.ErrAssertion))
	require.NotNil(t, res.Response)
	assert.Equal(t, 200, res.Response.StatusCode)
}

func TestRunner_StatusRule(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
calls:
  - name: not found without asserts
    url: `+server.URL+`/missing
  - name: not found with asserts
    url: `+server.URL+`/missing
    post_request:
      - type: assert
        path: $.error
        expected: not found
`)

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Results[0].Passed)
	assert.NoError(t, result.Results[0].Error)
	assert.True(t, result.Results[1].Passed)
}

func TestRunner_VariablesFlowBetweenCalls(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
variables:
  token: s3cret
calls:
  - name: create
    method: POST
    url: /users
    body: {type: json, data: {name: alice}}
    post_request:
      - {type: extract, path: $.id, variable: user_id}
  - name: fetch
    url: /users/{{user_id}}
    auth: {type: bearer, token: "{{token}}"}
    post_request:
      - {type: assert, path: $.id, expected: "7"}
      - {type: assert, path: $.auth, expected: Bearer s3cret}
`)

	reg := env.NewRegistry(&env.Environment{Name: env.Test, URLPrefix: server.URL})
	r := NewRunner(&Config{Environment: reg, Templating: true})

	result, err := r.RunSuite(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Passed, "errors: %v %v", result.Results[0].Error, result.Results[1].Error)
	assert.Equal(t, server.URL+"/users/7", result.Results[1].Request["url"])
}

func TestRunner_ConfigVariablesOverrideSuite(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
variables:
  expected: one
calls:
  - url: `+server.URL+`/status
    post_request:
      - {type: assert, source: variable, variable: expected, expected: two}
`)

	result, err := NewRunner(&Config{Variables: map[string]any{"expected": "two"}}).RunSuite(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
}

func TestRunner_SkipOnlyAndFilters(t *testing.T) {
	server := newAPIServer(t)
	base := `
calls:
  - name: list users
    url: ` + server.URL + `/users/1
    tags: [smoke]
  - name: get status
    url: ` + server.URL + `/status
    tags: [slow]
  - name: skipped
    url: ` + server.URL + `/status
    skip: flaky upstream
`

	t.Run("skip reason", func(t *testing.T) {
		result, err := NewRunner(nil).RunSuite(context.Background(), parseSuite(t, base))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Passed)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, "flaky upstream", result.Results[2].SkipReason)
	})

	t.Run("tags", func(t *testing.T) {
		result, err := NewRunner(&Config{TagsFilter: []string{"slow"}}).RunSuite(context.Background(), parseSuite(t, base))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Passed)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, "filtered out", result.Results[0].SkipReason)
	})

	t.Run("name pattern", func(t *testing.T) {
		result, err := NewRunner(&Config{NameFilter: "*status"}).RunSuite(context.Background(), parseSuite(t, base))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Passed)
		assert.True(t, result.Results[1].Passed)
	})

	t.Run("only", func(t *testing.T) {
		s := parseSuite(t, base+"    only: true\n")
		result, err := NewRunner(nil).RunSuite(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Passed)
		assert.Equal(t, 3, result.Skipped)
		assert.Equal(t, "flaky upstream", result.Results[2].SkipReason)
	})
}

func TestRunner_Dependencies(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
calls:
  - name: second
    url: `+server.URL+`/status
    depends: [first]
  - name: first
    url: `+server.URL+`/missing
  - name: third
    url: `+server.URL+`/status
`)

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)

	names := make([]string, 0, len(result.Results))
	for _, res := range result.Results {
		names = append(names, res.Name)
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
	assert.False(t, result.Results[0].Passed)
	assert.True(t, result.Results[1].Skipped)
	assert.Equal(t, "dependency failed", result.Results[1].SkipReason)
	assert.True(t, result.Results[2].Passed)
}

func TestRunner_CircularDependency(t *testing.T) {
	s := parseSuite(t, `
calls:
  - {name: a, url: /a, depends: [b]}
  - {name: b, url: /b, depends: [a]}
`)

	_, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestRunner_Retry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := parseSuite(t, `
calls:
  - name: flaky
    url: `+server.URL+`
    retry: 3
    retry_delay: 1ms
    retry_on: [503]
`)

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Results[0].Passed)
	assert.Equal(t, 3, result.Results[0].Attempts)
}

func TestRunner_RetryOnlyListedStatuses(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s := parseSuite(t, `
calls:
  - url: `+server.URL+`
    retry: 3
    retry_delay: 1ms
    retry_on: [503]
`)

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Results[0].Passed)
	assert.Equal(t, 1, result.Results[0].Attempts)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRunner_Bail(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
calls:
  - url: `+server.URL+`/missing
  - url: `+server.URL+`/status
`)

	result, err := NewRunner(&Config{Bail: true}).RunSuite(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Results, 1)
	assert.True(t, result.HasFailures())
}

func TestRunner_RateLimit(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
calls:
  - url: `+server.URL+`/a
  - url: `+server.URL+`/b
  - url: `+server.URL+`/c
`)

	r := NewRunner(&Config{RateLimit: 20})
	require.NotNil(t, r.limiter)

	start := time.Now()
	result, err := r.RunSuite(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Passed)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunner_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	s := parseSuite(t, "calls:\n  - url: "+url+"/down\n")

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)

	res := result.Results[0]
	assert.False(t, res.Passed)
	assert.NoError(t, res.Error)
	require.NotNil(t, res.Response)
	assert.Equal(t, 0, res.Response.StatusCode)
}

func TestRunner_PreRequestFailure(t *testing.T) {
	server := newAPIServer(t)
	s := parseSuite(t, `
calls:
  - url: `+server.URL+`/status
    pre_request:
      - {type: wait, duration: -1}
`)

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)

	res := result.Results[0]
	assert.False(t, res.Passed)
	assert.Nil(t, res.Response)
	assert.Nil(t, res.Request)
	assert.True(t, errors.Is(res.Error, errs.ErrConfiguration))
}

func TestRunner_WaitFor(t *testing.T) {
	var ready atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" && !ready.Swap(true) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := parseSuite(t, `
wait_for:
  url: `+server.URL+`/health
  interval: 5ms
  timeout: 2s
calls:
  - url: `+server.URL+`/status
`)

	result, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
}

func TestRunner_WaitForTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := parseSuite(t, `
wait_for:
  url: `+server.URL+`
  interval: 5ms
  timeout: 30ms
calls: []
`)

	start := time.Now()
	_, err := NewRunner(nil).RunSuite(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got status 503, expected 200")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunner_CanceledContext(t *testing.T) {
	s := parseSuite(t, "calls:\n  - url: http://127.0.0.1:1/never\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil).RunSuite(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHasAssert(t *testing.T) {
	assert.False(t, hasAssert(nil))
	assert.False(t, hasAssert([]operations.Operation{nil, operations.SetVariable{VariableName: "a"}}))
	assert.False(t, hasAssert([]operations.Operation{operations.Assert{Meta: operations.Meta{Disabled: true}}}))
	assert.True(t, hasAssert([]operations.Operation{nil, operations.Assert{Expected: 1}}))
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"get user", "", true},
		{"get user", "get user", true},
		{"get user", "get", false},
		{"get user", "get*", true},
		{"get user", "*user", true},
		{"get user", "*t u*", true},
		{"get user", "*admin*", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.name, tt.pattern), "%q ~ %q", tt.name, tt.pattern)
	}
}
