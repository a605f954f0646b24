package executor

import (
	"context"
	"encoding/json"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/assertions"
	"github.com/abdul-hamid-achik/tuner/packages/auth"
	"github.com/abdul-hamid-achik/tuner/packages/body"
	"github.com/abdul-hamid-achik/tuner/packages/capture"
	"github.com/abdul-hamid-achik/tuner/packages/core/env"
	"github.com/abdul-hamid-achik/tuner/packages/core/errs"
	"github.com/abdul-hamid-achik/tuner/packages/core/model"
	"github.com/abdul-hamid-achik/tuner/packages/http"
	"github.com/abdul-hamid-achik/tuner/packages/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type echoed struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query"`
	Headers map[string]string   `json:"headers"`
	Cookies map[string]string   `json:"cookies"`
	Body    string              `json:"body"`
}

// echoServer reflects the request back as JSON.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, _ := io.ReadAll(r.Body)
		e := echoed{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Headers: map[string]string{},
			Cookies: map[string]string{},
			Body:    string(data),
		}
		for k := range r.Header {
			e.Headers[k] = r.Header.Get(k)
		}
		for _, c := range r.Cookies() {
			e.Cookies[c.Name] = c.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(e)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func decodeEcho(t *testing.T, resp *http.Response) echoed {
	t.Helper()
	var e echoed
	require.NoError(t, json.Unmarshal(resp.Raw, &e))
	return e
}

func TestExecute_MergesParams(t *testing.T) {
	srv := echoServer(t)
	ex := New()
	defer ex.Close()

	m := model.RequestModel{URL: "/items", URLPrefix: srv.URL, Params: map[string]any{"page": 1}}
	resp, err := ex.Execute(context.Background(), m, model.WithParams(map[string]any{"page": 2, "status": "active"}))
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, map[string][]string{"page": {"2"}, "status": {"active"}}, e.Query)
	assert.Equal(t, map[string]any{"page": 2, "status": "active"}, ex.Context().Request["params"])
}

func TestExecute_EnvironmentPrefixAndPathParams(t *testing.T) {
	srv := echoServer(t)
	reg := env.NewRegistry(&env.Environment{Name: env.Test, URLPrefix: srv.URL})
	ex := New(WithEnvironment(reg))
	defer ex.Close()

	m := model.RequestModel{Method: "delete", URL: "/users/{id}"}
	resp, err := ex.Execute(context.Background(), m, model.WithPathParam("id", 7))
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, "DELETE", e.Method)
	assert.Equal(t, "/users/7", e.Path)
}

func TestExecute_MissingPathParamFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ex := New()
	defer ex.Close()
	_, err := ex.Execute(context.Background(), model.RequestModel{URL: "/users/{id}", URLPrefix: srv.URL})

	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, errs.KindPathSubstitution, cfgErr.Kind)
	assert.Zero(t, hits.Load())
}

func TestExecute_HeaderPrecedence(t *testing.T) {
	srv := echoServer(t)
	ex := New()
	defer ex.Close()

	m := model.RequestModel{
		URL:       "/",
		URLPrefix: srv.URL,
		Headers:   map[string]string{"Authorization": "model", "X-Model": "1"},
		Auth:      auth.Basic("user", "pass"),
		Cookies:   map[string]string{"sid": "abc"},
	}

	resp, err := ex.Execute(context.Background(), m)
	require.NoError(t, err)
	e := decodeEcho(t, resp)
	assert.Equal(t, "Basic dXNlcjpwYXNz", e.Headers["Authorization"])
	assert.Equal(t, "1", e.Headers["X-Model"])
	assert.Equal(t, "abc", e.Cookies["sid"])

	resp, err = ex.Execute(context.Background(), m, model.WithHeaders(map[string]string{"Authorization": "explicit"}))
	require.NoError(t, err)
	assert.Equal(t, "explicit", decodeEcho(t, resp).Headers["Authorization"])

	// Keys that differ only by case must not race on the wire.
	m.Headers = map[string]string{"authorization": "model"}
	for i := 0; i < 20; i++ {
		resp, err = ex.Execute(context.Background(), m, model.WithHeaders(map[string]string{"authorization": "lower"}))
		require.NoError(t, err)
		require.Equal(t, "lower", decodeEcho(t, resp).Headers["Authorization"])
	}
}

func TestExecute_Bodies(t *testing.T) {
	srv := echoServer(t)
	ex := New()
	defer ex.Close()

	tests := []struct {
		name        string
		body        body.Body
		contentType string
		payload     string
	}{
		{"json", body.JSON(map[string]any{"name": "a"}), "application/json", `{"name":"a"}`},
		{"text", body.Text("hello", "text/csv"), "text/csv", "hello"},
		{"xml", body.XML("<a/>"), "application/xml", "<a/>"},
		{"form", body.FormURLEncoded(map[string]string{"k": "v w"}), "application/x-www-form-urlencoded", "k=v+w"},
		{"none", body.None(), "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.RequestModel{Method: "POST", URL: "/", URLPrefix: srv.URL, Body: tt.body}
			resp, err := ex.Execute(context.Background(), m)
			require.NoError(t, err)

			e := decodeEcho(t, resp)
			assert.Equal(t, tt.contentType, e.Headers["Content-Type"])
			assert.Equal(t, tt.payload, e.Body)
		})
	}
}

func TestExecute_UpdateBody(t *testing.T) {
	srv := echoServer(t)
	ex := New()
	defer ex.Close()

	m := model.RequestModel{
		Method:    "PUT",
		URL:       "/",
		URLPrefix: srv.URL,
		Body:      body.JSON(map[string]any{"a": 1, "nested": map[string]any{"x": 1, "y": 2}}),
	}
	resp, err := ex.Execute(context.Background(), m, model.WithUpdateBody(map[string]any{"nested": map[string]any{"y": 99}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"nested":{"x":1,"y":99}}`, decodeEcho(t, resp).Body)
}

func TestExecute_Multipart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatar.png"), []byte("png"), 0o644))

	var got map[string]string
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		got = map[string]string{}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(nethttp.StatusBadRequest)
			return
		}
		got["name"] = r.FormValue("name")
		for field := range r.MultipartForm.File {
			got["file:"+field] = r.MultipartForm.File[field][0].Filename
		}
	}))
	defer srv.Close()

	ex := New(WithBaseDir(dir))
	defer ex.Close()

	m := model.RequestModel{
		Method:    "POST",
		URL:       "/upload",
		URLPrefix: srv.URL,
		Body:      body.FormData(map[string]any{"name": "bob"}, map[string]string{"avatar": "avatar.png", "cv": "missing.pdf"}),
	}
	resp, err := ex.Execute(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]string{"name": "bob", "file:avatar": "avatar.png"}, got)
}

func TestExecute_ModelTimeoutOverridesClientTimeout(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		time.Sleep(150 * time.Millisecond)
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer srv.Close()

	ex := New(WithClientOptions(http.WithTimeout(50 * time.Millisecond)))
	defer ex.Close()

	m := model.RequestModel{URL: "/", URLPrefix: srv.URL, Timeout: 2 * time.Second}
	resp, err := ex.Execute(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)

	m.Timeout = 0
	resp, err = ex.Execute(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.StatusCode)
}

func TestExecute_TransportFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	core, logs := observer.New(zap.WarnLevel)
	ex := New(WithLogger(zap.New(core)))
	defer ex.Close()

	m := model.RequestModel{
		URL:       "/",
		URLPrefix: "http://" + addr,
		PostRequest: []operations.Operation{
			operations.Assert{JSONPath: "$.error", Operator: assertions.OpExists},
			operations.ExtractVariable{JSONPath: "$.error", VariableName: "err"},
		},
	}

	resp, err := ex.Execute(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.StatusCode)
	assert.Contains(t, resp.JSON(), "error")
	assert.Empty(t, resp.Headers)
	assert.NotNil(t, ex.Variable("err"))
	assert.Equal(t, 1, logs.FilterMessage("transport failure converted to status 0 response").Len())
}

func TestExecute_NonObjectBodyNormalized(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = w.Write([]byte(`[{"id": 1}]`))
	}))
	defer srv.Close()

	ex := New()
	defer ex.Close()

	resp, err := ex.Execute(context.Background(), model.RequestModel{URL: "/", URLPrefix: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": float64(1)}}, resp.Body)
	assert.Equal(t, map[string]any{}, ex.Context().Response)
}

func TestExecute_PreRequestFailurePreventsNetworkCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ex := New()
	defer ex.Close()

	m := model.RequestModel{
		URL:       "/",
		URLPrefix: srv.URL,
		PreRequest: []operations.Operation{
			operations.SetVariable{VariableName: "before", Value: 1},
			operations.Assert{Source: capture.SourceVariable, VariableName: "token", Operator: assertions.OpExists, Message: "token required"},
		},
	}

	resp, err := ex.Execute(context.Background(), m)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, "token required", err.Error())
	assert.Zero(t, hits.Load())
	assert.Equal(t, 1, ex.Variable("before"))
}

func TestExecute_PostRequestFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = w.Write([]byte(`{"code": 0}`))
	}))
	defer srv.Close()

	ex := New()
	defer ex.Close()

	m := model.RequestModel{
		URL:       "/",
		URLPrefix: srv.URL,
		PostRequest: []operations.Operation{
			operations.Assert{JSONPath: "$.code", Operator: assertions.OpEq, Expected: 0},
			operations.Assert{JSONPath: "$.code", Operator: assertions.OpEq, Expected: 1, Message: "code should be 1"},
		},
	}

	resp, err := ex.Execute(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errs.IsAssertion(err))
	assert.Equal(t, "code should be 1", err.Error())
	require.NotNil(t, resp)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestExecute_SharedContextAcrossCalls(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			_, _ = w.Write([]byte(`{"data": {"token": "t-123"}}`))
		default:
			_, _ = w.Write([]byte(`{"auth": "` + r.Header.Get("Authorization") + `"}`))
		}
	}))
	defer srv.Close()

	ex := New(WithTemplating())
	defer ex.Close()

	login := model.RequestModel{
		Method:    "POST",
		URL:       "/login",
		URLPrefix: srv.URL,
		PostRequest: []operations.Operation{
			operations.ExtractVariable{JSONPath: "$.data.token", VariableName: "token"},
		},
	}
	_, err := ex.Execute(context.Background(), login)
	require.NoError(t, err)
	assert.Equal(t, "t-123", ex.Variable("token"))

	me := model.RequestModel{
		URL:       "/me",
		URLPrefix: srv.URL,
		Auth:      auth.Bearer("{{token}}"),
		PostRequest: []operations.Operation{
			operations.Assert{JSONPath: "$.auth", Expected: "Bearer t-123"},
		},
	}
	_, err = ex.Execute(context.Background(), me)
	require.NoError(t, err)
}

func TestExecute_HeaderAndRequestSources(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("X-Request-Id", "rid-1")
		w.WriteHeader(nethttp.StatusCreated)
	}))
	defer srv.Close()

	ex := New()
	defer ex.Close()

	m := model.RequestModel{
		Method:    "POST",
		URL:       "/",
		URLPrefix: srv.URL,
		Body:      body.JSON(map[string]any{"name": "x"}),
		PostRequest: []operations.Operation{
			operations.ExtractVariable{Source: capture.SourceHeader, JSONPath: "$.x-request-id", VariableName: "rid"},
			operations.Assert{Source: capture.SourceRequest, JSONPath: "$.body.name", Expected: "x"},
			operations.Assert{Source: capture.SourceRequest, JSONPath: "$.method", Expected: "POST"},
		},
	}
	resp, err := ex.Execute(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "rid-1", ex.Variable("rid"))
}

type fakeDoer struct {
	calls int
	resp  *http.Response
}

func (f *fakeDoer) Do(_ context.Context, _ *http.Request) (*http.Response, error) {
	f.calls++
	return f.resp, nil
}

func TestExecute_WithTransport(t *testing.T) {
	doer := &fakeDoer{resp: &http.Response{StatusCode: 204, Headers: map[string]string{}}}
	ex := New(WithTransport(doer))

	resp, err := ex.Execute(context.Background(), model.RequestModel{URL: "http://example.invalid/"})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, 1, doer.calls)

	ex.Close()
	ex.Close()
	_, err = ex.Execute(context.Background(), model.RequestModel{URL: "http://example.invalid/"})
	require.NoError(t, err)
	assert.Equal(t, 2, doer.calls, "caller supplied transport survives Close")
}

func TestExecute_UnappliedAPIKeyIsLogged(t *testing.T) {
	doer := &fakeDoer{resp: &http.Response{StatusCode: 200}}
	core, logs := observer.New(zap.WarnLevel)
	ex := New(WithTransport(doer), WithLogger(zap.New(core)))

	m := model.RequestModel{URL: "http://example.invalid/", Auth: auth.APIKey("api_key", "s", auth.AddToQuery)}
	_, err := ex.Execute(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("api key with add_to=query is not applied").Len())
}

func TestVariables(t *testing.T) {
	ex := New()
	assert.Nil(t, ex.Variable("x"))
	ex.SetVariable("x", 1)
	assert.Equal(t, 1, ex.Variable("x"))
	assert.Equal(t, map[string]any{"x": 1}, ex.Context().Vars())
	ex.Close()
}
