package http

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponse_StatusClasses(t *testing.T) {
	tests := []struct {
		statusCode  int
		success     bool
		clientError bool
		serverError bool
	}{
		{0, false, false, false},
		{200, true, false, false},
		{204, true, false, false},
		{299, true, false, false},
		{302, false, false, false},
		{400, false, true, false},
		{404, false, true, false},
		{499, false, true, false},
		{500, false, false, true},
		{599, false, false, true},
		{600, false, false, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.success, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
		assert.Equal(t, tt.clientError, resp.IsClientError(), "StatusCode: %d", tt.statusCode)
		assert.Equal(t, tt.serverError, resp.IsServerError(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_Header(t *testing.T) {
	resp := &Response{Headers: map[string]string{"content-type": "application/json"}}
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Empty(t, resp.Header("X-Missing"))
}

func TestResponse_DurationMs(t *testing.T) {
	assert.Equal(t, int64(1500), (&Response{Duration: 1500*time.Millisecond + 400*time.Microsecond}).DurationMs())
}

func TestResponse_JSON(t *testing.T) {
	assert.Equal(t, map[string]any{"a": 1}, (&Response{Body: map[string]any{"a": 1}}).JSON())
	assert.Equal(t, map[string]any{}, (&Response{Body: []any{1}}).JSON())
	assert.Equal(t, map[string]any{}, (&Response{}).JSON())
}

func TestParseBody(t *testing.T) {
	assert.Equal(t, map[string]any{"a": float64(1), "b": []any{"x", true, nil}}, ParseBody([]byte(`{"a":1,"b":["x",true,null]}`)))
	assert.Equal(t, []any{float64(1), float64(2)}, ParseBody([]byte(`[1,2]`)))
	assert.Equal(t, "hi", ParseBody([]byte(`"hi"`)))
	assert.Nil(t, ParseBody([]byte(`not json`)))
	assert.Nil(t, ParseBody(nil))
}

func TestFailureResponse(t *testing.T) {
	resp := FailureResponse(&TransportError{Op: "get", URL: "http://x", Err: errors.New("connection refused")})

	assert.Equal(t, 0, resp.StatusCode)
	assert.True(t, resp.IsTransportFailure())
	assert.Equal(t, "get http://x: connection refused", resp.JSON()["error"])
	assert.Empty(t, resp.Headers)
	assert.Empty(t, resp.Cookies)
	assert.Zero(t, resp.Duration)
}
