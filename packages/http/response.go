package http

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Response is a normalized HTTP response. StatusCode 0 is reserved for
// requests that never got one.
type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Cookies    map[string]string
	// Body is the decoded JSON value, or nil when the payload is not JSON.
	Body     any
	Raw      []byte
	Duration time.Duration
}

// ParseBody decodes raw as JSON. Empty or invalid input yields nil.
func ParseBody(raw []byte) any {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	return gjson.ParseBytes(raw).Value()
}

// FailureResponse is the zero-status stand-in for a request that failed
// before a response arrived.
func FailureResponse(err error) *Response {
	msg := err.Error()
	return &Response{
		Headers: map[string]string{},
		Cookies: map[string]string{},
		Body:    map[string]any{"error": msg},
		Raw:     []byte(msg),
	}
}

func (r *Response) Text() string {
	return string(r.Raw)
}

// JSON returns the body when it is a JSON object and an empty map otherwise.
func (r *Response) JSON() map[string]any {
	if m, ok := r.Body.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// IsTransportFailure reports a synthesized response.
func (r *Response) IsTransportFailure() bool {
	return r.StatusCode == 0
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// DurationMs is the round trip time in whole milliseconds.
func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
