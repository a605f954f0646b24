package http

import (
	"fmt"
	"net/url"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/body"
)

type Request struct {
	Method  string
	URL     string
	Params  map[string]any
	Headers map[string]string
	Cookies map[string]string
	Payload body.Payload
	Timeout time.Duration
	BaseDir string // Base directory for resolving relative file paths
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Params:  make(map[string]any),
		Headers: make(map[string]string),
		Cookies: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetParam(key string, value any) *Request {
	r.Params[key] = value
	return r
}

func (r *Request) SetPayload(p body.Payload) *Request {
	r.Payload = p
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// BuildURL appends Params to the URL's existing query. List values become
// repeated keys and nil values are dropped.
func (r *Request) BuildURL() string {
	if len(r.Params) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, v := range r.Params {
		switch vals := v.(type) {
		case nil:
		case []any:
			q.Del(k)
			for _, item := range vals {
				q.Add(k, formatParam(item))
			}
		case []string:
			q.Del(k)
			for _, item := range vals {
				q.Add(k, item)
			}
		default:
			q.Set(k, formatParam(v))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func formatParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprint(v)
}
