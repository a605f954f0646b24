package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/body"
)

const (
	// DefaultTimeout bounds a request when neither the client nor the request sets one.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects caps how many redirects are followed.
	DefaultMaxRedirects = 10

	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
	idleConnTimeout     = 90 * time.Second
)

// Doer sends a request. *Client is the production implementation.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client is the pooled transport behind an executor. It is created lazily by
// the executor and must be closed to release idle sockets.
type Client struct {
	hc *http.Client

	timeout      time.Duration
	redirects    bool
	maxRedirects int
	insecure     bool
	proxy        string
	headers      map[string]string
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:      DefaultTimeout,
		redirects:    true,
		maxRedirects: DefaultMaxRedirects,
		headers:      map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}

	// Deadlines come from the request context so a request timeout can
	// exceed the client default.
	c.hc = &http.Client{
		Transport:     c.transport(),
		CheckRedirect: c.checkRedirect,
	}
	return c
}

func (c *Client) transport() *http.Transport {
	t := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
	}
	if c.insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	// An unparsable proxy is ignored; requests go direct.
	if c.proxy != "" {
		if u, err := neturl.Parse(c.proxy); err == nil {
			t.Proxy = http.ProxyURL(u)
		}
	}
	return t
}

func (c *Client) checkRedirect(_ *http.Request, via []*http.Request) error {
	if !c.redirects || len(via) >= c.maxRedirects {
		return http.ErrUseLastResponse
	}
	return nil
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) { c.redirects = follow }
}

func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) { c.maxRedirects = n }
}

// WithValidateSSL turns certificate verification on or off.
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) { c.insecure = !validate }
}

// WithProxy routes every request through proxyURL.
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) { c.proxy = proxyURL }
}

// WithDefaultHeaders adds headers sent on every request. Request headers win.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.hc.CloseIdleConnections()
}

// Do sends req. Any failure to obtain a response is a *TransportError;
// HTTP error statuses are not errors. req.Timeout, when set, replaces the
// client timeout.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if timeout := c.timeoutFor(req); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := req.BuildURL()
	fail := func(op string, err error) (*Response, error) {
		return nil, &TransportError{Op: op, URL: target, Err: err}
	}

	if err := ValidateURL(target); err != nil {
		return fail("validate", err)
	}
	hreq, err := c.newHTTPRequest(ctx, req, target)
	if err != nil {
		return fail("build", err)
	}

	start := time.Now()
	hresp, err := c.hc.Do(hreq)
	elapsed := time.Since(start)
	if err != nil {
		return fail(strings.ToLower(req.Method), err)
	}
	defer hresp.Body.Close()

	raw, err := io.ReadAll(hresp.Body)
	if err != nil {
		return fail("read", err)
	}
	return newResponse(hresp, raw, elapsed), nil
}

func (c *Client) timeoutFor(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return c.timeout
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request, target string) (*http.Request, error) {
	payload, contentType, err := encodePayload(req.Payload, req.BaseDir)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, payload)
	if err != nil {
		return nil, err
	}

	for k, v := range c.headers {
		hreq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	// Multipart boundary must win over any declared Content-Type.
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	for name, value := range req.Cookies {
		hreq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return hreq, nil
}

func newResponse(hresp *http.Response, raw []byte, elapsed time.Duration) *Response {
	headers := make(map[string]string, len(hresp.Header))
	for k, vals := range hresp.Header {
		headers[k] = strings.Join(vals, ", ")
	}
	cookies := map[string]string{}
	for _, ck := range hresp.Cookies() {
		cookies[ck.Name] = ck.Value
	}
	return &Response{
		StatusCode: hresp.StatusCode,
		Status:     hresp.Status,
		Headers:    headers,
		Cookies:    cookies,
		Body:       ParseBody(raw),
		Raw:        raw,
		Duration:   elapsed,
	}
}

// encodePayload returns the request body and, for multipart payloads, the
// Content-Type carrying the boundary.
func encodePayload(p body.Payload, baseDir string) (io.Reader, string, error) {
	switch {
	case p.JSON != nil:
		data, err := json.Marshal(p.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return bytes.NewReader(data), "", nil
	case p.Raw != nil:
		return bytes.NewReader(p.Raw), "", nil
	case p.Form != nil:
		values := neturl.Values{}
		for k, v := range p.Form {
			values.Set(k, v)
		}
		return strings.NewReader(values.Encode()), "", nil
	case p.Multipart != nil:
		return BuildMultipartBody(p.Multipart, baseDir)
	}
	return nil, "", nil
}

// ValidateURL accepts only absolute http and https URLs.
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
