package http

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled delays each request until its limiter grants a token. Several
// Throttled values may share one limiter to cap the combined rate.
type Throttled struct {
	next    Doer
	limiter *rate.Limiter
}

// NewLimiter returns a limiter allowing rps requests per second with no
// bursting. A non-positive rps yields nil, meaning unlimited.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Throttle wraps next with limiter. A nil limiter returns next unchanged.
func Throttle(next Doer, limiter *rate.Limiter) Doer {
	if limiter == nil {
		return next
	}
	return &Throttled{next: next, limiter: limiter}
}

// Do waits for a token and forwards the request. A cancelled wait is
// reported as a TransportError so callers treat it like any other failed send.
func (t *Throttled) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "throttle", URL: req.URL, Err: err}
	}
	return t.next.Do(ctx, req)
}
