package http

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type countingDoer struct {
	calls atomic.Int32
}

func (d *countingDoer) Do(_ context.Context, _ *Request) (*Response, error) {
	d.calls.Add(1)
	return &Response{StatusCode: 200}, nil
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-1))

	l := NewLimiter(5)
	require.NotNil(t, l)
	assert.Equal(t, rate.Limit(5), l.Limit())
	assert.Equal(t, 1, l.Burst())
}

func TestThrottle_NilLimiterPassesThrough(t *testing.T) {
	next := &countingDoer{}
	assert.Same(t, Doer(next), Throttle(next, nil))
}

func TestThrottle_SpacesRequests(t *testing.T) {
	next := &countingDoer{}
	d := Throttle(next, NewLimiter(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := d.Do(context.Background(), NewRequest("GET", "http://example.com"))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}

	// first token is free, the next two arrive 50ms apart
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestThrottle_CancelledWait(t *testing.T) {
	next := &countingDoer{}
	limiter := rate.NewLimiter(rate.Limit(0.01), 1)
	d := Throttle(next, limiter)

	_, err := d.Do(context.Background(), NewRequest("GET", "http://example.com"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Do(ctx, NewRequest("GET", "http://example.com/next"))
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "throttle", te.Op)
	assert.Equal(t, "http://example.com/next", te.URL)
	assert.Equal(t, int32(1), next.calls.Load())
}
