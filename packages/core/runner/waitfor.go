package runner

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/executor"
	"github.com/abdul-hamid-achik/tuner/packages/http"
	"github.com/abdul-hamid-achik/tuner/packages/suite"
	"go.uber.org/zap"
)

// waitProbeTimeout bounds each readiness request
const waitProbeTimeout = 5 * time.Second

// waitForService polls the probe URL until it returns the expected status
// or the probe times out. Placeholders in the URL are resolved first.
func (r *Runner) waitForService(ctx context.Context, log *zap.Logger, cfg *suite.WaitFor, ex *executor.Executor) error {
	url := ex.Resolver().Resolve(cfg.URL)
	doer := r.config.Transport
	if doer == nil {
		client := http.NewClient(append(slices.Clone(r.config.ClientOptions), http.WithTimeout(waitProbeTimeout))...)
		defer client.Close()
		doer = client
	}

	log.Info("waiting for service",
		zap.String("url", url),
		zap.Int("status", cfg.Status),
		zap.Duration("timeout", cfg.Timeout),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var (
		lastErr    error
		lastStatus int
	)
	for {
		resp, err := doer.Do(ctx, http.NewRequest("GET", url))
		switch {
		case err != nil:
			// a probe cut short by the deadline says nothing new
			if ctx.Err() == nil {
				lastErr = err
			}
		case resp.StatusCode == cfg.Status:
			log.Info("service ready", zap.String("url", url))
			return nil
		default:
			lastErr = nil
			lastStatus = resp.StatusCode
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("service %s not ready after %v: %w", url, cfg.Timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				url, cfg.Timeout, lastStatus, cfg.Status)
		case <-time.After(cfg.Interval):
		}
	}
}
