// Package notify posts run summaries to chat webhooks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/body"
	"github.com/abdul-hamid-achik/tuner/packages/core/runner"
	"github.com/abdul-hamid-achik/tuner/packages/http"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single webhook delivery
const DefaultTimeout = 10 * time.Second

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	NotifyAlways  NotifyOn = "always"
	NotifyFailure NotifyOn = "failure"
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends on failure and on the first passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name. Empty means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	}
	return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
}

// Summary is the outcome of one run across all suites
type Summary struct {
	Files       int           `json:"files"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration"`
	Environment string        `json:"environment,omitempty"`
	Failures    []Failure     `json:"failures,omitempty"`
	Recovery    bool          `json:"recovery,omitempty"`
}

type Failure struct {
	Name  string `json:"name"`
	File  string `json:"file,omitempty"`
	Error string `json:"error,omitempty"`
}

// Add folds a suite result into the summary.
func (s *Summary) Add(result *runner.RunResult) {
	s.Files++
	s.Passed += result.Passed
	s.Failed += result.Failed
	s.Skipped += result.Skipped
	s.Total += result.Passed + result.Failed + result.Skipped
	for _, r := range result.Results {
		if r.Passed || r.Skipped {
			continue
		}
		f := Failure{Name: r.Name, File: result.File}
		switch {
		case r.Error != nil:
			f.Error = r.Error.Error()
		case r.Response != nil:
			f.Error = fmt.Sprintf("status %d", r.Response.StatusCode)
		}
		s.Failures = append(s.Failures, f)
	}
}

// Notifier delivers a summary to one destination
type Notifier interface {
	Notify(ctx context.Context, summary *Summary) error
	Name() string
}

// Manager applies the notify policy and fans out to its notifiers. It
// remembers the previous outcome so watch mode can report recoveries.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastPass  bool
	log       *zap.Logger
}

func NewManager(notifyOn NotifyOn, log *zap.Logger, notifiers ...Notifier) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastPass:  true,
		log:       log,
	}
}

func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends summary to every notifier when the policy allows. Delivery
// errors are joined; one failing destination does not stop the others.
func (m *Manager) Notify(ctx context.Context, summary *Summary) error {
	pass := summary.Failed == 0
	send := false

	switch m.notifyOn {
	case NotifyAlways:
		send = true
	case NotifyFailure:
		send = !pass
	case NotifySuccess:
		send = pass
	case NotifyRecovery:
		summary.Recovery = pass && !m.lastPass
		send = !pass || summary.Recovery
	}
	m.lastPass = pass

	if !send {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			m.log.Warn("notification failed", zap.String("notifier", n.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		m.log.Debug("notification sent", zap.String("notifier", n.Name()))
	}
	return errors.Join(errs...)
}

// post sends v as JSON and treats any non-2xx status as an error.
func post(ctx context.Context, doer http.Doer, url string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req := http.NewRequest("POST", url).
		SetHeader("Content-Type", body.ContentTypeJSON).
		SetPayload(body.Payload{Raw: data})

	resp, err := doer.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, resp.Text())
	}
	return nil
}

func defaultDoer() http.Doer {
	return http.NewClient(http.WithTimeout(DefaultTimeout))
}
