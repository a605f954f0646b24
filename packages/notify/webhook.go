package notify

import (
	"context"

	"github.com/abdul-hamid-achik/tuner/packages/http"
)

// WebhookNotifier posts the summary as plain JSON to any endpoint
type WebhookNotifier struct {
	url  string
	doer http.Doer
}

// NewWebhookNotifier creates a generic notifier. A nil doer uses a client
// with DefaultTimeout.
func NewWebhookNotifier(url string, doer http.Doer) *WebhookNotifier {
	if doer == nil {
		doer = defaultDoer()
	}
	return &WebhookNotifier{url: url, doer: doer}
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

type webhookPayload struct {
	Event   string   `json:"event"`
	Summary *Summary `json:"summary"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, summary *Summary) error {
	event := "run.passed"
	switch {
	case summary.Failed > 0:
		event = "run.failed"
	case summary.Recovery:
		event = "run.recovered"
	}
	return post(ctx, w.doer, w.url, webhookPayload{Event: event, Summary: summary})
}
