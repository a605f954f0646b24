package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/http"
)

// maxListedFailures caps the failure lines in one Slack message
const maxListedFailures = 10

// SlackNotifier sends notifications to Slack via incoming webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	doer       http.Doer
}

type SlackOption func(*SlackNotifier)

func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackTransport replaces the HTTP client
func WithSlackTransport(d http.Doer) SlackOption {
	return func(s *SlackNotifier) {
		s.doer = d
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "tuner",
		iconEmoji:  ":test_tube:",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.doer == nil {
		s.doer = defaultDoer()
	}
	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s *SlackNotifier) Notify(ctx context.Context, summary *Summary) error {
	return post(ctx, s.doer, s.webhookURL, s.message(summary))
}

func (s *SlackNotifier) message(summary *Summary) slackMessage {
	color, title := "good", ":white_check_mark: All calls passed"
	switch {
	case summary.Failed > 0:
		color, title = "danger", fmt.Sprintf(":x: %d call(s) failed", summary.Failed)
	case summary.Recovery:
		title = ":tada: Calls recovered"
	}

	fields := []slackField{
		{Title: "Total", Value: fmt.Sprint(summary.Total), Short: true},
		{Title: "Passed", Value: fmt.Sprint(summary.Passed), Short: true},
		{Title: "Failed", Value: fmt.Sprint(summary.Failed), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}
	if summary.Environment != "" {
		fields = append(fields, slackField{Title: "Environment", Value: summary.Environment, Short: true})
	}

	return slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  title,
			Text:   failureText(summary.Failures),
			Fields: fields,
			Footer: "tuner",
			TS:     time.Now().Unix(),
		}},
	}
}

func failureText(failures []Failure) string {
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("*Failed calls:*\n")
	for i, f := range failures {
		if i == maxListedFailures {
			fmt.Fprintf(&b, "…and %d more\n", len(failures)-maxListedFailures)
			break
		}
		fmt.Fprintf(&b, "• `%s`", f.Name)
		if f.File != "" {
			fmt.Fprintf(&b, " (%s)", f.File)
		}
		if f.Error != "" {
			fmt.Fprintf(&b, ": %s", f.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
