package suite

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/assertions"
	"github.com/abdul-hamid-achik/tuner/packages/auth"
	"github.com/abdul-hamid-achik/tuner/packages/body"
	"github.com/abdul-hamid-achik/tuner/packages/capture"
	"github.com/abdul-hamid-achik/tuner/packages/core/model"
	"github.com/abdul-hamid-achik/tuner/packages/operations"
	"gopkg.in/yaml.v3"
)

type rawSuite struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Variables   map[string]any `yaml:"variables"`
	WaitFor     *rawWaitFor    `yaml:"wait_for"`
	Calls       []yaml.Node    `yaml:"calls"`
}

type rawWaitFor struct {
	URL      string `yaml:"url"`
	Status   int    `yaml:"status"`
	Timeout  string `yaml:"timeout"`
	Interval string `yaml:"interval"`
}

type rawCall struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Method      string            `yaml:"method"`
	URL         string            `yaml:"url"`
	URLPrefix   string            `yaml:"url_prefix"`
	Params      map[string]any    `yaml:"params"`
	Headers     map[string]string `yaml:"headers"`
	Cookies     map[string]string `yaml:"cookies"`
	Auth        *rawAuth          `yaml:"auth"`
	Body        *rawBody          `yaml:"body"`
	Timeout     string            `yaml:"timeout"`
	PreRequest  []rawOperation    `yaml:"pre_request"`
	PostRequest []rawOperation    `yaml:"post_request"`
	Call        *rawOverrides     `yaml:"call"`

	Tags       []string `yaml:"tags"`
	Skip       string   `yaml:"skip"`
	Only       bool     `yaml:"only"`
	Depends    []string `yaml:"depends"`
	Retry      int      `yaml:"retry"`
	RetryDelay string   `yaml:"retry_delay"`
	RetryOn    []int    `yaml:"retry_on"`
}

type rawAuth struct {
	Type     string `yaml:"type"`
	Token    string `yaml:"token"`
	Prefix   string `yaml:"prefix"`
	Key      string `yaml:"key"`
	Value    string `yaml:"value"`
	AddTo    string `yaml:"add_to"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type rawBody struct {
	Type        string            `yaml:"type"`
	Data        map[string]any    `yaml:"data"`
	Content     string            `yaml:"content"`
	ContentType string            `yaml:"content_type"`
	Fields      map[string]any    `yaml:"fields"`
	Files       map[string]string `yaml:"files"`
}

type rawOverrides struct {
	PathParams   map[string]any    `yaml:"path_params"`
	Params       map[string]any    `yaml:"params"`
	Headers      map[string]string `yaml:"headers"`
	UpdateBody   map[string]any    `yaml:"update_body"`
	OverrideBody *rawBody          `yaml:"override_body"`
}

type rawOperation struct {
	Type     string `yaml:"type"`
	Name     string `yaml:"name"`
	Disabled bool   `yaml:"disabled"`

	Variable string `yaml:"variable"`
	Value    any    `yaml:"value"`
	Source   string `yaml:"source"`
	Path     string `yaml:"path"`
	Operator string `yaml:"operator"`
	Expected any    `yaml:"expected"`
	Message  string `yaml:"message"`
	Duration string `yaml:"duration"`

	SQL            string `yaml:"sql"`
	Params         []any  `yaml:"params"`
	ResultVariable string `yaml:"result_variable"`
}

func (rc *rawCall) build() (*Call, error) {
	m := model.RequestModel{
		Name:        rc.Name,
		Description: rc.Description,
		Method:      rc.Method,
		URL:         rc.URL,
		URLPrefix:   rc.URLPrefix,
		Params:      rc.Params,
		Headers:     rc.Headers,
		Cookies:     rc.Cookies,
	}
	if m.URL == "" && m.URLPrefix == "" {
		return nil, fmt.Errorf("url is required")
	}

	var err error
	if m.Auth, err = rc.Auth.build(); err != nil {
		return nil, err
	}
	if m.Body, err = rc.Body.build(); err != nil {
		return nil, err
	}
	if m.Timeout, err = parseDuration(rc.Timeout); err != nil {
		return nil, fmt.Errorf("timeout: %w", err)
	}
	if m.PreRequest, err = buildOperations(rc.PreRequest); err != nil {
		return nil, fmt.Errorf("pre_request: %w", err)
	}
	if m.PostRequest, err = buildOperations(rc.PostRequest); err != nil {
		return nil, fmt.Errorf("post_request: %w", err)
	}

	overrides, err := rc.Call.build()
	if err != nil {
		return nil, fmt.Errorf("call: %w", err)
	}

	retryDelay, err := parseDuration(rc.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("retry_delay: %w", err)
	}
	if rc.Retry < 0 {
		return nil, fmt.Errorf("retry must not be negative")
	}

	return &Call{
		Model:      m,
		Overrides:  overrides,
		Tags:       rc.Tags,
		Skip:       rc.Skip,
		Only:       rc.Only,
		Depends:    rc.Depends,
		Retry:      rc.Retry,
		RetryDelay: retryDelay,
		RetryOn:    rc.RetryOn,
	}, nil
}

func (rw *rawWaitFor) build() (*WaitFor, error) {
	if rw == nil {
		return nil, nil
	}
	if rw.URL == "" {
		return nil, fmt.Errorf("wait_for requires url")
	}
	w := &WaitFor{URL: rw.URL, Status: rw.Status, Timeout: DefaultWaitTimeout, Interval: DefaultWaitInterval}
	if w.Status == 0 {
		w.Status = 200
	}
	if rw.Timeout != "" {
		d, err := parseDuration(rw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("wait_for timeout: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("wait_for timeout must be positive")
		}
		w.Timeout = d
	}
	if rw.Interval != "" {
		d, err := parseDuration(rw.Interval)
		if err != nil {
			return nil, fmt.Errorf("wait_for interval: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("wait_for interval must be positive")
		}
		w.Interval = d
	}
	return w, nil
}

func (ra *rawAuth) build() (auth.Auth, error) {
	if ra == nil {
		return auth.None(), nil
	}
	switch auth.Kind(strings.ToLower(ra.Type)) {
	case auth.KindNone, "":
		return auth.None(), nil
	case auth.KindBearer:
		return auth.BearerAuth{Token: ra.Token, Prefix: ra.Prefix}, nil
	case auth.KindAPIKey:
		if ra.Key == "" {
			return nil, fmt.Errorf("apikey auth requires key")
		}
		if ra.AddTo != "" && ra.AddTo != auth.AddToHeader && ra.AddTo != auth.AddToQuery {
			return nil, fmt.Errorf("apikey add_to must be %q or %q, got %q", auth.AddToHeader, auth.AddToQuery, ra.AddTo)
		}
		return auth.APIKey(ra.Key, ra.Value, ra.AddTo), nil
	case auth.KindBasic:
		return auth.Basic(ra.Username, ra.Password), nil
	}
	return nil, fmt.Errorf("unknown auth type %q", ra.Type)
}

func (rb *rawBody) build() (body.Body, error) {
	if rb == nil {
		return body.None(), nil
	}
	kind, ok := body.ParseKind(strings.ToLower(rb.Type))
	if !ok {
		return nil, fmt.Errorf("unknown body type %q", rb.Type)
	}
	switch kind {
	case body.KindJSON:
		return body.JSON(rb.Data), nil
	case body.KindText:
		return body.Text(rb.Content, rb.ContentType), nil
	case body.KindXML:
		return body.XML(rb.Content), nil
	case body.KindFormURLEncoded:
		return body.FormURLEncoded(stringMap(rb.Data)), nil
	case body.KindFormData:
		fields := rb.Fields
		if fields == nil {
			fields = rb.Data
		}
		return body.FormData(fields, rb.Files), nil
	}
	return body.None(), nil
}

func (ro *rawOverrides) build() (*model.Overrides, error) {
	if ro == nil {
		return model.NewOverrides(), nil
	}
	o := model.NewOverrides(
		model.WithPathParams(ro.PathParams),
		model.WithParams(ro.Params),
		model.WithHeaders(ro.Headers),
		model.WithUpdateBody(ro.UpdateBody),
	)
	if ro.OverrideBody != nil {
		b, err := ro.OverrideBody.build()
		if err != nil {
			return nil, fmt.Errorf("override_body: %w", err)
		}
		o.OverrideBody = b
	}
	return o, nil
}

func buildOperations(raws []rawOperation) ([]operations.Operation, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	ops := make([]operations.Operation, 0, len(raws))
	for i := range raws {
		op, err := raws[i].build()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (r *rawOperation) build() (operations.Operation, error) {
	meta := operations.Meta{Name: r.Name, Disabled: r.Disabled}

	source, err := parseSource(r.Source)
	if err != nil {
		return nil, err
	}

	switch operations.Type(strings.ToLower(r.Type)) {
	case operations.TypeSetVariable:
		if r.Variable == "" {
			return nil, fmt.Errorf("set_var requires variable")
		}
		return operations.SetVariable{Meta: meta, VariableName: r.Variable, Value: r.Value}, nil

	case operations.TypeExtractVariable:
		if r.Variable == "" {
			return nil, fmt.Errorf("extract requires variable")
		}
		return operations.ExtractVariable{Meta: meta, Source: source, JSONPath: r.Path, VariableName: r.Variable}, nil

	case operations.TypeAssert:
		op := assertions.Operator(r.Operator)
		if op != "" {
			if err := op.Validate(); err != nil {
				return nil, err
			}
		}
		return operations.Assert{
			Meta:         meta,
			Source:       source,
			JSONPath:     r.Path,
			VariableName: r.Variable,
			Operator:     op,
			Expected:     r.Expected,
			Message:      r.Message,
		}, nil

	case operations.TypeWait:
		d, err := parseDuration(r.Duration)
		if err != nil {
			return nil, fmt.Errorf("wait duration: %w", err)
		}
		return operations.Wait{Meta: meta, Duration: d}, nil

	case operations.TypeSQLQuery:
		return operations.SQLQuery{Meta: meta, SQL: r.SQL, Params: r.Params, ResultVariable: r.ResultVariable}, nil

	case operations.TypeSQLExecute:
		return operations.SQLExecute{Meta: meta, SQL: r.SQL, Params: r.Params}, nil
	}
	return nil, fmt.Errorf("unknown operation type %q", r.Type)
}

func parseSource(s string) (capture.Source, error) {
	switch src := capture.Source(strings.ToLower(s)); src {
	case "":
		return capture.SourceResponse, nil
	case capture.SourceResponse, capture.SourceRequest, capture.SourceHeader, capture.SourceVariable:
		return src, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// parseDuration accepts Go durations ("1.5s", "200ms") and bare integers,
// which are milliseconds. A leading minus is kept so negative waits reach
// the operation and fail there.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func stringMap(m map[string]any) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
