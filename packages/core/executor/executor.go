package executor

import (
	"context"
	"errors"

	"github.com/abdul-hamid-achik/tuner/packages/assertions"
	"github.com/abdul-hamid-achik/tuner/packages/core/env"
	"github.com/abdul-hamid-achik/tuner/packages/core/model"
	"github.com/abdul-hamid-achik/tuner/packages/http"
	"github.com/abdul-hamid-achik/tuner/packages/operations"
	"go.uber.org/zap"
)

// Environment is what the executor reads from the active environment.
type Environment interface {
	ResolvePrefix() string
	Lookup(name string) (any, bool)
}

type Executor struct {
	client     http.Doer
	ownsClient bool
	clientOpts []http.ClientOption

	env        Environment
	opCtx      *operations.Context
	log        *zap.Logger
	templating bool
	resolver   *env.Resolver
	baseDir    string
}

type Option func(*Executor)

// WithTransport uses d instead of a lazily created client. Close leaves d
// alone.
func WithTransport(d http.Doer) Option {
	return func(e *Executor) {
		e.client = d
		e.ownsClient = false
	}
}

// WithClientOptions configures the client the executor creates for itself.
func WithClientOptions(opts ...http.ClientOption) Option {
	return func(e *Executor) {
		e.clientOpts = append(e.clientOpts, opts...)
	}
}

func WithEnvironment(environment Environment) Option {
	return func(e *Executor) {
		e.env = environment
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithTemplating expands {{...}} placeholders in the merged request.
func WithTemplating() Option {
	return func(e *Executor) {
		e.templating = true
	}
}

// WithBaseDir resolves relative multipart file and schema paths against dir.
func WithBaseDir(dir string) Option {
	return func(e *Executor) {
		e.baseDir = dir
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		ownsClient: true,
		opCtx:      operations.NewContext(),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.baseDir != "" {
		e.opCtx.Evaluator = assertions.NewEvaluator(assertions.WithBaseDir(e.baseDir))
	}

	e.resolver = env.NewResolver(e.lookupContext, e.lookupEnvironment)
	e.resolver.SetWarnFunc(e.log.Sugar().Warnf)
	return e
}

// Execute runs m with overrides built from opts.
func (e *Executor) Execute(ctx context.Context, m model.RequestModel, opts ...model.Override) (*http.Response, error) {
	return e.ExecuteWith(ctx, m, model.NewOverrides(opts...))
}

// ExecuteWith runs m. A pre-request or build error returns a nil response.
// A post-request error is returned together with the response it was
// evaluated against. Transport failures are never returned as errors.
func (e *Executor) ExecuteWith(ctx context.Context, m model.RequestModel, o *model.Overrides) (*http.Response, error) {
	log := e.log.With(zap.String("request", m.Label()))

	if err := e.run(log, "pre_request", m.PreRequest); err != nil {
		return nil, err
	}

	built, err := model.Build(m, e.env, o)
	if err != nil {
		return nil, err
	}
	if e.templating {
		built.Expand(e.resolver.Resolve)
	}
	if len(built.Unapplied) > 0 {
		keys := make([]string, 0, len(built.Unapplied))
		for k := range built.Unapplied {
			keys = append(keys, k)
		}
		log.Warn("api key with add_to=query is not applied", zap.Strings("keys", keys))
	}

	resp := e.send(ctx, log, built)

	e.opCtx.Request = built.Snapshot()
	e.opCtx.Headers = resp.Headers
	// Non-object bodies (lists, scalars, invalid JSON) are exposed as {}.
	e.opCtx.Response = resp.JSON()

	if err := e.run(log, "post_request", m.PostRequest); err != nil {
		return resp, err
	}
	return resp, nil
}

func (e *Executor) send(ctx context.Context, log *zap.Logger, b *model.Built) *http.Response {
	req := &http.Request{
		Method:  b.Method,
		URL:     b.URL,
		Params:  b.Params,
		Headers: b.Headers,
		Cookies: b.Cookies,
		Payload: b.Payload,
		Timeout: b.Timeout,
		BaseDir: e.baseDir,
	}

	log.Debug("sending request", zap.String("method", req.Method), zap.String("url", req.URL))
	resp, err := e.transport().Do(ctx, req)
	if err != nil {
		var te *http.TransportError
		if !errors.As(err, &te) {
			te = &http.TransportError{Op: "send", URL: req.URL, Err: err}
		}
		log.Warn("transport failure converted to status 0 response", zap.Error(te))
		return http.FailureResponse(te)
	}

	log.Debug("response received",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", resp.Duration),
	)
	return resp
}

func (e *Executor) run(log *zap.Logger, stage string, ops []operations.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	c, err := operations.Run(e.opCtx, ops, func(ev operations.Event) {
		fields := []zap.Field{
			zap.String("stage", stage),
			zap.Int("index", ev.Index),
			zap.String("op", operations.Label(ev.Op)),
			zap.String("type", string(ev.Op.Type())),
		}
		switch {
		case ev.Skipped:
			log.Debug("operation skipped", fields...)
		case ev.Err != nil:
			log.Debug("operation failed", append(fields, zap.Error(ev.Err))...)
		default:
			log.Debug("operation done", append(fields, zap.Duration("elapsed", ev.Elapsed))...)
		}
	})
	if c != nil {
		e.opCtx = c
	}
	return err
}

func (e *Executor) transport() http.Doer {
	if e.client == nil {
		e.client = http.NewClient(e.clientOpts...)
		e.ownsClient = true
	}
	return e.client
}

// Variable returns a context variable, or nil.
func (e *Executor) Variable(name string) any {
	v, _ := e.opCtx.Get(name)
	return v
}

func (e *Executor) SetVariable(name string, value any) {
	e.opCtx.Set(name, value)
}

// Context exposes the shared operation context.
func (e *Executor) Context() *operations.Context {
	return e.opCtx
}

// Resolver is the placeholder resolver used when templating is enabled.
func (e *Executor) Resolver() *env.Resolver {
	return e.resolver
}

// Close releases the client the executor created. A client supplied with
// WithTransport is left open. Close is idempotent.
func (e *Executor) Close() {
	if !e.ownsClient || e.client == nil {
		return
	}
	if c, ok := e.client.(*http.Client); ok {
		c.Close()
	}
	e.client = nil
}

func (e *Executor) lookupContext(name string) (any, bool) {
	return e.opCtx.Get(name)
}

func (e *Executor) lookupEnvironment(name string) (any, bool) {
	if e.env == nil {
		return nil, false
	}
	return e.env.Lookup(name)
}
