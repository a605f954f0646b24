package operations

import (
	"maps"

	"github.com/abdul-hamid-achik/tuner/packages/assertions"
)

// Context is the mutable state shared by the operations of one executor.
type Context struct {
	Variables map[string]any
	// Request is a snapshot of the last request sent: method, url, params,
	// headers, cookies and body.
	Request map[string]any
	// Response is the last response body when it decoded to a JSON object,
	// otherwise an empty map. Nil until the first response.
	Response map[string]any
	// Headers are the last response headers.
	Headers map[string]string

	// Evaluator runs assert predicates; nil uses the package default.
	Evaluator *assertions.Evaluator
}

func NewContext() *Context {
	return &Context{Variables: make(map[string]any)}
}

func (c *Context) Get(name string) (any, bool) {
	if c == nil || c.Variables == nil {
		return nil, false
	}
	v, ok := c.Variables[name]
	return v, ok
}

func (c *Context) Set(name string, value any) {
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}
	c.Variables[name] = value
}

// Vars returns a shallow copy of the variables.
func (c *Context) Vars() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(c.Variables))
	maps.Copy(out, c.Variables)
	return out
}

func (c *Context) evaluator() *assertions.Evaluator {
	if c.Evaluator == nil {
		return assertions.NewEvaluator()
	}
	return c.Evaluator
}
