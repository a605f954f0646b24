package operations

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/assertions"
	"github.com/abdul-hamid-achik/tuner/packages/capture"
	"github.com/abdul-hamid-achik/tuner/packages/core/errs"
)

type Type string

const (
	TypeSetVariable     Type = "set_var"
	TypeExtractVariable Type = "extract"
	TypeAssert          Type = "assert"
	TypeWait            Type = "wait"
	TypeSQLQuery        Type = "sql_query"
	TypeSQLExecute      Type = "sql_execute"
)

// Operation is implemented only by the types in this package.
type Operation interface {
	Type() Type
	Info() Meta
	Enabled() bool
	Execute(c *Context) (*Context, error)
	isOperation()
}

// Meta is embedded by every operation. The zero value is enabled.
type Meta struct {
	Name     string
	Disabled bool
}

func (m Meta) Info() Meta { return m }

func (m Meta) Enabled() bool { return !m.Disabled }

// Label returns the operation name or its type when unnamed.
func Label(op Operation) string {
	if name := op.Info().Name; name != "" {
		return name
	}
	return string(op.Type())
}

type SetVariable struct {
	Meta
	VariableName string
	Value        any
}

func (SetVariable) Type() Type { return TypeSetVariable }

func (o SetVariable) Execute(c *Context) (*Context, error) {
	c.Set(o.VariableName, o.Value)
	return c, nil
}

func (SetVariable) isOperation() {}

// ExtractVariable stores the value at JSONPath under VariableName. A miss
// stores nil.
type ExtractVariable struct {
	Meta
	// Source defaults to response.
	Source       capture.Source
	JSONPath     string
	VariableName string
}

func (ExtractVariable) Type() Type { return TypeExtractVariable }

func (o ExtractVariable) Execute(c *Context) (*Context, error) {
	c.Set(o.VariableName, lookup(c, o.Source, o.JSONPath, ""))
	return c, nil
}

func (ExtractVariable) isOperation() {}

// Assert compares an actual value with Expected. With the response, request
// or header source the actual value is read at JSONPath; with the variable
// source it is the variable VariableName, narrowed by JSONPath when set.
type Assert struct {
	Meta
	Source       capture.Source
	JSONPath     string
	VariableName string
	// Operator defaults to eq.
	Operator assertions.Operator
	Expected any
	Message  string
}

func (Assert) Type() Type { return TypeAssert }

func (o Assert) Execute(c *Context) (*Context, error) {
	op := o.Operator
	if op == "" {
		op = assertions.OpEq
	}
	if err := op.Validate(); err != nil {
		return c, err
	}

	actual := lookup(c, o.Source, o.JSONPath, o.VariableName)
	result, err := c.evaluator().Evaluate(actual, op, o.Expected)
	if err != nil {
		return c, err
	}
	if result.Passed {
		return c, nil
	}

	msg := o.Message
	if msg == "" {
		msg = fmt.Sprintf("assert failed: %v %s %v", actual, op, o.Expected)
	}
	return c, &errs.AssertionError{
		Message:  msg,
		Actual:   actual,
		Operator: string(op),
		Expected: o.Expected,
	}
}

func (Assert) isOperation() {}

// Wait blocks the calling goroutine for Duration.
type Wait struct {
	Meta
	Duration time.Duration
}

func (Wait) Type() Type { return TypeWait }

func (o Wait) Execute(c *Context) (*Context, error) {
	if o.Duration < 0 {
		return c, errs.Configf(errs.KindNegativeWait, "wait duration must not be negative: %s", o.Duration)
	}
	time.Sleep(o.Duration)
	return c, nil
}

func (Wait) isOperation() {}

// SQLQuery is a placeholder until a database collaborator exists: it stores
// an empty result list under ResultVariable.
type SQLQuery struct {
	Meta
	SQL            string
	Params         []any
	ResultVariable string
}

func (SQLQuery) Type() Type { return TypeSQLQuery }

func (o SQLQuery) Execute(c *Context) (*Context, error) {
	c.Set(o.ResultVariable, []any{})
	return c, nil
}

func (SQLQuery) isOperation() {}

// SQLExecute is a placeholder and does nothing.
type SQLExecute struct {
	Meta
	SQL    string
	Params []any
}

func (SQLExecute) Type() Type { return TypeSQLExecute }

func (o SQLExecute) Execute(c *Context) (*Context, error) {
	return c, nil
}

func (SQLExecute) isOperation() {}

func lookup(c *Context, source capture.Source, path, variable string) any {
	switch source {
	case capture.SourceResponse, "":
		if len(c.Response) == 0 || path == "" {
			return nil
		}
		return capture.Extract(c.Response, path)
	case capture.SourceRequest:
		if c.Request == nil || path == "" {
			return nil
		}
		return capture.Extract(c.Request, path)
	case capture.SourceHeader:
		return capture.ExtractHeader(c.Headers, path)
	case capture.SourceVariable:
		if variable == "" {
			if path == "" {
				return nil
			}
			return capture.Extract(c.Variables, path)
		}
		v, _ := c.Get(variable)
		if path != "" {
			return capture.Extract(v, path)
		}
		return v
	}
	return nil
}
