package operations

import (
	"testing"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/assertions"
	"github.com/abdul-hamid-achik/tuner/packages/capture"
	"github.com/abdul-hamid-achik/tuner/packages/core/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responseContext() *Context {
	c := NewContext()
	c.Response = map[string]any{
		"code": float64(0),
		"data": map[string]any{
			"user":  map[string]any{"id": float64(123), "name": "John"},
			"items": []any{map[string]any{"id": float64(1)}, map[string]any{"id": float64(2)}},
		},
	}
	c.Headers = map[string]string{"Content-Type": "application/json"}
	c.Request = map[string]any{"method": "GET", "params": map[string]any{"page": 2}}
	return c
}

func TestSetVariable(t *testing.T) {
	c, err := SetVariable{VariableName: "token", Value: "abc"}.Execute(NewContext())
	require.NoError(t, err)

	v, ok := c.Get("token")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestExtractVariable(t *testing.T) {
	tests := []struct {
		name     string
		op       ExtractVariable
		expected any
	}{
		{"nested", ExtractVariable{JSONPath: "$.data.user.id", VariableName: "v"}, float64(123)},
		{"array index", ExtractVariable{JSONPath: "$.data.items[1].id", VariableName: "v"}, float64(2)},
		{"missing path stores nil", ExtractVariable{JSONPath: "$.data.nope", VariableName: "v"}, nil},
		{"header source", ExtractVariable{Source: capture.SourceHeader, JSONPath: "$.content-type", VariableName: "v"}, "application/json"},
		{"request source", ExtractVariable{Source: capture.SourceRequest, JSONPath: "$.params.page", VariableName: "v"}, 2},
		{"unknown source", ExtractVariable{Source: "cookie", JSONPath: "$.x", VariableName: "v"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.op.Execute(responseContext())
			require.NoError(t, err)
			v, ok := c.Get("v")
			assert.True(t, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestExtractVariable_NoResponse(t *testing.T) {
	c, err := ExtractVariable{JSONPath: "$.id", VariableName: "id"}.Execute(NewContext())
	require.NoError(t, err)
	v, ok := c.Get("id")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestAssert_Passes(t *testing.T) {
	tests := []struct {
		name string
		op   Assert
	}{
		{"eq zero", Assert{JSONPath: "$.code", Operator: assertions.OpEq, Expected: 0}},
		{"default operator", Assert{JSONPath: "$.data.user.name", Expected: "John"}},
		{"gt", Assert{JSONPath: "$.data.user.id", Operator: assertions.OpGt, Expected: 100}},
		{"is_empty on missing", Assert{JSONPath: "$.data.missing", Operator: assertions.OpIsEmpty}},
		{"not_contains on missing", Assert{JSONPath: "$.data.missing", Operator: assertions.OpNotContains, Expected: "x"}},
		{"header", Assert{Source: capture.SourceHeader, JSONPath: "$.Content-Type", Operator: assertions.OpContains, Expected: "json"}},
		{"variable", Assert{Source: capture.SourceVariable, VariableName: "token", Expected: "abc"}},
		{"variable with path", Assert{Source: capture.SourceVariable, VariableName: "obj", JSONPath: "$.a", Expected: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := responseContext()
			c.Set("token", "abc")
			c.Set("obj", map[string]any{"a": 1})
			_, err := tt.op.Execute(c)
			assert.NoError(t, err)
		})
	}
}

func TestAssert_FailureCarriesMessage(t *testing.T) {
	_, err := Assert{JSONPath: "$.code", Operator: assertions.OpEq, Expected: 1, Message: "code must be 1"}.Execute(responseContext())
	require.Error(t, err)
	assert.True(t, errs.IsAssertion(err))
	assert.Equal(t, "code must be 1", err.Error())

	var assertErr *errs.AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, float64(0), assertErr.Actual)
	assert.Equal(t, 1, assertErr.Expected)
	assert.Equal(t, "eq", assertErr.Operator)
}

func TestAssert_DefaultMessage(t *testing.T) {
	_, err := Assert{JSONPath: "$.code", Operator: assertions.OpEq, Expected: 1}.Execute(responseContext())
	require.Error(t, err)
	assert.Equal(t, "assert failed: 0 eq 1", err.Error())
}

func TestAssert_ContainsOnNil(t *testing.T) {
	_, err := Assert{JSONPath: "$.missing", Operator: assertions.OpContains, Expected: "x"}.Execute(responseContext())
	require.Error(t, err)
	assert.True(t, errs.IsAssertion(err))
}

func TestAssert_EmptyResponseGivesNil(t *testing.T) {
	_, err := Assert{JSONPath: "$.id", Operator: assertions.OpNotExists}.Execute(NewContext())
	assert.NoError(t, err)
}

func TestAssert_UnknownOperator(t *testing.T) {
	_, err := Assert{JSONPath: "$.code", Operator: "approx", Expected: 0}.Execute(responseContext())
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.False(t, errs.IsAssertion(err))
}

func TestWait(t *testing.T) {
	start := time.Now()
	_, err := Wait{Duration: 20 * time.Millisecond}.Execute(NewContext())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	_, err = Wait{}.Execute(NewContext())
	assert.NoError(t, err)
}

func TestWait_Negative(t *testing.T) {
	_, err := Wait{Duration: -time.Second}.Execute(NewContext())
	require.Error(t, err)

	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, errs.KindNegativeWait, cfgErr.Kind)
}

func TestSQLPlaceholders(t *testing.T) {
	c, err := SQLQuery{SQL: "SELECT 1", ResultVariable: "rows"}.Execute(NewContext())
	require.NoError(t, err)
	v, _ := c.Get("rows")
	assert.Equal(t, []any{}, v)

	c, err = SQLExecute{SQL: "DELETE FROM t"}.Execute(c)
	require.NoError(t, err)
	assert.Len(t, c.Variables, 1)
}

func TestRun_SkipsDisabled(t *testing.T) {
	ops := []Operation{
		SetVariable{VariableName: "a", Value: 1},
		SetVariable{Meta: Meta{Name: "off", Disabled: true}, VariableName: "b", Value: 2},
		SetVariable{VariableName: "c", Value: 3},
	}

	var events []Event
	c, err := Run(NewContext(), ops, func(e Event) { events = append(events, e) })
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 1, "c": 3}, c.Variables)
	require.Len(t, events, 3)
	assert.True(t, events[1].Skipped)
	assert.Equal(t, "off", Label(events[1].Op))
	assert.Equal(t, "set_var", Label(events[0].Op))
}

func TestRun_FailFastWithoutRollback(t *testing.T) {
	ops := []Operation{
		SetVariable{VariableName: "before", Value: true},
		Assert{Source: capture.SourceVariable, VariableName: "before", Expected: false, Message: "boom"},
		SetVariable{VariableName: "after", Value: true},
	}

	c, err := Run(NewContext(), ops)
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())

	_, hasBefore := c.Get("before")
	_, hasAfter := c.Get("after")
	assert.True(t, hasBefore)
	assert.False(t, hasAfter)
}

func TestRun_DisabledFailingOperation(t *testing.T) {
	ops := []Operation{
		Wait{Meta: Meta{Disabled: true}, Duration: -time.Second},
		Assert{Meta: Meta{Disabled: true}, Operator: "bogus"},
	}
	_, err := Run(NewContext(), ops)
	assert.NoError(t, err)
}

func TestRun_NilContext(t *testing.T) {
	c, err := Run(nil, []Operation{SetVariable{VariableName: "x", Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Variables["x"])
}
