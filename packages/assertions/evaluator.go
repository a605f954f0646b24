package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/tuner/packages/core/errs"
	tunerhttp "github.com/abdul-hamid-achik/tuner/packages/http"
	"github.com/xeipuuv/gojsonschema"
)

type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpGte         Operator = "gte"
	OpLte         Operator = "lte"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpIsEmpty     Operator = "is_empty"
	OpNotEmpty    Operator = "not_empty"
	OpMatches     Operator = "matches"
	OpSchema      Operator = "schema"
)

var operators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpLt: {}, OpGte: {}, OpLte: {},
	OpContains: {}, OpNotContains: {}, OpExists: {}, OpNotExists: {},
	OpIsEmpty: {}, OpNotEmpty: {}, OpMatches: {}, OpSchema: {},
}

func (o Operator) Valid() bool {
	_, ok := operators[o]
	return ok
}

// Validate returns a configuration error for unknown operators.
func (o Operator) Validate() error {
	if !o.Valid() {
		return errs.Configf(errs.KindUnknownOperator, "unsupported assert operator: %q", string(o))
	}
	return nil
}

// Operators lists every supported operator name.
func Operators() []Operator {
	return []Operator{
		OpEq, OpNe, OpGt, OpLt, OpGte, OpLte,
		OpContains, OpNotContains, OpExists, OpNotExists,
		OpIsEmpty, OpNotEmpty, OpMatches, OpSchema,
	}
}

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Operator Operator
}

type Evaluator struct {
	baseDir string // resolves relative schema file paths
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir sets the directory schema file paths are resolved against.
// Paths that escape it are rejected.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = NewEvaluator()

// Compare applies op with the default evaluator.
func Compare(actual any, op Operator, expected any) (bool, error) {
	r, err := defaultEvaluator.Evaluate(actual, op, expected)
	if err != nil {
		return false, err
	}
	return r.Passed, nil
}

// Evaluate applies op. The returned error is always a configuration error;
// a false predicate is reported through Result.Passed.
func (e *Evaluator) Evaluate(actual any, op Operator, expected any) (*Result, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	result := &Result{Operator: op, Expected: expected, Actual: actual}

	passed, msg, err := e.compare(actual, op, expected)
	if err != nil {
		return nil, err
	}
	result.Passed = passed
	result.Message = msg
	return result, nil
}

func (e *Evaluator) compare(actual any, op Operator, expected any) (bool, string, error) {
	switch op {
	case OpEq:
		passed, msg := equals(actual, expected)
		return passed, msg, nil
	case OpNe:
		if passed, _ := equals(actual, expected); passed {
			return false, fmt.Sprintf("expected not to equal %v", expected), nil
		}
		return true, "", nil
	case OpGt, OpLt, OpGte, OpLte:
		passed, msg := order(actual, expected, op)
		return passed, msg, nil
	case OpContains:
		passed, msg := contains(actual, expected)
		return passed, msg, nil
	case OpNotContains:
		if passed, _ := contains(actual, expected); passed {
			return false, fmt.Sprintf("expected '%v' not to contain '%v'", actual, expected), nil
		}
		return true, "", nil
	case OpExists:
		if actual == nil {
			return false, "expected to exist", nil
		}
		return true, "", nil
	case OpNotExists:
		if actual != nil {
			return false, "expected not to exist", nil
		}
		return true, "", nil
	case OpIsEmpty:
		if isEmpty(actual) {
			return true, "", nil
		}
		return false, fmt.Sprintf("expected %v to be empty", actual), nil
	case OpNotEmpty:
		if isEmpty(actual) {
			return false, "expected a non-empty value", nil
		}
		return true, "", nil
	case OpMatches:
		return matches(actual, expected)
	case OpSchema:
		return e.schema(actual, expected)
	}
	return false, "", errs.Configf(errs.KindUnknownOperator, "unsupported assert operator: %q", string(op))
}

// equals treats nil as equal only to nil and compares numbers by value
// regardless of their Go type. Strings are never coerced to numbers.
func equals(actual, expected any) (bool, string) {
	if actual == nil || expected == nil {
		if actual == nil && expected == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v, got %v", expected, actual)
	}

	a, aOk := toFloat64(actual)
	b, bOk := toFloat64(expected)
	if aOk && bOk {
		if a == b {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v, got %v", expected, actual)
	}

	if reflect.DeepEqual(normalize(actual), normalize(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func order(actual, expected any, op Operator) (bool, string) {
	var cmp int
	a, aOk := toFloat64(actual)
	b, bOk := toFloat64(expected)
	as, asOk := actual.(string)
	bs, bsOk := expected.(string)

	switch {
	case aOk && bOk:
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	case asOk && bsOk:
		cmp = strings.Compare(as, bs)
	default:
		return false, fmt.Sprintf("cannot compare %T with %T", actual, expected)
	}

	var passed bool
	switch op {
	case OpGt:
		passed = cmp > 0
	case OpLt:
		passed = cmp < 0
	case OpGte:
		passed = cmp >= 0
	case OpLte:
		passed = cmp <= 0
	}
	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

// contains is false for nil and for falsy values ("", 0, false, empty
// containers) whatever is expected.
func contains(actual, expected any) (bool, string) {
	fail := fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
	if isFalsy(actual) {
		return false, fail
	}

	switch v := actual.(type) {
	case string:
		s, ok := expected.(string)
		if ok && strings.Contains(v, s) {
			return true, ""
		}
	case []any:
		for _, item := range v {
			if ok, _ := equals(item, expected); ok {
				return true, ""
			}
		}
	case map[string]any:
		if key, ok := expected.(string); ok {
			if _, found := v[key]; found {
				return true, ""
			}
		}
	case map[string]string:
		if key, ok := expected.(string); ok {
			if _, found := v[key]; found {
				return true, ""
			}
		}
	default:
		rv := reflect.ValueOf(actual)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for i := 0; i < rv.Len(); i++ {
				if ok, _ := equals(rv.Index(i).Interface(), expected); ok {
					return true, ""
				}
			}
		}
	}
	return false, fail
}

func matches(actual, expected any) (bool, string, error) {
	pattern := fmt.Sprintf("%v", expected)
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, "", errs.Configf(errs.KindInvalidOperation, "invalid regex pattern %q: %v", pattern, err)
	}
	if actual == nil {
		return false, fmt.Sprintf("expected nil to match /%v/", pattern), nil
	}
	if re.MatchString(fmt.Sprintf("%v", actual)) {
		return true, "", nil
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern), nil
}

func (e *Evaluator) schema(actual, expected any) (bool, string, error) {
	loader, err := e.schemaLoader(expected)
	if err != nil {
		return false, "", err
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err), nil
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(actualJSON))
	if err != nil {
		return false, "", errs.Configf(errs.KindInvalidOperation, "schema validation error: %v", err)
	}
	if result.Valid() {
		return true, "", nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(problems, "; ")), nil
}

// schemaLoader accepts an inline schema object, an inline JSON document or
// a path to a schema file.
func (e *Evaluator) schemaLoader(expected any) (gojsonschema.JSONLoader, error) {
	switch v := expected.(type) {
	case map[string]any:
		return gojsonschema.NewGoLoader(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") {
			return gojsonschema.NewStringLoader(trimmed), nil
		}
		path := trimmed
		if !filepath.IsAbs(path) && e.baseDir != "" {
			path = filepath.Join(e.baseDir, path)
		}
		if err := tunerhttp.EnsureWithinBase(path, e.baseDir); err != nil {
			return nil, errs.Configf(errs.KindInvalidOperation, "%v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Configf(errs.KindInvalidOperation, "failed to read schema file: %v", err)
		}
		return gojsonschema.NewBytesLoader(data), nil
	default:
		return nil, errs.Configf(errs.KindInvalidOperation, "schema must be an object, JSON string or file path, got %T", expected)
	}
}
