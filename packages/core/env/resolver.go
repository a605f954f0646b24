package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/tuner/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Lookup returns the value bound to name.
type Lookup func(name string) (any, bool)

// Resolver expands {{...}} placeholders. Plain names are tried against each
// lookup in order and then against the resolver's own variables.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	lookups   []Lookup
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver(lookups ...Lookup) *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		lookups:   lookups,
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

// Funcs exposes the builtin registry so callers can register functions.
func (r *Resolver) Funcs() *builtin.Registry {
	return r.funcs
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// GetVariable looks name up the same way Resolve does for plain names.
func (r *Resolver) GetVariable(name string) (any, bool) {
	for _, l := range r.lookups {
		if v, ok := l(name); ok {
			return v, true
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		val, err := r.evaluate(expr)
		if err != nil {
			r.warn("%v", err)
			return match
		}
		return val
	})
}

// evaluate resolves one placeholder expression: $NAME reads the process
// environment, name(args) calls a builtin, anything else is a variable.
func (r *Resolver) evaluate(expr string) (string, error) {
	switch {
	case strings.HasPrefix(expr, "$"):
		if val, ok := os.LookupEnv(expr[1:]); ok {
			return val, nil
		}
		return "", fmt.Errorf("unresolved environment variable: %s", expr)
	case builtin.IsCall(expr):
		result, err := r.funcs.Call(expr)
		if err != nil {
			return "", fmt.Errorf("unresolved function call %s: %w", expr, err)
		}
		return fmt.Sprintf("%v", result), nil
	}
	if val, ok := r.GetVariable(expr); ok {
		return formatValue(val), nil
	}
	return "", fmt.Errorf("unresolved variable: %s", expr)
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// Unresolved lists placeholder expressions in input that would stay
// verbatim after Resolve.
func (r *Resolver) Unresolved(input string) []string {
	var out []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, err := r.evaluate(expr); err != nil {
			out = append(out, expr)
		}
	}
	return out
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
