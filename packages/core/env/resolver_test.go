package env

import (
	"fmt"
	"reflect"
	"testing"
)

func TestResolverResolve(t *testing.T) {
	t.Setenv("TUNER_RESOLVER_HOST", "example.com")

	tests := []struct {
		name      string
		input     string
		variables map[string]any
		lookup    map[string]any
		expected  string
	}{
		{
			name:     "no variables",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "simple variable",
			input:     "hello {{name}}",
			variables: map[string]any{"name": "world"},
			expected:  "hello world",
		},
		{
			name:      "multiple variables",
			input:     "{{greeting}} {{ name }}!",
			variables: map[string]any{"greeting": "Hello", "name": "World"},
			expected:  "Hello World!",
		},
		{
			name:      "lookup wins over own variables",
			input:     "id={{id}}",
			variables: map[string]any{"id": "static"},
			lookup:    map[string]any{"id": float64(42)},
			expected:  "id=42",
		},
		{
			name:     "environment variable",
			input:    "https://{{$TUNER_RESOLVER_HOST}}/api",
			expected: "https://example.com/api",
		},
		{
			name:     "builtin call",
			input:    `{{base64("a:b")}}`,
			expected: "YTpi",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
		{
			name:     "unknown function stays as-is",
			input:    "{{nope()}}",
			expected: "{{nope()}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := func(name string) (any, bool) {
				v, ok := tt.lookup[name]
				return v, ok
			}
			r := NewResolver(lookup)
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}

			got := r.Resolve(tt.input)
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolverWarnings(t *testing.T) {
	r := NewResolver()
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{$TUNER_SURELY_UNSET_VAR}}")

	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
	if warnings[0] != "unresolved variable: missing" {
		t.Errorf("unexpected warning %q", warnings[0])
	}
}

func TestResolverUnresolved(t *testing.T) {
	r := NewResolver()
	r.SetVariable("known", 1)

	got := r.Unresolved("{{known}}/{{unknown}}/{{uuid()}}/{{nope()}}")
	want := []string{"unknown", "nope()"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unresolved() = %v, want %v", got, want)
	}
}

func TestResolverResolveAll(t *testing.T) {
	r := NewResolver()
	r.SetVariable("token", "abc")

	got := r.ResolveAll(map[string]string{"Authorization": "Bearer {{token}}"})
	if got["Authorization"] != "Bearer abc" {
		t.Errorf("ResolveAll() = %v", got)
	}
}
