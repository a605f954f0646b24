package env

import (
	"fmt"
	"maps"
	"os"
	"sort"
	"strings"
	"sync"
)

// Conventional environment names.
const (
	Test       = "test"
	Staging    = "staging"
	Production = "prod"
)

type Environment struct {
	Name      string
	URLPrefix string
	Variables map[string]any
}

// Registry maps environment names to environments and tracks the current
// one. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	envs    map[string]*Environment
	current string
}

// NewRegistry registers envs and makes "test" current.
func NewRegistry(envs ...*Environment) *Registry {
	r := &Registry{
		envs:    make(map[string]*Environment),
		current: Test,
	}
	for _, e := range envs {
		r.Register(e)
	}
	return r
}

// Register adds env, replacing any environment with the same name.
func (r *Registry) Register(env *Environment) {
	if env == nil {
		return
	}
	cp := &Environment{
		Name:      env.Name,
		URLPrefix: env.URLPrefix,
		Variables: make(map[string]any, len(env.Variables)),
	}
	maps.Copy(cp.Variables, env.Variables)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs[env.Name] = cp
}

// Switch makes name current. Unregistered names are rejected.
func (r *Registry) Switch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.envs[name]; !ok {
		return fmt.Errorf("environment %q is not registered (available: %s)", name, strings.Join(r.namesLocked(), ", "))
	}
	r.current = name
	return nil
}

// Current returns a copy of the current environment, or nil.
func (r *Registry) Current() *Environment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.envs[r.current]
	if !ok {
		return nil
	}
	cp := *e
	cp.Variables = maps.Clone(e.Variables)
	return &cp
}

func (r *Registry) CurrentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// ResolvePrefix returns the current URL prefix, or "" when no environment
// is current.
func (r *Registry) ResolvePrefix() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.envs[r.current]; ok {
		return e.URLPrefix
	}
	return ""
}

// ResolveVariable returns a current environment variable as a string, or def.
func (r *Registry) ResolveVariable(name, def string) string {
	v, ok := r.Lookup(name)
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// Lookup reads a variable of the current environment.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.envs[r.current]
	if !ok {
		return nil, false
	}
	v, ok := e.Variables[name]
	return v, ok
}

// SetVariables merges vars into the named environment, creating it when
// missing.
func (r *Registry) SetVariables(name string, vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.envs[name]
	if !ok {
		e = &Environment{Name: name, Variables: make(map[string]any, len(vars))}
		r.envs[name] = e
	}
	if e.Variables == nil {
		e.Variables = make(map[string]any, len(vars))
	}
	maps.Copy(e.Variables, vars)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.envs))
	for name := range r.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeVariables merges sources left to right; later keys win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		maps.Copy(result, src)
	}
	return result
}

// LoadSystemEnv returns process environment variables whose names start
// with prefix, keyed by the remainder of the name.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
