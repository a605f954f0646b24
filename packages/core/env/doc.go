// Package env holds named environments and resolves {{...}} placeholders.
//
// A Registry is an explicit instance passed to whoever needs it; there is
// no process-wide state. Each Environment carries a URL prefix and a set
// of variables, and exactly one environment is current at a time.
//
// The Resolver expands {{name}}, {{func(args)}} and {{$ENV_VAR}}
// placeholders against a chain of lookups, builtin functions and the
// process environment. Unresolved placeholders are left as written.
package env
