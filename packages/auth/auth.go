// Package auth turns authentication settings into header mutations.
//
// Every variant exposes ApplyToHeaders, which returns a new header map and
// never mutates the caller's map.
package auth

import (
	"encoding/base64"
	"maps"
	"strings"
)

// Kind identifies an auth variant.
type Kind string

const (
	KindNone   Kind = "none"
	KindBearer Kind = "bearer"
	KindAPIKey Kind = "apikey"
	KindBasic  Kind = "basic"
)

const (
	DefaultBearerPrefix = "Bearer"

	AddToHeader = "header"
	AddToQuery  = "query"

	HeaderAuthorization = "Authorization"
)

// Auth is implemented only by the variants in this package.
type Auth interface {
	Kind() Kind
	ApplyToHeaders(headers map[string]string) map[string]string
	isAuth()
}

type NoAuth struct{}

func (NoAuth) Kind() Kind { return KindNone }

func (NoAuth) ApplyToHeaders(headers map[string]string) map[string]string {
	return clone(headers)
}

func (NoAuth) isAuth() {}

type BearerAuth struct {
	Token string
	// Prefix defaults to "Bearer" when empty.
	Prefix string
}

func (BearerAuth) Kind() Kind { return KindBearer }

func (a BearerAuth) ApplyToHeaders(headers map[string]string) map[string]string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = DefaultBearerPrefix
	}
	out := clone(headers)
	SetHeader(out, HeaderAuthorization, prefix+" "+a.Token)
	return out
}

func (BearerAuth) isAuth() {}

// APIKeyAuth sets a header named Key when AddTo is "header" (the default).
// With AddTo "query" the headers are returned unchanged; see QueryParams.
type APIKeyAuth struct {
	Key   string
	Value string
	AddTo string
}

func (APIKeyAuth) Kind() Kind { return KindAPIKey }

func (a APIKeyAuth) ApplyToHeaders(headers map[string]string) map[string]string {
	out := clone(headers)
	if a.addTo() == AddToHeader {
		SetHeader(out, a.Key, a.Value)
	}
	return out
}

func (a APIKeyAuth) addTo() string {
	if a.AddTo == "" {
		return AddToHeader
	}
	return a.AddTo
}

func (APIKeyAuth) isAuth() {}

type BasicAuth struct {
	Username string
	Password string
}

func (BasicAuth) Kind() Kind { return KindBasic }

func (a BasicAuth) ApplyToHeaders(headers map[string]string) map[string]string {
	creds := a.Username + ":" + a.Password
	out := clone(headers)
	SetHeader(out, HeaderAuthorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	return out
}

func (BasicAuth) isAuth() {}

func None() Auth { return NoAuth{} }

func Bearer(token string) Auth { return BearerAuth{Token: token, Prefix: DefaultBearerPrefix} }

func APIKey(key, value, addTo string) Auth {
	return APIKeyAuth{Key: key, Value: value, AddTo: addTo}
}

func Basic(username, password string) Auth {
	return BasicAuth{Username: username, Password: password}
}

// OrNone returns a, or NoAuth when a is nil.
func OrNone(a Auth) Auth {
	if a == nil {
		return NoAuth{}
	}
	return a
}

// QueryParams reports credentials the header mutation could not apply.
// Only an APIKeyAuth with AddTo "query" produces any; the request builder
// surfaces them to the caller instead of injecting them.
func QueryParams(a Auth) map[string]string {
	if k, ok := a.(APIKeyAuth); ok && k.addTo() == AddToQuery {
		return map[string]string{k.Key: k.Value}
	}
	return nil
}

func clone(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	maps.Copy(out, headers)
	return out
}

// SetHeader sets name to value, first removing any key that differs from
// name only by case.
func SetHeader(headers map[string]string, name, value string) {
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}
	headers[name] = value
}
