package model

import (
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/auth"
	"github.com/abdul-hamid-achik/tuner/packages/body"
	"github.com/abdul-hamid-achik/tuner/packages/operations"
)

const DefaultMethod = http.MethodGet

// RequestModel describes one HTTP call. Treat it as immutable once built.
type RequestModel struct {
	Name        string
	Description string
	// Method defaults to GET.
	Method string
	// URL is the path template, e.g. /users/{id}.
	URL string
	// URLPrefix overrides the environment prefix when set.
	URLPrefix string
	Params    map[string]any
	Body      body.Body
	Headers   map[string]string
	Cookies   map[string]string
	Auth      auth.Auth

	PreRequest  []operations.Operation
	PostRequest []operations.Operation

	// Timeout bounds the transport call. Zero leaves it to the transport's
	// own default.
	Timeout time.Duration
}

func (m RequestModel) EffectiveMethod() string {
	if m.Method == "" {
		return DefaultMethod
	}
	return strings.ToUpper(m.Method)
}

// Label returns the model name, falling back to "METHOD url".
func (m RequestModel) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.EffectiveMethod() + " " + m.URL
}

// PrefixResolver supplies the URL prefix of the active environment.
type PrefixResolver interface {
	ResolvePrefix() string
}
