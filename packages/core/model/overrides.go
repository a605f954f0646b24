package model

import (
	"maps"

	"github.com/abdul-hamid-achik/tuner/packages/body"
)

// Overrides are the per-call adjustments applied on top of a RequestModel.
type Overrides struct {
	PathParams   map[string]any
	ExtraParams  map[string]any
	ExtraHeaders map[string]string
	// UpdateBody is deep-merged into a JSON body; ignored for other bodies.
	UpdateBody map[string]any
	// OverrideBody replaces the model body and wins over UpdateBody.
	OverrideBody body.Body
}

// Override is a functional option for building Overrides.
type Override func(*Overrides)

func NewOverrides(opts ...Override) *Overrides {
	o := &Overrides{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithPathParam sets a single {name} substitution.
func WithPathParam(name string, value any) Override {
	return func(o *Overrides) {
		if o.PathParams == nil {
			o.PathParams = make(map[string]any)
		}
		o.PathParams[name] = value
	}
}

func WithPathParams(params map[string]any) Override {
	return func(o *Overrides) {
		if o.PathParams == nil {
			o.PathParams = make(map[string]any, len(params))
		}
		maps.Copy(o.PathParams, params)
	}
}

func WithParams(params map[string]any) Override {
	return func(o *Overrides) {
		if o.ExtraParams == nil {
			o.ExtraParams = make(map[string]any, len(params))
		}
		maps.Copy(o.ExtraParams, params)
	}
}

func WithHeaders(headers map[string]string) Override {
	return func(o *Overrides) {
		if o.ExtraHeaders == nil {
			o.ExtraHeaders = make(map[string]string, len(headers))
		}
		maps.Copy(o.ExtraHeaders, headers)
	}
}

func WithUpdateBody(patch map[string]any) Override {
	return func(o *Overrides) {
		o.UpdateBody = patch
	}
}

func WithBody(b body.Body) Override {
	return func(o *Overrides) {
		o.OverrideBody = b
	}
}
