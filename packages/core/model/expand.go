package model

import "github.com/abdul-hamid-achik/tuner/packages/body"

// Expand rewrites the URL, string params, header values and body strings
// with fn. JSON bodies are copied before rewriting so the model that
// produced b is left untouched.
func (b *Built) Expand(fn func(string) string) {
	b.URL = fn(b.URL)

	params := make(map[string]any, len(b.Params))
	for k, v := range b.Params {
		params[k] = expandValue(v, fn)
	}
	b.Params = params

	headers := make(map[string]string, len(b.Headers))
	for k, v := range b.Headers {
		headers[k] = fn(v)
	}
	b.Headers = headers

	switch {
	case b.Payload.JSON != nil:
		data, _ := expandValue(b.Payload.JSON, fn).(map[string]any)
		b.Payload.JSON = data
		b.Body = body.JSONBody{Data: data}
	case b.Payload.Raw != nil:
		b.Payload.Raw = []byte(fn(string(b.Payload.Raw)))
	case b.Payload.Form != nil:
		form := make(map[string]string, len(b.Payload.Form))
		for k, v := range b.Payload.Form {
			form[k] = fn(v)
		}
		b.Payload.Form = form
	}
}

func expandValue(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		return fn(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = expandValue(item, fn)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = expandValue(item, fn)
		}
		return out
	}
	return v
}
