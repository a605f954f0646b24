package model

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/auth"
	"github.com/abdul-hamid-achik/tuner/packages/body"
	"github.com/abdul-hamid-achik/tuner/packages/core/errs"
	"github.com/mohae/deepcopy"
)

const HeaderContentType = "Content-Type"

// Any single-braced name is a path parameter, whatever characters it uses.
var pathParamPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// Built is a fully merged request, ready for the transport.
type Built struct {
	Method  string
	URL     string
	Params  map[string]any
	Headers map[string]string
	Cookies map[string]string
	Body    body.Body
	Payload body.Payload
	Timeout time.Duration
	// Unapplied holds auth credentials that could not be expressed as
	// headers (API keys destined for the query string). They are reported,
	// not sent.
	Unapplied map[string]string
}

// Build merges m with o. env may be nil, in which case only m.URLPrefix is
// used. The only error is a missing path parameter.
func Build(m RequestModel, env PrefixResolver, o *Overrides) (*Built, error) {
	if o == nil {
		o = &Overrides{}
	}

	prefix := m.URLPrefix
	if prefix == "" && env != nil {
		prefix = env.ResolvePrefix()
	}
	path, err := SubstitutePath(m.URL, o.PathParams)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(m.Params)+len(o.ExtraParams))
	maps.Copy(params, m.Params)
	maps.Copy(params, o.ExtraParams)

	a := auth.OrNone(m.Auth)
	headers := a.ApplyToHeaders(m.Headers)
	for k, v := range o.ExtraHeaders {
		auth.SetHeader(headers, k, v)
	}

	b := ResolveBody(m.Body, o)
	payload := b.Payload()
	if payload.ContentType != "" && !HasHeader(headers, HeaderContentType) {
		headers[HeaderContentType] = payload.ContentType
	}

	cookies := make(map[string]string, len(m.Cookies))
	maps.Copy(cookies, m.Cookies)

	return &Built{
		Method:    m.EffectiveMethod(),
		URL:       prefix + path,
		Params:    params,
		Headers:   headers,
		Cookies:   cookies,
		Body:      b,
		Payload:   payload,
		Timeout:   m.Timeout,
		Unapplied: auth.QueryParams(a),
	}, nil
}

// SubstitutePath replaces every {name} in tmpl with params[name]. Values
// are inserted as is, without escaping. Double-braced {{name}} template
// placeholders are left alone.
func SubstitutePath(tmpl string, params map[string]any) (string, error) {
	var (
		sb      strings.Builder
		missing []string
		last    int
	)
	for _, loc := range pathParamLocations(tmpl) {
		name := tmpl[loc[2]:loc[3]]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		sb.WriteString(tmpl[last:loc[0]])
		sb.WriteString(fmt.Sprint(v))
		last = loc[1]
	}
	if len(missing) > 0 {
		return "", errs.Configf(errs.KindPathSubstitution, "missing path parameter(s) %s in %q",
			strings.Join(missing, ", "), tmpl)
	}
	sb.WriteString(tmpl[last:])
	return sb.String(), nil
}

// PathParams lists the placeholder names used by tmpl in order.
func PathParams(tmpl string) []string {
	var names []string
	for _, loc := range pathParamLocations(tmpl) {
		names = append(names, tmpl[loc[2]:loc[3]])
	}
	return names
}

func pathParamLocations(tmpl string) [][]int {
	var out [][]int
	for _, loc := range pathParamPattern.FindAllStringSubmatchIndex(tmpl, -1) {
		if loc[0] > 0 && tmpl[loc[0]-1] == '{' {
			continue
		}
		if loc[1] < len(tmpl) && tmpl[loc[1]] == '}' {
			continue
		}
		out = append(out, loc)
	}
	return out
}

// ResolveBody picks the effective body: the override if present, else the
// model body with UpdateBody merged in when it is JSON.
func ResolveBody(modelBody body.Body, o *Overrides) body.Body {
	if o != nil && o.OverrideBody != nil {
		return o.OverrideBody
	}
	b := body.OrNone(modelBody)
	if o == nil || o.UpdateBody == nil {
		return b
	}
	if jb, ok := b.(body.JSONBody); ok {
		return body.JSONBody{Data: MergeJSON(jb.Data, o.UpdateBody)}
	}
	return b
}

// MergeJSON returns a deep copy of base with patch merged in. Nested maps
// merge key by key; any other value, lists included, replaces the old one.
func MergeJSON(base, patch map[string]any) map[string]any {
	out, _ := deepcopy.Copy(base).(map[string]any)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	mergeInto(out, patch)
	return out
}

func mergeInto(dst, patch map[string]any) {
	for k, v := range patch {
		pv, ok := v.(map[string]any)
		if !ok {
			dst[k] = deepcopy.Copy(v)
			continue
		}
		if dv, ok := dst[k].(map[string]any); ok {
			mergeInto(dv, pv)
			continue
		}
		dst[k] = deepcopy.Copy(pv)
	}
}

// HasHeader reports whether headers defines name, ignoring case.
func HasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Snapshot renders the request as a plain map for the operation context.
func (b *Built) Snapshot() map[string]any {
	headers := make(map[string]any, len(b.Headers))
	for k, v := range b.Headers {
		headers[k] = v
	}
	cookies := make(map[string]any, len(b.Cookies))
	for k, v := range b.Cookies {
		cookies[k] = v
	}
	params := make(map[string]any, len(b.Params))
	maps.Copy(params, b.Params)

	snap := map[string]any{
		"method":  b.Method,
		"url":     b.URL,
		"params":  params,
		"headers": headers,
		"cookies": cookies,
	}
	switch {
	case b.Payload.JSON != nil:
		snap["body"] = deepcopy.Copy(b.Payload.JSON)
	case b.Payload.Raw != nil:
		snap["body"] = string(b.Payload.Raw)
	case b.Payload.Form != nil:
		form := make(map[string]any, len(b.Payload.Form))
		for k, v := range b.Payload.Form {
			form[k] = v
		}
		snap["body"] = form
	case b.Payload.Multipart != nil:
		snap["body"] = map[string]any{
			"fields": deepcopy.Copy(b.Payload.Multipart.Fields),
			"files":  deepcopy.Copy(b.Payload.Multipart.Files),
		}
	default:
		snap["body"] = nil
	}
	return snap
}
