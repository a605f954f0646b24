package body

// Kind identifies a body variant.
type Kind string

const (
	KindNone           Kind = "none"
	KindJSON           Kind = "json"
	KindText           Kind = "text"
	KindXML            Kind = "xml"
	KindFormURLEncoded Kind = "x-www-form-urlencoded"
	KindFormData       Kind = "form-data"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
	ContentTypeXML  = "application/xml"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Body is implemented only by the variants in this package.
type Body interface {
	Kind() Kind
	// Payload returns the wire form of the body and its default content type.
	Payload() Payload
	isBody()
}

// Payload is the serialized form of a Body. At most one of Raw, JSON, Form
// and Multipart is set.
type Payload struct {
	Raw       []byte
	JSON      map[string]any
	Form      map[string]string
	Multipart *Multipart
	// ContentType is applied only when the request headers do not define one.
	ContentType string
}

// Multipart holds form-data fields and file paths. Files that do not exist
// when the request is sent are silently omitted.
type Multipart struct {
	Fields map[string]any
	Files  map[string]string
}

// IsEmpty reports whether nothing is sent.
func (p Payload) IsEmpty() bool {
	return p.Raw == nil && p.JSON == nil && p.Form == nil && p.Multipart == nil
}

type NoneBody struct{}

func (NoneBody) Kind() Kind       { return KindNone }
func (NoneBody) Payload() Payload { return Payload{} }
func (NoneBody) isBody()          {}

type JSONBody struct {
	Data map[string]any
}

func (JSONBody) Kind() Kind { return KindJSON }

func (b JSONBody) Payload() Payload {
	data := b.Data
	if data == nil {
		data = map[string]any{}
	}
	return Payload{JSON: data, ContentType: ContentTypeJSON}
}

func (JSONBody) isBody() {}

type TextBody struct {
	Content     string
	ContentType string
}

func (TextBody) Kind() Kind { return KindText }

func (b TextBody) Payload() Payload {
	ct := b.ContentType
	if ct == "" {
		ct = ContentTypeText
	}
	return Payload{Raw: []byte(b.Content), ContentType: ct}
}

func (TextBody) isBody() {}

type XMLBody struct {
	Content string
}

func (XMLBody) Kind() Kind { return KindXML }

func (b XMLBody) Payload() Payload {
	return Payload{Raw: []byte(b.Content), ContentType: ContentTypeXML}
}

func (XMLBody) isBody() {}

type FormURLEncodedBody struct {
	Data map[string]string
}

func (FormURLEncodedBody) Kind() Kind { return KindFormURLEncoded }

func (b FormURLEncodedBody) Payload() Payload {
	data := b.Data
	if data == nil {
		data = map[string]string{}
	}
	return Payload{Form: data, ContentType: ContentTypeForm}
}

func (FormURLEncodedBody) isBody() {}

// FormDataBody has no default content type: the transport sets the
// multipart boundary.
type FormDataBody struct {
	Fields map[string]any
	Files  map[string]string
}

func (FormDataBody) Kind() Kind { return KindFormData }

func (b FormDataBody) Payload() Payload {
	return Payload{Multipart: &Multipart{Fields: b.Fields, Files: b.Files}}
}

func (FormDataBody) isBody() {}

func None() Body { return NoneBody{} }

func JSON(data map[string]any) Body { return JSONBody{Data: data} }

func Text(content, contentType string) Body {
	return TextBody{Content: content, ContentType: contentType}
}

func XML(content string) Body { return XMLBody{Content: content} }

func FormURLEncoded(data map[string]string) Body { return FormURLEncodedBody{Data: data} }

func FormData(fields map[string]any, files map[string]string) Body {
	return FormDataBody{Fields: fields, Files: files}
}

// OrNone returns b, or None when b is nil.
func OrNone(b Body) Body {
	if b == nil {
		return NoneBody{}
	}
	return b
}

// ParseKind maps a textual kind to a Kind. The boolean is false for unknown kinds.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindNone, KindJSON, KindText, KindXML, KindFormURLEncoded, KindFormData:
		return Kind(s), true
	case "":
		return KindNone, true
	case "form", "urlencoded":
		return KindFormURLEncoded, true
	case "multipart", "formdata":
		return KindFormData, true
	}
	return "", false
}
