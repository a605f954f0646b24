// Package body describes request payload encodings.
//
// A Body is a closed set of variants:
//   - None: nothing is sent
//   - JSON: a JSON encoded object (application/json)
//   - Text: a raw string with its own content type
//   - XML: a raw string (application/xml)
//   - FormURLEncoded: url-encoded key/value pairs
//   - FormData: multipart fields and files (files are read at send time)
//
// Each variant has exactly one wire form, exposed through Payload.
package body
