// Package http is the transport used by the executor.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts, redirects, proxy and TLS verification
//   - Query parameter, cookie and body encoding from a body.Payload
//   - Multipart form data where missing files are skipped
//   - Normalized responses with a decoded JSON body
//
// Every failure to produce a response is returned as a *TransportError.
package http
