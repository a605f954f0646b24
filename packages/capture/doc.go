// Package capture resolves JSONPath-like expressions against decoded JSON.
//
// Supported syntax is intentionally small:
//   - $.a.b.c walks object keys
//   - $.items[0].id and $.items.0.id index into arrays
//   - $. alone returns the whole value
//
// A path that does not resolve yields nil. Callers that need to tell a
// missing value apart from an explicit JSON null should inspect the source
// directly.
package capture
