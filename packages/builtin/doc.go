// Package builtin provides the functions available inside {{...}}
// placeholders when request templating is enabled.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(), date(layout): current UTC time
//   - timestamp(), timestampMs(): Unix time
//   - random(min, max), randomString(n), randomEmail()
//   - base64(s), base64Decode(s), md5(s), sha256(s)
//   - urlEncode(s), urlDecode(s)
//   - env(name): process environment lookup
//
// A call looks like {{uuid()}} or {{random(1, 10)}}.
package builtin
