// Package assertions evaluates named binary predicates.
//
// Operators:
//   - eq, ne: equality with numeric normalization (1 == 1.0)
//   - gt, lt, gte, lte: ordering of numbers or of strings
//   - contains, not_contains: substring, list membership or map key
//   - exists, not_exists: nil checks
//   - is_empty, not_empty: length checks where nil counts as empty
//   - matches: regular expression against the value's string form
//   - schema: JSON Schema validation (inline object, inline JSON or file path)
//
// An unknown operator or an unusable operand (bad regex, unreadable schema)
// is a configuration error. A predicate that evaluates false is not an error.
package assertions
