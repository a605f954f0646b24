// Package operations implements the steps that run before and after a
// request: variable injection, extraction, assertions, waits and the SQL
// placeholders.
//
// Operations are value types. Each one reads and writes a shared *Context,
// and Run folds a list of them over that context in declaration order,
// skipping disabled entries and stopping at the first error. Mutations made
// before a failure are kept.
package operations
