// Package executor runs RequestModels.
//
// One Execute call goes through, strictly in order:
//  1. pre-request operations against the shared context
//  2. the merge engine (prefix, path params, params, headers, body)
//  3. the transport call; failures become a zero-status response
//  4. context update (request snapshot, response body and headers)
//  5. post-request operations
//
// An Executor owns one operations.Context for its whole lifetime, so
// variables extracted by one call are visible to the next. Executors are
// not safe for concurrent use; build one per sequence of calls.
package executor
