// Package model defines RequestModel, the declarative description of one
// HTTP call, and the merge engine that reconciles it with per-call
// overrides.
//
// Build applies overrides in a fixed order:
//  1. URL: prefix (model or environment) + path with {name} placeholders substituted
//  2. Params: model params, then extra params (last writer wins)
//  3. Headers: model headers, then auth, then extra headers
//  4. Body: override body wholesale, else update body deep-merged into a JSON body
//  5. Content-Type: the body's default, only when no Content-Type header exists
//
// Models are never mutated by Build.
package model
