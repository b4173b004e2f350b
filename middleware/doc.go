// Package middleware adapts the goGuard engine to net/http.
//
//   - [Authenticate] verifies the bearer session token and stores its claims.
//   - [RateLimit] counts each request against a named engine rule and answers
//     429 with Retry-After when the window is exhausted.
//
// The package makes no policy decisions of its own; it translates engine
// results into HTTP status codes and JSON bodies.
package middleware
