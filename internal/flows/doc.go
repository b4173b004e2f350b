// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRateLimit, RunStatus, RunUnlock) accepts a
// typed dependency struct and returns results without side-effects beyond those
// dependencies. This keeps the Engine type thin and lets tests drive every
// branch with plain function fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the attempt tracker, rate limiter,
// credential verifier, audit dispatcher, and metrics. They do NOT own any of
// these resources; ownership stays with the Engine.
//
// Store writes run on a context detached from the caller's cancellation and
// bounded by the configured operation timeout.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
