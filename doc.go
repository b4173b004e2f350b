// Package goGuard protects credential-checking endpoints against brute-force
// guessing and throttles per-identity access to expensive operations.
//
// Both protections share one abstraction, an atomic increment-or-create
// counter with a TTL applied only at creation ([counter.Store]). Lockout state
// and rate limit windows live in that store, so every process pointed at the
// same backend enforces the same limits.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([LoginResult], [RateLimitDecision], [LockoutStatus]). Flow
// orchestration, identity normalization and the fixed-window limiter live
// under internal/ and are never exported. Store backends live in the counter
// package so callers can pick one without importing internals.
//
// # Login
//
// [Engine.Login] normalizes the identity, refuses locked identities without
// calling the [Verifier], records the outcome, and locks the identity for a
// full window when the failure threshold is reached. Policy outcomes are
// values; the error return is reserved for infrastructure faults.
//
// # Store outages
//
// [Config.Failure] holds the outage policy. Login fails open by default and
// marks the result Degraded; rate limit rules can opt into failing closed.
package goGuard
