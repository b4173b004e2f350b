// Package limiters holds the failed-login bookkeeping that the login flow is
// built on.
//
// # Pieces
//
//   - [AttemptTracker]: per-identity failure counter over a counter.Store.
//   - [LockoutPolicy] and [Evaluate]: pure lock decisions from a count.
//   - [NormalizeIdentity]: the canonical identity form used in every key.
//
// # Architecture boundaries
//
// The tracker owns the lockout key namespace. Policy thresholds come from the
// values supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling internal package.
//   - Compose Get with a write to emulate an increment. Every mutation is a
//     single store primitive.
//   - Decide consequences (audit, metrics, failure policy). Flow functions do.
package limiters
