// Package counter defines the shared TTL counter store that goGuard's attempt
// tracker and rate limiter are built on, plus the backends that implement it.
//
// # Contract
//
// Every backend provides one atomic primitive, IncrementOrCreate: create the key
// at delta with a TTL when it is absent (or expired), otherwise add delta and keep
// the existing TTL. Callers never compose Get and a write to emulate it.
//
// Expired records are absent for every method, whether or not the backend has
// physically evicted them yet. Backend failures are wrapped with [ErrUnavailable].
//
// # Backends
//
//   - [RedisStore]: Lua script over go-redis; the production default.
//   - [MemoryStore]: single process, injectable clock; used by tests.
//   - [BoltStore]: embedded bbolt file, one transaction per call.
//   - [SQLStore]: Postgres (pgx) or SQLite (modernc) via database/sql upserts.
//
// [BreakerStore] and [TracedStore] wrap any Store. [Sweeper] purges expired rows
// from backends that only expire lazily.
package counter
