// Package rate implements the fixed-window request guard over a counter.Store.
//
// # Window semantics
//
// One IncrementOrCreate per request: the first hit creates the window with its
// TTL, later hits count against it. Requests past the limit are rejected until
// the window expires; the window never slides and success never resets it.
//
// Keys are "<prefix>:<operation>:<identity>".
//
// # What this package must NOT do
//
//   - Apply failure policy. Store errors are returned to the flow layer.
//   - Be imported outside the goGuard module.
package rate
