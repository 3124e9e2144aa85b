// Package rate holds the sliding-window rate limit predicate applied to a
// phone's recent verification attempts.
//
// # Window semantics
//
// An attempt counts when its creation time is at or after now-Window. The
// limit is exceeded once the count reaches Limit. State lives entirely in the
// caller's attempt history; this package keeps none.
//
// # What this package must NOT do
//
//   - Query storage. Callers fetch the history.
//   - Hardcode policy values.
package rate
