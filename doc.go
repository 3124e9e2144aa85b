// Package phoneverify proves control of a phone number with one-time codes.
//
// An [Engine] runs three operations. [Engine.Start] finds or creates the
// phone's active attempt and sends its code. [Engine.Check] validates a code
// against one attempt by id. [Engine.Status] reads an attempt.
//
// Each phone owns a versioned chain of attempts in a [Store]. The codes are
// HOTP values of the attempt secret with the version as counter. The store's
// pointer row is the only serialization point, so Engine instances are
// stateless and safe to call from many goroutines after [Builder.Build].
//
// # What this package must NOT do
//
//   - Hold cross-call state besides metrics counters and the audit queue.
//   - Retry store conflicts, except the single re-read after losing the
//     initial insert or the next-version advance.
//   - Import a SQL driver. The PostgreSQL store lives in package pgstore.
package phoneverify
