// Package verification defines the persisted verification attempt and the
// Redis implementation of the versioned verification store.
//
// # Layout
//
// Each phone owns a chain of attempts keyed by (phone, version). Version 0 is
// the pointer row holding "latest"; versions 1..latest are attempts. An id
// index maps every attempt id back to its (phone, version).
//
// Redis keys:
//   - {prefix}:v:{phone}:0        pointer hash, field "latest"
//   - {prefix}:v:{phone}:{n}      attempt hash
//   - {prefix}:id:{uuid}          id index hash (phone, version)
//
// # Concurrency
//
// The pointer row is the only serialization point. InsertInitialVersion and
// InsertNextVersion WATCH it and commit the pointer write together with the new
// attempt in one MULTI/EXEC, so exactly one of several concurrent writers can
// advance a chain. Attempt counters and the verified timestamp are updated by
// Lua scripts that refuse to touch missing rows.
//
// # What this package must NOT do
//
//   - Decide policy (expiry, attempt limits, rate limits). It stores facts.
//   - Retry on conflict. Callers re-read.
package verification
