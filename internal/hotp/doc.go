// Package hotp derives and checks counter-based one-time codes (RFC 4226).
//
// Codes are a pure function of (secret, counter). The verification version is
// used as the counter, so every attempt in a phone's chain gets its own code
// even if two attempts were to share a secret.
//
// # What this package must NOT do
//
//   - Touch storage or the network.
//   - Treat a malformed candidate as an error. It is a non-match.
package hotp
