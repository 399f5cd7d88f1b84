// Package rate provides Redis-backed fixed-window counters.
//
// # Window semantics
//
// INCR followed by EXPIRE on the first hit of a window. Keys look like
//
//	<prefix>:<policy>:<windowSeconds>:<subject>
//
// where policy is a caller-chosen name ("login", "general", "apikey") and
// subject is whatever the caller keys on: an IP, an email, an API key id.
//
// # What this package must NOT do
//
//   - Decide which subject a request is keyed by. Selection belongs to callers.
//   - Be imported outside the authcore module.
package rate
