// Package session implements the refresh-token ledger: the server-side record
// of which devices are logged in to an account.
//
// # Storage layout
//
// Every account owns one Redis hash:
//
//	<prefix>:<accountID>   field = SHA-256(refresh token)   value = <expiresAtMs>|<json>
//
// The expiry prefix lets Lua scripts check validity without decoding JSON. The
// hash key itself carries a TTL equal to the furthest session expiry, so an
// account with no live sessions leaves nothing behind.
//
// A session is valid only while its field exists and its expiry is in the
// future. Rotation (remove old field, insert new field) runs as a single Lua
// script.
//
// # What this package must NOT do
//
//   - Verify JWT signatures or know about account state.
//   - Store the refresh token itself; callers pass its digest.
package session
