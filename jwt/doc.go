// Package jwt issues and verifies the access and refresh tokens handed out by
// authcore.
//
// Access and refresh tokens are signed with distinct HMAC secrets and carry a
// "typ" claim, so a token of one kind never verifies as the other. Every token
// gets a random jti; two tokens issued for the same account in the same second
// are still distinct strings, which the session ledger relies on.
//
// Duration specifications ("15m", "12h", "30d") are parsed strictly by
// ParseDurationSpec. Unknown units are an error rather than a silent default.
package jwt
