// Package password hashes and verifies account passwords.
//
// Two algorithms are available behind the Hasher interface:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>   (Argon2)
//	$2a$<cost>$<salt+hash>                                           (Bcrypt)
//
// Chain hashes with its primary algorithm and verifies digests produced by any
// of its members, so accounts imported with bcrypt digests keep working and are
// reported by NeedsUpgrade until they log in again.
//
// # What this package must NOT do
//
//   - Enforce password policy (length, character classes). The Engine validates input.
//   - Log plaintext passwords.
package password
