// Package authcore is the credential and session core of a multi-tenant web
// backend. It authenticates accounts by password or API key, issues and rotates
// JWT token pairs, and enforces account state (active, banned, verified, role)
// at request time.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// domain types ([Account], [APIKey], [ActivityEvent]) and the collaborator
// contracts ([AccountStore], [APIKeyStore], [ActivityStore], [Notifier]).
// Token signing lives in jwt, the refresh-token ledger in session, hashing in
// password, and flow orchestration plus rate counters under internal/.
//
// # What this package must NOT do
//
//   - Persist plaintext secrets. Passwords, verification tokens, reset tokens and
//     API keys are stored as digests only.
//   - Trust JWT claims for account state. Role, ban and active flags are re-read
//     from the AccountStore on every authenticated request.
//   - Let email or activity failures fail the surrounding operation.
package authcore
