// Package middleware exposes net/http adapters that put authcore.Engine in
// front of handlers.
//
// # Gates
//
//   - [Bearer] requires a valid access token.
//   - [Optional] attaches an identity when a valid access token is present.
//   - [APIKey] requires an X-API-Key header holding a key with a permission.
//   - [Flexible] accepts either, preferring the Bearer token.
//   - [RequireRole], [RequireVerified] and [ForbidSelf] run after a gate.
//
// Gates store the caller with authcore.WithIdentity (and
// authcore.WithAPIKeyInfo for keys); handlers read them back with
// authcore.IdentityFromContext.
//
// # Supporting middleware
//
//   - [ClientInfo] records the caller's IP, user agent and host on the context.
//   - [RateLimit] applies one of the Engine's fixed-window policies.
//   - [Trace] opens an OpenTelemetry server span per request.
//
// Failures are written with [Responder] as {"success":false,"error":...}.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Decide whether a credential is valid; only the Engine does that.
package middleware
