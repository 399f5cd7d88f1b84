// Package internal contains helpers private to authcore: opaque token and API
// key generation plus SHA-256 digests.
//
// # Sub-packages
//
//   - flows: pure-function orchestration for refresh rotation and API key validation
//   - rate: Redis-backed fixed-window counters
//   - config: process configuration loaded through viper
//   - telemetry: OpenTelemetry provider setup
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Persist plaintext secrets; callers store Digest output only.
package internal
