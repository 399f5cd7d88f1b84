// Package flows contains pure-function orchestrators for the Engine's
// credential flows.
//
// Each flow function (RunLogin, RunRefresh, RunAPIKeyValidation) accepts a
// typed dependency struct and returns a result carrying a failure kind that
// the root package maps to its public errors. Flows never import authcore.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Perform I/O directly. All I/O goes through the dependency structs.
package flows
