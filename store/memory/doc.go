// Package memory provides mutex-guarded in-process implementations of the
// authcore store contracts. They suit tests and single-process demos; data
// is lost when the process exits.
package memory
