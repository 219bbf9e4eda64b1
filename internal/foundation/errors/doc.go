// Package errors provides the classified error primitives used across nightlybuilder.
//
// Only conditions that end a run early are modelled as errors: a configuration
// that yields no destination, or destination setup that leaves none active.
// Per-target build failures and per-artifact transfer failures are outcomes and
// never travel through this package.
//
// Example usage:
//
//	err := errors.DestinationError("no destination remains active").
//		WithContext("remote", addr).
//		WithCause(sshErr).
//		Fatal().
//		Build()
package errors
