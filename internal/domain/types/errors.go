package types

import "errors"

// Cryptographic failure taxonomy. Every layer wraps these with %w so callers
// can match them with errors.Is.
var (
	// ErrKeyDerivation is returned when password hashing cannot run, for
	// example because of invalid cost parameters. It is not retryable.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrInvalidKey is returned for malformed or low-order key material.
	ErrInvalidKey = errors.New("invalid key")

	// ErrAuthentication is returned when a ciphertext fails authentication:
	// tampering, the wrong key, or the wrong nonce.
	ErrAuthentication = errors.New("message authentication failed")

	// ErrKeyPackageNotFound is returned when no wrapped group key is
	// available for the member, including when fetching it failed.
	ErrKeyPackageNotFound = errors.New("group key package not found")
)

// ErrNotFound is returned by collaborators when the user, group or record
// asked for does not exist. Unlike a transport failure, retrying will not
// help.
var ErrNotFound = errors.New("not found")
