// Package identity derives the local user's key pair from credentials.
//
// Nothing is persisted: the identity is recomputed from (password, label)
// each time it is needed. Derivation is memory-hard and slow, so it runs
// on its own goroutine and callers can abandon it through the context.
package identity
