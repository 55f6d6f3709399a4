// Package store provides persistence for cipherchat.
//
// Two stores live here:
//   - BadgerStore keeps the relay's state (public keys, group records,
//     wrapped key packages, direct mailboxes and group logs) in BadgerDB.
//     An empty directory opens it in memory.
//   - ProfileFileStore keeps the client's per-relay profile as JSON under
//     the user's home directory.
//
// Neither store ever holds a private key, a shared key or a group key in
// clear. All methods are safe for concurrent use.
package store
