// Package group runs the group key lifecycle against the directory.
//
// A group moves Uninitialized -> KeyCreated -> Distributed -> Active when
// it is created. Adding a member re-wraps the current key for the newcomer.
// Removing a member deletes its membership and packages and, unless the
// caller opts out, rotates the key so the removed member cannot read what
// follows.
package group
