// Package session is the chat session controller.
//
// It owns the unlocked identity and the keys of every open conversation:
// one shared key per direct peer, and every known version of each group's
// key. Opening a conversation derives or unwraps its key once; sending
// encrypts under it; receiving decrypts each envelope on its own and
// reports failures per message instead of dropping them.
//
// Results are ordered by the sender's timestamp. Keys are dropped when a
// conversation is closed or the controller is locked.
package session
