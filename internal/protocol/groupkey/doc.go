// Package groupkey creates, distributes and recovers group keys.
//
// # Overview
//
// A group key is 32 random bytes shared by every current member. The relay
// never sees it in clear: the member that creates or rotates the key wraps
// it once per member with a pairwise box between its own private key and
// the member's public key. Each wrapped copy is a KeyPackage.
//
// # Flows
//
// Creation:
//  1. CreateGroupKey draws a fresh key.
//  2. WrapForMembers produces one package per member, the creator included.
//  3. The caller publishes the packages and the group record.
//
// Joining:
//  1. The member fetches its package(s) and picks one with Select.
//  2. Unwrap opens it with the wrapper's public key.
//
// Rotation:
//  1. Rotate draws a new key and a link, BLAKE2b(new, key=old).
//  2. The new key is wrapped for the remaining members under version+1.
//  3. Members holding the old key check the link with VerifyLink before
//     trusting the new one.
//
// # Messages
//
// EncryptGroup and DecryptGroup are the group variant of the message
// cipher. Every message gets its own random nonce, carried in the envelope
// next to the key version it was sealed under.
//
// # Errors
//
// Unwrap of a missing package returns ErrKeyPackageNotFound. Tampered or
// misaddressed packages return ErrAuthentication. Malformed wire rows return
// ErrInvalidKey.
package groupkey
