// Package crypto exposes the primitives of the end-to-end encryption core.
//
// Contents
//
//   - Suite, the capability handle built once at process start (New) and
//     passed to every caller; it owns the randomness source and the Argon2id
//     cost parameters
//   - Deterministic identity derivation from (password, label)
//     (DeriveIdentity, IdentityFromSeed, LabelSalt)
//   - X25519 key agreement hashed to a symmetric key (DeriveSharedKey)
//   - XSalsa20-Poly1305 message encryption with a fresh nonce per call
//     (Encrypt, Decrypt)
//   - Public-key authenticated encryption used to wrap group keys
//     (SealBox, OpenBox)
//   - Short public-key fingerprints and hex key parsing for the wire
//     (Fingerprint, ParsePublicKeyHex)
//
// # Notes
//
// Constructions are byte-compatible with libsodium's crypto_pwhash,
// crypto_box_seed_keypair, crypto_generichash, crypto_secretbox_easy and
// crypto_box_easy. No function keeps hidden state, so a Suite is safe for
// concurrent use. Failures are reported with the sentinels of
// internal/domain (ErrKeyDerivation, ErrInvalidKey, ErrAuthentication) and
// never yield partial plaintext.
package crypto
