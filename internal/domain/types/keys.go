package types

import "encoding/hex"

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// Hex returns the lowercase hex form used on the wire.
func (p X25519Public) Hex() string { return hex.EncodeToString(p[:]) }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// String never prints key material.
func (k X25519Private) String() string { return "X25519Private(redacted)" }

// GoString never prints key material.
func (k X25519Private) GoString() string { return k.String() }

// SymmetricKey is a 32-byte secret key: a pairwise shared key or a group key.
type SymmetricKey [32]byte

// Slice returns the key as a []byte.
func (k SymmetricKey) Slice() []byte { return k[:] }

// IsZero reports whether the key is unset.
func (k SymmetricKey) IsZero() bool { return k == SymmetricKey{} }

// String never prints key material.
func (k SymmetricKey) String() string { return "SymmetricKey(redacted)" }

// GoString never prints key material.
func (k SymmetricKey) GoString() string { return k.String() }
