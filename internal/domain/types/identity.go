package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Identity is a user's deterministic X25519 key pair.
//
// It is re-derived from (password, label) whenever needed and lives only in
// memory. String and GoString print the label and public fingerprint so that
// logging an Identity by accident never exposes Private.
type Identity struct {
	Label   Username
	Public  X25519Public
	Private X25519Private
}

// String returns "label(fingerprint)".
func (id Identity) String() string {
	sum := sha256.Sum256(id.Public[:])
	return fmt.Sprintf("%s(%s)", id.Label, hex.EncodeToString(sum[:10]))
}

// GoString mirrors String.
func (id Identity) GoString() string { return "Identity{" + id.String() + "}" }
