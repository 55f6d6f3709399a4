package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"cipherchat/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) domain.Fingerprint {
	sum := sha256.Sum256(pub)
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}

// ParsePublicKeyHex decodes a directory entry: exactly 64 lowercase hex
// characters. Anything else is ErrInvalidKey.
func ParsePublicKeyHex(s string) (domain.X25519Public, error) {
	if len(s) != 2*KeyBytes {
		return domain.X25519Public{}, fmt.Errorf("%w: public key hex is %d chars, want %d",
			domain.ErrInvalidKey, len(s), 2*KeyBytes)
	}
	if s != strings.ToLower(s) {
		return domain.X25519Public{}, fmt.Errorf("%w: public key hex must be lowercase", domain.ErrInvalidKey)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return domain.X25519Public{}, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	return PublicKeyFromBytes(b)
}
