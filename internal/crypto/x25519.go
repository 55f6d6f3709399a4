package crypto

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"

	"cipherchat/internal/domain"
	"cipherchat/internal/util/memzero"
)

// DeriveSharedKey computes X25519(myPrivate, theirPublic) and hashes the raw
// secret with BLAKE2b-256. Both sides of a pair get the same key.
func (s *Suite) DeriveSharedKey(
	myPrivate domain.X25519Private,
	theirPublic domain.X25519Public,
) (domain.SymmetricKey, error) {
	raw, err := dh(myPrivate, theirPublic)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	defer memzero.Zero(raw[:])
	return blake2b.Sum256(raw[:]), nil
}

// PublicKey returns the public half of priv.
func PublicKey(priv domain.X25519Private) domain.X25519Public {
	var pub domain.X25519Public
	out, _ := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	copy(pub[:], out)
	return pub
}

// PublicKeyFromBytes validates length and curve order of an untrusted key.
func PublicKeyFromBytes(b []byte) (domain.X25519Public, error) {
	var pub domain.X25519Public
	if len(b) != KeyBytes {
		return pub, fmt.Errorf("%w: public key is %d bytes, want %d", domain.ErrInvalidKey, len(b), KeyBytes)
	}
	copy(pub[:], b)
	if pub.IsZero() {
		return pub, fmt.Errorf("%w: all-zero public key", domain.ErrInvalidKey)
	}
	return pub, nil
}

// dh computes X25519 Diffie–Hellman, rejecting low-order public keys.
func dh(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	copy(out[:], secret)
	memzero.Zero(secret)
	return out, nil
}
