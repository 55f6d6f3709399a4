package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"cipherchat/internal/domain"
)

// Encrypt seals plaintext under key with XSalsa20-Poly1305 and a fresh
// random nonce. Text and binary payloads are treated alike.
func (s *Suite) Encrypt(key domain.SymmetricKey, plaintext []byte) (domain.Sealed, error) {
	nonce, err := s.randomNonce()
	if err != nil {
		return domain.Sealed{}, err
	}
	k := [KeyBytes]byte(key)
	return domain.Sealed{
		Nonce:      nonce,
		Ciphertext: secretbox.Seal(nil, plaintext, &nonce, &k),
	}, nil
}

// Decrypt authenticates and opens ciphertext. Any tampering, a wrong key or
// a wrong nonce yields ErrAuthentication and no plaintext.
func (s *Suite) Decrypt(key domain.SymmetricKey, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceBytes {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d", domain.ErrAuthentication, len(nonce), NonceBytes)
	}
	var n [NonceBytes]byte
	copy(n[:], nonce)
	return s.DecryptSealed(key, domain.Sealed{Nonce: n, Ciphertext: ciphertext})
}

// DecryptSealed is Decrypt for a value produced by Encrypt.
func (s *Suite) DecryptSealed(key domain.SymmetricKey, sealed domain.Sealed) ([]byte, error) {
	k := [KeyBytes]byte(key)
	pt, ok := secretbox.Open(nil, sealed.Ciphertext, &sealed.Nonce, &k)
	if !ok {
		return nil, domain.ErrAuthentication
	}
	if pt == nil {
		pt = []byte{}
	}
	return pt, nil
}

// EncryptDirect seals plaintext for a direct conversation.
func (s *Suite) EncryptDirect(key domain.SymmetricKey, plaintext []byte) (domain.DirectEnvelope, error) {
	sealed, err := s.Encrypt(key, plaintext)
	if err != nil {
		return domain.DirectEnvelope{}, err
	}
	return domain.DirectEnvelope{Sealed: sealed}, nil
}

// DecryptDirect opens a direct envelope with the pairwise key.
func (s *Suite) DecryptDirect(key domain.SymmetricKey, env domain.DirectEnvelope) ([]byte, error) {
	return s.DecryptSealed(key, env.Sealed)
}

// NewSymmetricKey returns 32 random bytes from the suite's source.
func (s *Suite) NewSymmetricKey() (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	if _, err := io.ReadFull(s.rand, k[:]); err != nil {
		return k, fmt.Errorf("generating key: %w", err)
	}
	return k, nil
}
