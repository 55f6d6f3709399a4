package crypto

import (
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"

	"cipherchat/internal/domain"
	"cipherchat/internal/util/memzero"
)

const (
	KeyBytes   = 32
	SaltBytes  = 16
	SeedBytes  = 32
	NonceBytes = domain.NonceSize
)

// LabelSalt hashes an identity label to the Argon2id salt (BLAKE2b, 16 bytes).
func LabelSalt(label domain.Username) [SaltBytes]byte {
	var salt [SaltBytes]byte
	h, _ := blake2b.New(SaltBytes, nil) // only fails for a bad size or key
	h.Write([]byte(label))
	copy(salt[:], h.Sum(nil))
	return salt
}

// DeriveIdentity turns (password, label) into the user's X25519 identity.
//
// The same inputs always produce the same key pair. The call is CPU and
// memory heavy; run it off latency-sensitive paths.
func (s *Suite) DeriveIdentity(password string, label domain.Username) (domain.Identity, error) {
	if err := s.kdf.validate(); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrKeyDerivation, err)
	}
	salt := LabelSalt(label)
	seed, err := s.stretch(password, salt[:])
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(seed[:])
	return IdentityFromSeed(label, seed), nil
}

func (s *Suite) stretch(password string, salt []byte) (seed [SeedBytes]byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrKeyDerivation, r)
		}
	}()
	pw := []byte(password)
	defer memzero.Zero(pw)

	out := argon2.IDKey(pw, salt, s.kdf.Time, s.kdf.MemoryKiB, s.kdf.Threads, SeedBytes)
	copy(seed[:], out)
	memzero.Zero(out)
	return seed, nil
}

// IdentityFromSeed expands a 32-byte seed into a key pair the way
// crypto_box_seed_keypair does: private = SHA-512(seed)[:32].
func IdentityFromSeed(label domain.Username, seed [SeedBytes]byte) domain.Identity {
	h := sha512.Sum512(seed[:])
	defer memzero.Zero(h[:])

	id := domain.Identity{Label: label}
	copy(id.Private[:], h[:KeyBytes])
	// X25519 with the base point cannot produce the all-zero output.
	pub, _ := curve25519.X25519(id.Private.Slice(), curve25519.Basepoint)
	copy(id.Public[:], pub)
	return id
}
