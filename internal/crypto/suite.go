package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// KDFParams are the Argon2id costs used to stretch a password into an
// identity seed. Changing them changes every derived identity.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// InteractiveKDFParams matches libsodium's OPSLIMIT_INTERACTIVE and
// MEMLIMIT_INTERACTIVE for Argon2id.
func InteractiveKDFParams() KDFParams {
	return KDFParams{Time: 2, MemoryKiB: 64 * 1024, Threads: 1}
}

func (p KDFParams) validate() error {
	switch {
	case p.Time < 1:
		return fmt.Errorf("argon2 time cost %d below 1", p.Time)
	case p.Threads < 1:
		return fmt.Errorf("argon2 parallelism %d below 1", p.Threads)
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("argon2 memory %d KiB below minimum for %d threads", p.MemoryKiB, p.Threads)
	}
	return nil
}

// Suite is the explicit handle for all cryptographic operations. Build it
// once with New and share it; it holds no mutable state.
type Suite struct {
	rand io.Reader
	kdf  KDFParams
}

// Option configures a Suite.
type Option func(*Suite)

// WithRandom replaces crypto/rand as the source of nonces and keys.
func WithRandom(r io.Reader) Option {
	return func(s *Suite) { s.rand = r }
}

// WithKDFParams overrides the Argon2id costs. Production wiring keeps the
// interactive defaults so identities stay reproducible across devices.
func WithKDFParams(p KDFParams) Option {
	return func(s *Suite) { s.kdf = p }
}

// New returns a Suite using crypto/rand and interactive Argon2id costs.
func New(opts ...Option) *Suite {
	s := &Suite{rand: rand.Reader, kdf: InteractiveKDFParams()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KDFParams returns the Argon2id costs this suite derives identities with.
func (s *Suite) KDFParams() KDFParams { return s.kdf }

func (s *Suite) randomNonce() (nonce [NonceBytes]byte, err error) {
	if _, err = io.ReadFull(s.rand, nonce[:]); err != nil {
		return nonce, fmt.Errorf("generating nonce: %w", err)
	}
	return nonce, nil
}
