package groupkey

import (
	"encoding/hex"
	"fmt"

	"cipherchat/internal/domain"
)

// ToWire hex-encodes pkg for the relay.
func ToWire(pkg domain.KeyPackage) domain.WireKeyPackage {
	return domain.WireKeyPackage{
		GroupID:      pkg.GroupID,
		MemberID:     pkg.Recipient,
		WrappedBy:    pkg.WrappedBy,
		KeyVersion:   pkg.KeyVersion,
		EncryptedKey: hex.EncodeToString(pkg.EncryptedKey),
		Nonce:        hex.EncodeToString(pkg.Nonce[:]),
	}
}

// ToWireAll converts a batch.
func ToWireAll(pkgs []domain.KeyPackage) []domain.WireKeyPackage {
	out := make([]domain.WireKeyPackage, len(pkgs))
	for i, p := range pkgs {
		out[i] = ToWire(p)
	}
	return out
}

// FromWire decodes a relay row.
func FromWire(w domain.WireKeyPackage) (domain.KeyPackage, error) {
	pkg := domain.KeyPackage{
		GroupID:    w.GroupID,
		Recipient:  w.MemberID,
		WrappedBy:  w.WrappedBy,
		KeyVersion: w.KeyVersion,
	}
	ek, err := hex.DecodeString(w.EncryptedKey)
	if err != nil || len(ek) == 0 {
		return pkg, fmt.Errorf("%w: malformed encrypted_key for %s", domain.ErrInvalidKey, w.MemberID)
	}
	nonce, err := hex.DecodeString(w.Nonce)
	if err != nil || len(nonce) != domain.NonceSize {
		return pkg, fmt.Errorf("%w: malformed nonce for %s", domain.ErrInvalidKey, w.MemberID)
	}
	pkg.EncryptedKey = ek
	copy(pkg.Nonce[:], nonce)
	return pkg, nil
}

// Select picks the package for version from pkgs, or the newest one when
// version is zero.
func Select(pkgs []domain.WireKeyPackage, version domain.KeyVersion) (*domain.WireKeyPackage, bool) {
	var best *domain.WireKeyPackage
	for i := range pkgs {
		p := &pkgs[i]
		if version != 0 {
			if p.KeyVersion == version {
				return p, true
			}
			continue
		}
		if best == nil || p.KeyVersion > best.KeyVersion {
			best = p
		}
	}
	return best, best != nil
}
