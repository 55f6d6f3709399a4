package groupkey

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
)

// Manager is the group key protocol bound to one crypto suite.
type Manager struct {
	suite *crypto.Suite
}

// New returns a Manager that draws randomness from suite.
func New(suite *crypto.Suite) *Manager {
	return &Manager{suite: suite}
}

// CreateGroupKey returns a fresh random group key.
func (m *Manager) CreateGroupKey() (domain.SymmetricKey, error) {
	return m.suite.NewSymmetricKey()
}

// WrapForMember boxes gk for memberPublic under a fresh nonce. Only the
// key material and nonce are set; WrapForMembers fills the addressing.
func (m *Manager) WrapForMember(
	gk domain.SymmetricKey,
	memberPublic domain.X25519Public,
	myPrivate domain.X25519Private,
) (domain.KeyPackage, error) {
	sealed, err := m.suite.SealBox(gk.Slice(), memberPublic, myPrivate)
	if err != nil {
		return domain.KeyPackage{}, fmt.Errorf("wrap group key: %w", err)
	}
	return domain.KeyPackage{EncryptedKey: sealed.Ciphertext, Nonce: sealed.Nonce}, nil
}

// WrapForMembers wraps gk for every member of roster. Packages come back
// ordered by member name.
func (m *Manager) WrapForMembers(
	gk domain.SymmetricKey,
	id domain.GroupID,
	version domain.KeyVersion,
	wrapper domain.Username,
	roster map[domain.Username]domain.X25519Public,
	myPrivate domain.X25519Private,
) ([]domain.KeyPackage, error) {
	members := make([]domain.Username, 0, len(roster))
	for u := range roster {
		members = append(members, u)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	out := make([]domain.KeyPackage, 0, len(members))
	for _, u := range members {
		pkg, err := m.WrapForMember(gk, roster[u], myPrivate)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", u, err)
		}
		pkg.GroupID = id
		pkg.Recipient = u
		pkg.WrappedBy = wrapper
		pkg.KeyVersion = version
		out = append(out, pkg)
	}
	return out, nil
}

// Unwrap opens pkg with the wrapper's public key. A nil pkg means the
// member was never issued one.
func (m *Manager) Unwrap(
	pkg *domain.KeyPackage,
	senderPublic domain.X25519Public,
	myPrivate domain.X25519Private,
) (domain.SymmetricKey, error) {
	var gk domain.SymmetricKey
	if pkg == nil {
		return gk, domain.ErrKeyPackageNotFound
	}
	raw, err := m.suite.OpenBox(
		domain.Sealed{Nonce: pkg.Nonce, Ciphertext: pkg.EncryptedKey},
		senderPublic,
		myPrivate,
	)
	if err != nil {
		return gk, fmt.Errorf("unwrap group key: %w", err)
	}
	defer crypto.Wipe(raw)
	if len(raw) != crypto.KeyBytes {
		return gk, fmt.Errorf("%w: unwrapped group key is %d bytes", domain.ErrInvalidKey, len(raw))
	}
	copy(gk[:], raw)
	return gk, nil
}

// Rotation is a replacement group key and the link that binds it to the
// key it replaces.
type Rotation struct {
	Key  domain.SymmetricKey
	Link []byte
}

// LinkHex is the form stored on the group record.
func (r Rotation) LinkHex() string { return hex.EncodeToString(r.Link) }

// Rotate draws a new key and links it to old.
func (m *Manager) Rotate(old domain.SymmetricKey) (Rotation, error) {
	next, err := m.suite.NewSymmetricKey()
	if err != nil {
		return Rotation{}, fmt.Errorf("rotate group key: %w", err)
	}
	return Rotation{Key: next, Link: keyLink(old, next)}, nil
}

// VerifyLink reports whether link was produced by rotating old into next.
func VerifyLink(old, next domain.SymmetricKey, link []byte) bool {
	want := keyLink(old, next)
	return subtle.ConstantTimeCompare(want, link) == 1
}

func keyLink(old, next domain.SymmetricKey) []byte {
	h, _ := blake2b.New256(old.Slice()) // a 32-byte key is always accepted
	h.Write(next.Slice())
	return h.Sum(nil)
}

// EncryptGroup seals plaintext under the group key of version.
func (m *Manager) EncryptGroup(
	gk domain.SymmetricKey,
	version domain.KeyVersion,
	plaintext []byte,
) (domain.GroupEnvelope, error) {
	sealed, err := m.suite.Encrypt(gk, plaintext)
	if err != nil {
		return domain.GroupEnvelope{}, err
	}
	return domain.GroupEnvelope{KeyVersion: version, Sealed: sealed}, nil
}

// DecryptGroup opens env with gk. The caller picks gk by env.KeyVersion.
func (m *Manager) DecryptGroup(gk domain.SymmetricKey, env domain.GroupEnvelope) ([]byte, error) {
	return m.suite.DecryptSealed(gk, env.Sealed)
}
