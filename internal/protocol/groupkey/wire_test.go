package groupkey_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/protocol/groupkey"
)

func TestWireKeyPackage(t *testing.T) {
	m := groupkey.New(crypto.New())
	admin := makeIdentity(t, "admin")
	bob := makeIdentity(t, "bob")

	gk, err := m.CreateGroupKey()
	require.NoError(t, err)
	pkgs, err := m.WrapForMembers(gk, "g1", 3, admin.Label,
		map[domain.Username]domain.X25519Public{bob.Label: bob.Public}, admin.Private)
	require.NoError(t, err)

	w := groupkey.ToWire(pkgs[0])
	require.Equal(t, domain.Username("bob"), w.MemberID)
	require.Equal(t, domain.KeyVersion(3), w.KeyVersion)
	require.Len(t, w.Nonce, 2*domain.NonceSize)
	require.Equal(t, strings.ToLower(w.EncryptedKey), w.EncryptedKey)

	back, err := groupkey.FromWire(w)
	require.NoError(t, err)
	require.Equal(t, pkgs[0], back)

	got, err := m.Unwrap(&back, admin.Public, bob.Private)
	require.NoError(t, err)
	require.Equal(t, gk, got)
}

func TestFromWire_Malformed(t *testing.T) {
	good := domain.WireKeyPackage{
		GroupID:      "g",
		MemberID:     "bob",
		EncryptedKey: "aabb",
		Nonce:        strings.Repeat("00", domain.NonceSize),
	}
	_, err := groupkey.FromWire(good)
	require.NoError(t, err)

	for name, mutate := range map[string]func(*domain.WireKeyPackage){
		"bad key hex":   func(w *domain.WireKeyPackage) { w.EncryptedKey = "xyz" },
		"empty key":     func(w *domain.WireKeyPackage) { w.EncryptedKey = "" },
		"short nonce":   func(w *domain.WireKeyPackage) { w.Nonce = "00" },
		"bad nonce hex": func(w *domain.WireKeyPackage) { w.Nonce = strings.Repeat("zz", domain.NonceSize) },
	} {
		w := good
		mutate(&w)
		_, err := groupkey.FromWire(w)
		require.ErrorIs(t, err, domain.ErrInvalidKey, name)
	}
}

func TestSelect(t *testing.T) {
	pkgs := []domain.WireKeyPackage{{KeyVersion: 1}, {KeyVersion: 3}, {KeyVersion: 2}}

	p, ok := groupkey.Select(pkgs, 0)
	require.True(t, ok)
	require.Equal(t, domain.KeyVersion(3), p.KeyVersion)

	p, ok = groupkey.Select(pkgs, 2)
	require.True(t, ok)
	require.Equal(t, domain.KeyVersion(2), p.KeyVersion)

	_, ok = groupkey.Select(pkgs, 7)
	require.False(t, ok)
	_, ok = groupkey.Select(nil, 0)
	require.False(t, ok)
}
