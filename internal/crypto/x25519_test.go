package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
)

func seedFrom(b []byte) (seed [crypto.SeedBytes]byte) {
	copy(seed[:], b)
	return seed
}

func TestDeriveSharedKey_Commutes(t *testing.T) {
	suite := crypto.New()
	rapid.Check(t, func(t *rapid.T) {
		a := crypto.IdentityFromSeed("a", seedFrom(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "seedA")))
		b := crypto.IdentityFromSeed("b", seedFrom(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "seedB")))

		ab, err := suite.DeriveSharedKey(a.Private, b.Public)
		if err != nil {
			t.Fatalf("a->b: %v", err)
		}
		ba, err := suite.DeriveSharedKey(b.Private, a.Public)
		if err != nil {
			t.Fatalf("b->a: %v", err)
		}
		if ab != ba {
			t.Fatalf("shared keys differ")
		}
	})
}

func TestDeriveSharedKey_DistinctPeers(t *testing.T) {
	suite := crypto.New()
	alice := crypto.IdentityFromSeed("alice", seedFrom([]byte("alice-seed")))
	bob := crypto.IdentityFromSeed("bob", seedFrom([]byte("bob-seed")))
	carol := crypto.IdentityFromSeed("carol", seedFrom([]byte("carol-seed")))

	ab, err := suite.DeriveSharedKey(alice.Private, bob.Public)
	require.NoError(t, err)
	ac, err := suite.DeriveSharedKey(alice.Private, carol.Public)
	require.NoError(t, err)
	require.NotEqual(t, ab, ac)
	require.False(t, ab.IsZero())
}

func TestDeriveSharedKey_RejectsLowOrderPoints(t *testing.T) {
	suite := crypto.New()
	me := crypto.IdentityFromSeed("me", seedFrom([]byte("me")))

	var zero domain.X25519Public
	_, err := suite.DeriveSharedKey(me.Private, zero)
	require.ErrorIs(t, err, domain.ErrInvalidKey)

	// u = 1 has order 1 and collapses every scalar to zero.
	one := domain.X25519Public{1}
	_, err = suite.DeriveSharedKey(me.Private, one)
	require.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestPublicKeyFromBytes(t *testing.T) {
	_, err := crypto.PublicKeyFromBytes(make([]byte, 31))
	require.ErrorIs(t, err, domain.ErrInvalidKey)
	_, err = crypto.PublicKeyFromBytes(make([]byte, 32))
	require.ErrorIs(t, err, domain.ErrInvalidKey)

	id := crypto.IdentityFromSeed("x", seedFrom([]byte("x")))
	pub, err := crypto.PublicKeyFromBytes(id.Public.Slice())
	require.NoError(t, err)
	require.Equal(t, id.Public, pub)
}

func TestParsePublicKeyHex(t *testing.T) {
	id := crypto.IdentityFromSeed("x", seedFrom([]byte("hex")))
	good := id.Public.Hex()

	pub, err := crypto.ParsePublicKeyHex(good)
	require.NoError(t, err)
	require.Equal(t, id.Public, pub)

	for name, in := range map[string]string{
		"empty":     "",
		"short":     good[:62],
		"long":      good + "00",
		"uppercase": strings.ToUpper(good),
		"non-hex":   "zz" + good[2:],
		"all-zero":  strings.Repeat("0", 64),
	} {
		_, err := crypto.ParsePublicKeyHex(in)
		require.ErrorIs(t, err, domain.ErrInvalidKey, name)
	}
}

func TestFingerprint(t *testing.T) {
	a := crypto.IdentityFromSeed("a", seedFrom([]byte("a")))
	b := crypto.IdentityFromSeed("b", seedFrom([]byte("b")))

	fp := crypto.Fingerprint(a.Public.Slice())
	require.Len(t, fp.String(), 20)
	require.Equal(t, fp, crypto.Fingerprint(a.Public.Slice()))
	require.NotEqual(t, fp, crypto.Fingerprint(b.Public.Slice()))
}
