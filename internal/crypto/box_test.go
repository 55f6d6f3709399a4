package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
)

func TestSealOpenBox(t *testing.T) {
	suite := crypto.New()
	admin := crypto.IdentityFromSeed("admin", seedFrom([]byte("admin")))
	member := crypto.IdentityFromSeed("member", seedFrom([]byte("member")))
	outsider := crypto.IdentityFromSeed("outsider", seedFrom([]byte("outsider")))

	secret := []byte("0123456789abcdef0123456789abcdef")
	sealed, err := suite.SealBox(secret, member.Public, admin.Private)
	require.NoError(t, err)

	got, err := suite.OpenBox(sealed, admin.Public, member.Private)
	require.NoError(t, err)
	require.Equal(t, secret, got)

	_, err = suite.OpenBox(sealed, admin.Public, outsider.Private)
	require.ErrorIs(t, err, domain.ErrAuthentication)

	_, err = suite.OpenBox(sealed, outsider.Public, member.Private)
	require.ErrorIs(t, err, domain.ErrAuthentication)

	sealed.Ciphertext[0] ^= 0x80
	_, err = suite.OpenBox(sealed, admin.Public, member.Private)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestSealBox_RejectsZeroPeer(t *testing.T) {
	suite := crypto.New()
	admin := crypto.IdentityFromSeed("admin", seedFrom([]byte("admin")))

	_, err := suite.SealBox([]byte("k"), domain.X25519Public{}, admin.Private)
	require.ErrorIs(t, err, domain.ErrInvalidKey)
	_, err = suite.OpenBox(domain.Sealed{}, domain.X25519Public{}, admin.Private)
	require.ErrorIs(t, err, domain.ErrInvalidKey)
}
