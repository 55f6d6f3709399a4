package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/domain"
)

func TestDirectExchange(t *testing.T) {
	suite := fastSuite()

	alice, err := suite.DeriveIdentity("alicepw", "alice")
	require.NoError(t, err)
	bob, err := suite.DeriveIdentity("bobpw", "bob")
	require.NoError(t, err)
	eve, err := suite.DeriveIdentity("evepw", "eve")
	require.NoError(t, err)

	kAlice, err := suite.DeriveSharedKey(alice.Private, bob.Public)
	require.NoError(t, err)
	kBob, err := suite.DeriveSharedKey(bob.Private, alice.Public)
	require.NoError(t, err)
	require.Equal(t, kAlice, kBob)

	sealed, err := suite.Encrypt(kAlice, []byte("hi bob"))
	require.NoError(t, err)
	got, err := suite.DecryptSealed(kBob, sealed)
	require.NoError(t, err)
	require.Equal(t, "hi bob", string(got))

	kEve, err := suite.DeriveSharedKey(eve.Private, alice.Public)
	require.NoError(t, err)
	_, err = suite.DecryptSealed(kEve, sealed)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}
