package identity_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/services/identity"
)

func fastSuite() *crypto.Suite {
	return crypto.New(crypto.WithKDFParams(crypto.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}))
}

func TestDeriveIdentity(t *testing.T) {
	svc := identity.New(fastSuite(), nil)

	a, err := svc.DeriveIdentity(context.Background(), "pw", "alice")
	require.NoError(t, err)
	b, err := svc.DeriveIdentity(context.Background(), "pw", "alice")
	require.NoError(t, err)
	require.Equal(t, a.Public, b.Public)

	fp, err := svc.FingerprintIdentity(context.Background(), "pw", "alice")
	require.NoError(t, err)
	require.Equal(t, crypto.Fingerprint(a.Public.Slice()), fp)
}

func TestDeriveIdentity_Cancelled(t *testing.T) {
	svc := identity.New(crypto.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.DeriveIdentity(ctx, "pw", "alice")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDeriveIdentity_Errors(t *testing.T) {
	svc := identity.New(fastSuite(), nil)
	_, err := svc.DeriveIdentity(context.Background(), "pw", "")
	require.ErrorIs(t, err, identity.ErrEmptyLabel)

	bad := identity.New(crypto.New(crypto.WithKDFParams(crypto.KDFParams{})), nil)
	_, err = bad.DeriveIdentity(context.Background(), "pw", "alice")
	require.ErrorIs(t, err, domain.ErrKeyDerivation)
}

func TestDeriveIdentity_NeverLogsSecrets(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	svc := identity.New(fastSuite(), logger)

	id, err := svc.DeriveIdentity(context.Background(), "correct horse", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, hook.AllEntries())

	for _, e := range hook.AllEntries() {
		line, err := e.String()
		require.NoError(t, err)
		require.NotContains(t, line, "correct horse")
		require.NotContains(t, line, hex.EncodeToString(id.Private.Slice()))
		require.Equal(t, domain.Username("alice"), e.Data["user"])
	}
}
