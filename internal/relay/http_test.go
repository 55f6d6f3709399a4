package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/domain"
	"cipherchat/internal/relay"
	"cipherchat/internal/relay/relaytest"
)

func TestHTTP_PublicKeys(t *testing.T) {
	ctx := context.Background()
	c := relaytest.Start(t)

	_, err := c.FetchPublicKey(ctx, "alice")
	require.ErrorIs(t, err, relay.ErrNotFound)

	pub := domain.X25519Public{1, 2, 3}
	require.NoError(t, c.PublishPublicKey(ctx, "alice", pub))
	got, err := c.FetchPublicKey(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, pub, got)

	err = c.PublishPublicKey(ctx, "bob", domain.X25519Public{})
	require.Error(t, err)
}

func TestHTTP_FetchPublicKey_RejectsMalformedEntry(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"public_key":"` + strings.Repeat("AB", 32) + `"}`))
	}))
	defer ts.Close()

	c := relay.NewHTTP(ts.URL, ts.Client(), nil)
	_, err := c.FetchPublicKey(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestHTTP_Groups(t *testing.T) {
	ctx := context.Background()
	c := relaytest.Start(t)

	g := domain.Group{ID: "g1", Name: "team", Admin: "alice", Members: []domain.Username{"alice", "bob"}, KeyVersion: 1}
	require.NoError(t, c.CreateGroup(ctx, g))
	require.Error(t, c.CreateGroup(ctx, g), "duplicate id")

	require.NoError(t, c.AddGroupMember(ctx, "g1", "carol"))
	require.NoError(t, c.RemoveGroupMember(ctx, "g1", "bob"))
	require.NoError(t, c.UpdateGroupKey(ctx, "g1", 2, "abcd"))
	require.Error(t, c.UpdateGroupKey(ctx, "g1", 2, "abcd"), "version must advance")
	require.Error(t, c.RemoveGroupMember(ctx, "g1", "alice"), "admin stays")

	got, err := c.FetchGroup(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []domain.Username{"alice", "carol"}, got.Members)
	require.Equal(t, domain.KeyVersion(2), got.KeyVersion)
	require.Equal(t, "abcd", got.KeyLink)

	_, err = c.FetchGroup(ctx, "nope")
	require.ErrorIs(t, err, relay.ErrNotFound)
	require.ErrorIs(t, c.AddGroupMember(ctx, "nope", "x"), relay.ErrNotFound)
}

func TestHTTP_KeyPackages(t *testing.T) {
	ctx := context.Background()
	c := relaytest.Start(t)

	pkgs, err := c.FetchKeyPackages(ctx, "g1", "bob")
	require.NoError(t, err)
	require.Empty(t, pkgs)

	require.NoError(t, c.PublishKeyPackages(ctx, []domain.WireKeyPackage{
		{GroupID: "g1", MemberID: "bob", WrappedBy: "alice", KeyVersion: 1, EncryptedKey: "aa", Nonce: "bb"},
		{GroupID: "g1", MemberID: "carol", WrappedBy: "alice", KeyVersion: 1, EncryptedKey: "cc", Nonce: "dd"},
	}))
	require.Error(t, c.PublishKeyPackages(ctx, []domain.WireKeyPackage{
		{GroupID: "g1", MemberID: "bob", KeyVersion: 1},
		{GroupID: "g2", MemberID: "bob", KeyVersion: 1},
	}))

	pkgs, err = c.FetchKeyPackages(ctx, "g1", "bob")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	require.Equal(t, domain.Username("alice"), pkgs[0].WrappedBy)

	require.NoError(t, c.DeleteKeyPackages(ctx, "g1", "bob"))
	pkgs, err = c.FetchKeyPackages(ctx, "g1", "bob")
	require.NoError(t, err)
	require.Empty(t, pkgs)
}

func TestHTTP_DirectMailbox(t *testing.T) {
	ctx := context.Background()
	c := relaytest.Start(t)

	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, c.SendMessage(ctx, domain.WireEnvelope{From: "alice", To: "bob", Message: m, Nonce: "00"}))
	}
	envs, err := c.FetchMessages(ctx, "bob", 2)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	require.Equal(t, "one", envs[0].Message)
	require.Equal(t, domain.KindDirect, envs[0].Kind)
	require.NotEmpty(t, envs[0].ID)
	require.NotZero(t, envs[0].Timestamp)

	require.NoError(t, c.AckMessages(ctx, "bob", 2))
	envs, err = c.FetchMessages(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, "three", envs[0].Message)
}

func TestHTTP_GroupMessages(t *testing.T) {
	ctx := context.Background()
	c := relaytest.Start(t)
	require.NoError(t, c.CreateGroup(ctx, domain.Group{ID: "g1", Admin: "alice", Members: []domain.Username{"alice", "bob"}}))

	require.NoError(t, c.SendGroupMessage(ctx, domain.WireEnvelope{From: "alice", GroupID: "g1", Message: "a", Timestamp: 1000}))
	require.NoError(t, c.SendGroupMessage(ctx, domain.WireEnvelope{From: "bob", GroupID: "g1", Message: "b", Timestamp: 2000}))
	require.Error(t, c.SendGroupMessage(ctx, domain.WireEnvelope{From: "mallory", GroupID: "g1", Message: "x"}))

	envs, err := c.FetchGroupMessages(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	require.Equal(t, domain.KindGroup, envs[0].Kind)

	envs, err = c.FetchGroupMessages(ctx, "g1", 1000)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, "b", envs[0].Message)
}

func TestHTTP_Subscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := relaytest.Start(t)
	require.NoError(t, c.CreateGroup(ctx, domain.Group{ID: "g1", Admin: "alice", Members: []domain.Username{"alice", "bob"}}))

	sub, err := c.Subscribe(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, c.SendMessage(ctx, domain.WireEnvelope{From: "alice", To: "bob", Message: "direct", Nonce: "00"}))
	require.NoError(t, c.SendGroupMessage(ctx, domain.WireEnvelope{From: "alice", GroupID: "g1", Message: "group"}))

	first := <-sub
	require.Equal(t, "direct", first.Message)
	second := <-sub
	require.Equal(t, "group", second.Message)
	require.Equal(t, domain.KindGroup, second.Kind)

	cancel()
	for range sub {
	}
}
