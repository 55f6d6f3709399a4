package session_test

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/protocol/groupkey"
	"cipherchat/internal/relay"
	"cipherchat/internal/relay/relaytest"
	"cipherchat/internal/services/group"
	"cipherchat/internal/services/identity"
	"cipherchat/internal/services/session"
)

type world struct {
	ctx   context.Context
	suite *crypto.Suite
	relay *relay.HTTP
}

func newWorld(t *testing.T) *world {
	t.Helper()
	return &world{
		ctx:   context.Background(),
		suite: crypto.New(crypto.WithKDFParams(crypto.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1})),
		relay: relaytest.Start(t),
	}
}

// user unlocks a controller as name (password name+"pw") and registers its
// public key.
func (w *world) user(t *testing.T, name domain.Username) *session.Controller {
	t.Helper()
	return w.userWith(t, name, w.relay)
}

// userWith is user with a custom directory in front of the relay.
func (w *world) userWith(t *testing.T, name domain.Username, dir domain.Directory) *session.Controller {
	t.Helper()
	c := session.New(w.suite, identity.New(w.suite, nil), dir, w.relay, nil)
	require.NoError(t, c.Unlock(w.ctx, string(name)+"pw", name))
	_, pub, ok := c.Self()
	require.True(t, ok)
	require.NoError(t, w.relay.PublishPublicKey(w.ctx, name, pub))
	return c
}

func (w *world) identity(t *testing.T, name domain.Username) domain.Identity {
	t.Helper()
	id, err := w.suite.DeriveIdentity(string(name)+"pw", name)
	require.NoError(t, err)
	return id
}

// stubDirectory fails the next public key lookup of each user in failKey
// once and, when keyLink is set, reports it on every group record.
type stubDirectory struct {
	domain.Directory
	mu      sync.Mutex
	failKey map[domain.Username]bool
	keyLink string
}

func (d *stubDirectory) FetchPublicKey(ctx context.Context, user domain.Username) (domain.X25519Public, error) {
	d.mu.Lock()
	fail := d.failKey[user]
	delete(d.failKey, user)
	d.mu.Unlock()
	if fail {
		return domain.X25519Public{}, errors.New("relay timeout")
	}
	return d.Directory.FetchPublicKey(ctx, user)
}

func (d *stubDirectory) FetchGroup(ctx context.Context, id domain.GroupID) (domain.Group, error) {
	g, err := d.Directory.FetchGroup(ctx, id)
	if err == nil && d.keyLink != "" {
		g.KeyLink = d.keyLink
	}
	return g, err
}

func text(s string) domain.OutgoingMessage {
	return domain.OutgoingMessage{Type: domain.PayloadText, Body: []byte(s)}
}

func TestDirectExchange(t *testing.T) {
	w := newWorld(t)
	alice, bob := w.user(t, "alice"), w.user(t, "bob")

	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.DirectConversation("bob"), conv)

	sent, err := alice.Send(w.ctx, conv, text("hi bob"))
	require.NoError(t, err)
	require.NotEmpty(t, sent.ID)
	require.NotContains(t, sent.Message, hex.EncodeToString([]byte("hi bob")))

	got, err := bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusDecrypted, got[0].Status)
	require.Equal(t, domain.Username("alice"), got[0].From)
	require.Equal(t, domain.DirectConversation("alice"), got[0].Conversation)
	require.Equal(t, "hi bob", string(got[0].Plaintext))
	require.Equal(t, sent.ID, got[0].ID)

	again, err := bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Empty(t, again)

	back, err := bob.OpenDirect(w.ctx, "alice")
	require.NoError(t, err)
	_, err = bob.Send(w.ctx, back, text("hi alice"))
	require.NoError(t, err)

	got, err = alice.ReceiveDirect(w.ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "hi alice", string(got[0].Plaintext))
}

func TestFileMessage(t *testing.T) {
	w := newWorld(t)
	alice, bob := w.user(t, "alice"), w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)

	_, err = alice.Send(w.ctx, conv, domain.OutgoingMessage{Type: domain.PayloadFile, Body: []byte{1, 2}})
	require.ErrorIs(t, err, session.ErrMissingFileName)

	_, err = alice.Send(w.ctx, conv, domain.OutgoingMessage{
		Type:     domain.PayloadFile,
		Body:     []byte{0, 1, 2, 3},
		FileName: "notes.bin",
		FileType: "application/octet-stream",
	})
	require.NoError(t, err)

	got, err := bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.PayloadFile, got[0].Type)
	require.Equal(t, "notes.bin", got[0].FileName)
	require.Equal(t, "application/octet-stream", got[0].FileType)
	require.Equal(t, []byte{0, 1, 2, 3}, got[0].Plaintext)
}

func TestEmptyMessageRoundTrips(t *testing.T) {
	w := newWorld(t)
	alice, bob := w.user(t, "alice"), w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	_, err = alice.Send(w.ctx, conv, text(""))
	require.NoError(t, err)

	got, err := bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusDecrypted, got[0].Status)
	require.Empty(t, got[0].Plaintext)
}

func TestLockedController(t *testing.T) {
	w := newWorld(t)
	alice := w.user(t, "alice")
	w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)

	alice.Lock()
	_, _, ok := alice.Self()
	require.False(t, ok)

	_, err = alice.OpenDirect(w.ctx, "bob")
	require.ErrorIs(t, err, session.ErrLocked)
	_, err = alice.Send(w.ctx, conv, text("x"))
	require.ErrorIs(t, err, session.ErrLocked)
	_, err = alice.ReceiveDirect(w.ctx, 0)
	require.ErrorIs(t, err, session.ErrLocked)
	require.ErrorIs(t, alice.Listen(w.ctx, func(domain.DecryptedMessage) {}), session.ErrLocked)
}

func TestUnlockAsAnotherUserDropsKeys(t *testing.T) {
	w := newWorld(t)
	c := w.user(t, "alice")
	w.user(t, "bob")
	conv, err := c.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, c.Unlock(w.ctx, "carolpw", "carol"))
	me, _, _ := c.Self()
	require.Equal(t, domain.Username("carol"), me)

	_, err = c.Send(w.ctx, conv, text("x"))
	require.ErrorIs(t, err, session.ErrConversationClosed)
}

func TestCloseDropsConversationKey(t *testing.T) {
	w := newWorld(t)
	alice, bob := w.user(t, "alice"), w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	env, err := alice.Send(w.ctx, conv, text("before close"))
	require.NoError(t, err)

	alice.Close(conv)
	_, err = alice.Send(w.ctx, conv, text("after close"))
	require.ErrorIs(t, err, session.ErrConversationClosed)

	fromAlice, err := bob.OpenDirect(w.ctx, "alice")
	require.NoError(t, err)
	bob.Close(fromAlice)
	got := bob.Decrypt(fromAlice, []domain.WireEnvelope{env})
	require.Equal(t, domain.StatusUndecryptable, got[0].Status)
	require.ErrorIs(t, got[0].Err, session.ErrConversationClosed)
}

func TestDecryptReportsEachFailure(t *testing.T) {
	w := newWorld(t)
	alice, bob := w.user(t, "alice"), w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	good, err := alice.Send(w.ctx, conv, text("intact"))
	require.NoError(t, err)

	ct, err := hex.DecodeString(good.Message)
	require.NoError(t, err)
	ct[0] ^= 0x01
	tampered := good
	tampered.ID = "tampered"
	tampered.Message = hex.EncodeToString(ct)

	noNonce := good
	noNonce.ID = "no-nonce"
	noNonce.Nonce = ""

	fromAlice, err := bob.OpenDirect(w.ctx, "alice")
	require.NoError(t, err)
	got := bob.Decrypt(fromAlice, []domain.WireEnvelope{tampered, good, noNonce})
	require.Len(t, got, 3)

	byID := map[domain.MessageID]domain.DecryptedMessage{}
	for _, m := range got {
		byID[m.ID] = m
	}
	require.Equal(t, domain.StatusDecrypted, byID[good.ID].Status)
	require.Equal(t, "intact", string(byID[good.ID].Plaintext))
	for _, id := range []domain.MessageID{"tampered", "no-nonce"} {
		require.Equal(t, domain.StatusUndecryptable, byID[id].Status, id)
		require.ErrorIs(t, byID[id].Err, domain.ErrAuthentication, id)
		require.Nil(t, byID[id].Plaintext, id)
	}
}

func TestDecryptOrdersByTimestamp(t *testing.T) {
	w := newWorld(t)
	alice, bob := w.user(t, "alice"), w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	first, err := alice.Send(w.ctx, conv, text("first"))
	require.NoError(t, err)
	second, err := alice.Send(w.ctx, conv, text("second"))
	require.NoError(t, err)
	first.Timestamp, second.Timestamp = 100, 200

	fromAlice, err := bob.OpenDirect(w.ctx, "alice")
	require.NoError(t, err)
	got := bob.Decrypt(fromAlice, []domain.WireEnvelope{second, first})
	require.Equal(t, "first", string(got[0].Plaintext))
	require.Equal(t, "second", string(got[1].Plaintext))
}

func TestEavesdropperCannotRead(t *testing.T) {
	w := newWorld(t)
	alice, eve := w.user(t, "alice"), w.user(t, "eve")
	w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	env, err := alice.Send(w.ctx, conv, text("for bob only"))
	require.NoError(t, err)

	fromAlice, err := eve.OpenDirect(w.ctx, "alice")
	require.NoError(t, err)
	got := eve.Decrypt(fromAlice, []domain.WireEnvelope{env})
	require.Equal(t, domain.StatusUndecryptable, got[0].Status)
	require.ErrorIs(t, got[0].Err, domain.ErrAuthentication)
}

func TestReceiveDirectFromUnknownSender(t *testing.T) {
	w := newWorld(t)
	bob := w.user(t, "bob")

	// An envelope from a user who never registered a key.
	require.NoError(t, w.relay.SendMessage(w.ctx, domain.WireEnvelope{
		Kind:      domain.KindDirect,
		From:      "ghost",
		To:        "bob",
		Message:   "00",
		Nonce:     hex.EncodeToString(make([]byte, domain.NonceSize)),
		Type:      domain.PayloadText,
		Timestamp: 1,
	}))

	got, err := bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusUndecryptable, got[0].Status)
	require.ErrorIs(t, got[0].Err, relay.ErrNotFound)

	left, err := w.relay.FetchMessages(w.ctx, "bob", 0)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestReceiveDirectKeepsMessagesWhenKeyLookupFails(t *testing.T) {
	w := newWorld(t)
	alice, carol := w.user(t, "alice"), w.user(t, "carol")
	bob := w.userWith(t, "bob", &stubDirectory{
		Directory: w.relay,
		failKey:   map[domain.Username]bool{"alice": true},
	})

	toBob, err := carol.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	_, err = carol.Send(w.ctx, toBob, text("from carol"))
	require.NoError(t, err)
	toBob, err = alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)
	_, err = alice.Send(w.ctx, toBob, text("important"))
	require.NoError(t, err)

	got, err := bob.ReceiveDirect(w.ctx, 0)
	require.ErrorIs(t, err, session.ErrMessagesPending)
	require.ErrorContains(t, err, "relay timeout")
	require.Len(t, got, 1)
	require.Equal(t, "from carol", string(got[0].Plaintext))

	got, err = bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusDecrypted, got[0].Status)
	require.Equal(t, "important", string(got[0].Plaintext))

	got, err = bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReceiveDirectStopsAtFirstPendingEnvelope(t *testing.T) {
	w := newWorld(t)
	alice, carol := w.user(t, "alice"), w.user(t, "carol")
	bob := w.userWith(t, "bob", &stubDirectory{
		Directory: w.relay,
		failKey:   map[domain.Username]bool{"alice": true},
	})

	for _, sender := range []*session.Controller{alice, carol} {
		conv, err := sender.OpenDirect(w.ctx, "bob")
		require.NoError(t, err)
		_, err = sender.Send(w.ctx, conv, text("hi"))
		require.NoError(t, err)
	}

	got, err := bob.ReceiveDirect(w.ctx, 0)
	require.ErrorIs(t, err, session.ErrMessagesPending)
	require.Empty(t, got)
	queued, err := w.relay.FetchMessages(w.ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, queued, 2)

	got, err = bob.ReceiveDirect(w.ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, domain.Username("alice"), got[0].From)
	require.Equal(t, domain.Username("carol"), got[1].From)
}

func TestOpenGroupRejectsBrokenKeyLink(t *testing.T) {
	w := newWorld(t)
	w.user(t, "admin")
	alice := w.user(t, "alice")
	groups := group.New(groupkey.New(w.suite), w.relay, nil)
	g, err := groups.CreateGroup(w.ctx, w.identity(t, "admin"), "team", []domain.Username{"alice"})
	require.NoError(t, err)
	v, err := groups.RotateKey(w.ctx, w.identity(t, "admin"), g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.KeyVersion(2), v)

	_, err = alice.OpenGroup(w.ctx, g.ID)
	require.NoError(t, err)

	forged := w.userWith(t, "alice", &stubDirectory{
		Directory: w.relay,
		keyLink:   hex.EncodeToString(make([]byte, 32)),
	})
	conv, err := forged.OpenGroup(w.ctx, g.ID)
	require.ErrorIs(t, err, domain.ErrAuthentication)
	_, err = forged.Send(w.ctx, conv, text("x"))
	require.ErrorIs(t, err, session.ErrConversationClosed)
}

func TestGroupConversation(t *testing.T) {
	w := newWorld(t)
	admin, alice, bob := w.user(t, "admin"), w.user(t, "alice"), w.user(t, "bob")
	groups := group.New(groupkey.New(w.suite), w.relay, nil)

	g, err := groups.CreateGroup(w.ctx, w.identity(t, "admin"), "team", []domain.Username{"alice", "bob"})
	require.NoError(t, err)

	conv, err := alice.OpenGroup(w.ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.GroupConversation(g.ID), conv)
	sent, err := alice.Send(w.ctx, conv, text("hello team"))
	require.NoError(t, err)
	require.Equal(t, domain.KeyVersion(1), sent.KeyVersion)

	// bob has not opened the group yet; receiving opens it.
	got, err := bob.ReceiveGroup(w.ctx, conv, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.StatusDecrypted, got[0].Status)
	require.Equal(t, "hello team", string(got[0].Plaintext))
	require.Equal(t, domain.Username("alice"), got[0].From)

	// Removing bob rotates the key; the admin writes under version 2.
	require.NoError(t, groups.RemoveMember(w.ctx, w.identity(t, "admin"), g.ID, "bob", true))
	_, err = admin.OpenGroup(w.ctx, g.ID)
	require.NoError(t, err)
	rotated, err := admin.Send(w.ctx, conv, text("bob is gone"))
	require.NoError(t, err)
	require.Equal(t, domain.KeyVersion(2), rotated.KeyVersion)

	// alice still holds only version 1 and picks up version 2 on demand.
	got, err = alice.ReceiveGroup(w.ctx, conv, sent.Timestamp-1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, m := range got {
		require.Equal(t, domain.StatusDecrypted, m.Status, m.ID)
	}
	require.Equal(t, "bob is gone", string(got[1].Plaintext))

	// bob keeps reading history but never the rotated message.
	got, err = bob.ReceiveGroup(w.ctx, conv, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, domain.StatusDecrypted, got[0].Status)
	require.Equal(t, domain.StatusAwaitingKey, got[1].Status)
	require.ErrorIs(t, got[1].Err, domain.ErrKeyPackageNotFound)
	require.Nil(t, got[1].Plaintext)

	bob.Close(conv)
	_, err = bob.OpenGroup(w.ctx, g.ID)
	require.ErrorIs(t, err, domain.ErrKeyPackageNotFound)
}

func TestOpenGroupFailures(t *testing.T) {
	w := newWorld(t)
	outsider := w.user(t, "outsider")
	w.user(t, "admin")
	w.user(t, "alice")
	groups := group.New(groupkey.New(w.suite), w.relay, nil)
	g, err := groups.CreateGroup(w.ctx, w.identity(t, "admin"), "team", []domain.Username{"alice"})
	require.NoError(t, err)

	_, err = outsider.OpenGroup(w.ctx, g.ID)
	require.ErrorIs(t, err, domain.ErrKeyPackageNotFound)
	_, err = outsider.OpenGroup(w.ctx, "no-such-group")
	require.ErrorIs(t, err, domain.ErrKeyPackageNotFound)
	_, err = outsider.Send(w.ctx, domain.GroupConversation(g.ID), text("x"))
	require.ErrorIs(t, err, session.ErrConversationClosed)
}

func TestGroupMessageWithoutNonceIsUndecryptable(t *testing.T) {
	w := newWorld(t)
	w.user(t, "admin")
	alice := w.user(t, "alice")
	groups := group.New(groupkey.New(w.suite), w.relay, nil)
	g, err := groups.CreateGroup(w.ctx, w.identity(t, "admin"), "team", []domain.Username{"alice"})
	require.NoError(t, err)
	conv, err := alice.OpenGroup(w.ctx, g.ID)
	require.NoError(t, err)

	env, err := alice.Send(w.ctx, conv, text("x"))
	require.NoError(t, err)
	env.Nonce = ""
	got := alice.Decrypt(conv, []domain.WireEnvelope{env})
	require.Equal(t, domain.StatusUndecryptable, got[0].Status)
	require.ErrorIs(t, got[0].Err, domain.ErrAuthentication)
}

func TestListenDeliversDirectMessages(t *testing.T) {
	w := newWorld(t)
	alice, bob := w.user(t, "alice"), w.user(t, "bob")
	conv, err := alice.OpenDirect(w.ctx, "bob")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()
	received := make(chan domain.DecryptedMessage, 64)
	done := make(chan error, 1)
	go func() {
		done <- bob.Listen(ctx, func(m domain.DecryptedMessage) {
			select {
			case received <- m:
			default:
			}
		})
	}()

	// Keep sending until the subscription is live; each push drains the
	// whole mailbox.
	require.Eventually(t, func() bool {
		if _, err := alice.Send(w.ctx, conv, text("ping")); err != nil {
			return false
		}
		select {
		case m := <-received:
			return m.Status == domain.StatusDecrypted && string(m.Plaintext) == "ping"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
