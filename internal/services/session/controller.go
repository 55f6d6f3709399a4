package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/protocol/groupkey"
	"cipherchat/internal/util/logx"
)

var (
	// ErrLocked is returned when no identity is unlocked.
	ErrLocked = errors.New("session is locked")
	// ErrConversationClosed is returned when a conversation's key is not
	// loaded. Open it first.
	ErrConversationClosed = errors.New("conversation is not open")
)

// groupKeys holds every key version of one group this member could unwrap.
type groupKeys struct {
	current  domain.KeyVersion
	versions map[domain.KeyVersion]domain.SymmetricKey
}

// Controller binds conversations to their keys and routes messages through
// the transport. It is safe for concurrent use.
type Controller struct {
	suite *crypto.Suite
	keys  *groupkey.Manager
	ids   domain.IdentityService
	dir   domain.Directory
	tr    domain.Transport
	log   logrus.FieldLogger

	mu     sync.RWMutex
	self   *domain.Identity
	direct map[domain.Username]domain.SymmetricKey
	groups map[domain.GroupID]*groupKeys
}

// New returns a locked controller. A nil logger discards output.
func New(
	suite *crypto.Suite,
	ids domain.IdentityService,
	dir domain.Directory,
	tr domain.Transport,
	log logrus.FieldLogger,
) *Controller {
	return &Controller{
		suite:  suite,
		keys:   groupkey.New(suite),
		ids:    ids,
		dir:    dir,
		tr:     tr,
		log:    logx.OrDiscard(log),
		direct: make(map[domain.Username]domain.SymmetricKey),
		groups: make(map[domain.GroupID]*groupKeys),
	}
}

// Unlock derives the identity for (password, label) and makes it current.
// Unlocking as someone else first drops every cached key.
func (c *Controller) Unlock(ctx context.Context, password string, label domain.Username) error {
	id, err := c.ids.DeriveIdentity(ctx, password, label)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipeLocked()
	c.self = &id
	c.log.WithFields(logrus.Fields{
		"user":        id.Label,
		"fingerprint": crypto.Fingerprint(id.Public.Slice()),
	}).Info("session unlocked")
	return nil
}

// Lock forgets the identity and every conversation key.
func (c *Controller) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipeLocked()
}

func (c *Controller) wipeLocked() {
	for peer, k := range c.direct {
		crypto.Wipe(k[:])
		delete(c.direct, peer)
	}
	for id, gk := range c.groups {
		wipeGroup(gk)
		delete(c.groups, id)
	}
	if c.self != nil {
		crypto.Wipe(c.self.Private[:])
		c.self = nil
	}
}

func wipeGroup(gk *groupKeys) {
	for v, k := range gk.versions {
		crypto.Wipe(k[:])
		delete(gk.versions, v)
	}
}

// Self returns the unlocked user and public key.
func (c *Controller) Self() (domain.Username, domain.X25519Public, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.self == nil {
		return "", domain.X25519Public{}, false
	}
	return c.self.Label, c.self.Public, true
}

// identity returns a copy of the unlocked identity.
func (c *Controller) identity() (domain.Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.self == nil {
		return domain.Identity{}, ErrLocked
	}
	return *c.self, nil
}

// OpenDirect fetches peer's public key and derives the shared key once.
// Reopening an open conversation is free.
func (c *Controller) OpenDirect(ctx context.Context, peer domain.Username) (domain.Conversation, error) {
	conv := domain.DirectConversation(peer)
	me, err := c.identity()
	if err != nil {
		return conv, err
	}
	if _, ok := c.directKey(peer); ok {
		return conv, nil
	}

	pub, err := c.dir.FetchPublicKey(ctx, peer)
	if err != nil {
		return conv, fmt.Errorf("public key of %s: %w", peer, err)
	}
	key, err := c.suite.DeriveSharedKey(me.Private, pub)
	if err != nil {
		return conv, fmt.Errorf("shared key with %s: %w", peer, err)
	}

	c.mu.Lock()
	// A concurrent open may have won; both keys are identical.
	if c.self != nil && c.self.Label == me.Label {
		c.direct[peer] = key
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"user":        me.Label,
		"peer":        peer,
		"fingerprint": crypto.Fingerprint(pub.Slice()),
	}).Info("direct conversation opened")
	return conv, nil
}

// OpenGroup unwraps the caller's key packages for group id. It fails with
// ErrKeyPackageNotFound when the current key version is not available,
// including when the directory could not be reached.
func (c *Controller) OpenGroup(ctx context.Context, id domain.GroupID) (domain.Conversation, error) {
	conv := domain.GroupConversation(id)
	me, err := c.identity()
	if err != nil {
		return conv, err
	}
	g, err := c.dir.FetchGroup(ctx, id)
	if err != nil {
		return conv, fmt.Errorf("%w: group %s: %w", domain.ErrKeyPackageNotFound, id, err)
	}
	if err := c.loadGroupKeys(ctx, me, g); err != nil {
		return conv, err
	}
	c.log.WithFields(logrus.Fields{
		"user":        me.Label,
		"group":       id,
		"key_version": g.KeyVersion,
	}).Info("group conversation opened")
	return conv, nil
}

// loadGroupKeys unwraps every package the member holds for g and caches
// the keys. It fails if g's current version stays unavailable, or if it
// does not carry the recorded link from the version before it.
func (c *Controller) loadGroupKeys(ctx context.Context, me domain.Identity, g domain.Group) error {
	wires, err := c.dir.FetchKeyPackages(ctx, g.ID, me.Label)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrKeyPackageNotFound, err)
	}

	loaded := &groupKeys{current: g.KeyVersion, versions: make(map[domain.KeyVersion]domain.SymmetricKey)}
	wrappers := map[domain.Username]domain.X25519Public{me.Label: me.Public}
	var currentErr error
	for _, w := range wires {
		gk, err := c.unwrap(ctx, me, w, wrappers)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"group":       g.ID,
				"key_version": w.KeyVersion,
			}).Warn("key package unusable")
			if w.KeyVersion == g.KeyVersion {
				currentErr = err
			}
			continue
		}
		loaded.versions[w.KeyVersion] = gk
	}
	if _, ok := loaded.versions[g.KeyVersion]; !ok {
		wipeGroup(loaded)
		if currentErr != nil {
			return currentErr
		}
		return fmt.Errorf("%w: %s has no key for version %d of group %s",
			domain.ErrKeyPackageNotFound, me.Label, g.KeyVersion, g.ID)
	}
	if err := checkKeyLink(g, loaded); err != nil {
		wipeGroup(loaded)
		c.log.WithError(err).WithField("group", g.ID).Error("group key rejected")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil || c.self.Label != me.Label {
		wipeGroup(loaded)
		return ErrLocked
	}
	if old, ok := c.groups[g.ID]; ok {
		wipeGroup(old)
	}
	c.groups[g.ID] = loaded
	return nil
}

// checkKeyLink verifies that the current key was rotated from the
// previous one when both are held and the group records a link.
func checkKeyLink(g domain.Group, gk *groupKeys) error {
	if g.KeyVersion < 2 || g.KeyLink == "" {
		return nil
	}
	prev, ok := gk.versions[g.KeyVersion-1]
	if !ok {
		return nil
	}
	link, err := hex.DecodeString(g.KeyLink)
	if err != nil || !groupkey.VerifyLink(prev, gk.versions[g.KeyVersion], link) {
		return fmt.Errorf("%w: key version %d of group %s does not follow version %d",
			domain.ErrAuthentication, g.KeyVersion, g.ID, g.KeyVersion-1)
	}
	return nil
}

func (c *Controller) unwrap(
	ctx context.Context,
	me domain.Identity,
	w domain.WireKeyPackage,
	wrappers map[domain.Username]domain.X25519Public,
) (domain.SymmetricKey, error) {
	pkg, err := groupkey.FromWire(w)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	pub, ok := wrappers[pkg.WrappedBy]
	if !ok {
		if pub, err = c.dir.FetchPublicKey(ctx, pkg.WrappedBy); err != nil {
			return domain.SymmetricKey{}, fmt.Errorf("%w: wrapper %s: %w", domain.ErrKeyPackageNotFound, pkg.WrappedBy, err)
		}
		wrappers[pkg.WrappedBy] = pub
	}
	return c.keys.Unwrap(&pkg, pub, me.Private)
}

// Close drops the conversation's keys.
func (c *Controller) Close(conv domain.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch conv.Kind {
	case domain.KindDirect:
		if k, ok := c.direct[conv.Peer]; ok {
			crypto.Wipe(k[:])
			delete(c.direct, conv.Peer)
		}
	case domain.KindGroup:
		if gk, ok := c.groups[conv.Group]; ok {
			wipeGroup(gk)
			delete(c.groups, conv.Group)
		}
	}
}

func (c *Controller) directKey(peer domain.Username) (domain.SymmetricKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.direct[peer]
	return k, ok
}

// groupKey returns the key for version, or the current key when version is
// zero, along with the version it belongs to.
func (c *Controller) groupKey(id domain.GroupID, version domain.KeyVersion) (domain.SymmetricKey, domain.KeyVersion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	gk, ok := c.groups[id]
	if !ok {
		return domain.SymmetricKey{}, 0, false
	}
	if version == 0 {
		version = gk.current
	}
	k, ok := gk.versions[version]
	return k, version, ok
}

func (c *Controller) groupOpen(id domain.GroupID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.groups[id]
	return ok
}

// Compile-time assertion that Controller implements domain.SessionController.
var _ domain.SessionController = (*Controller)(nil)
