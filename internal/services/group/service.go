package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/protocol/groupkey"
	"cipherchat/internal/util/logx"
)

var (
	// ErrNotMember is returned when the actor or target is not in the group.
	ErrNotMember = errors.New("not a member of the group")
	// ErrNotAdmin is returned when a non-admin removes someone else.
	ErrNotAdmin = errors.New("only the group admin can remove other members")
	// ErrNoMembers is returned when a group would be created empty.
	ErrNoMembers = errors.New("group needs at least one member besides the admin")
)

// Service creates groups and manages their membership and key versions.
type Service struct {
	keys *groupkey.Manager
	dir  domain.Directory
	log  logrus.FieldLogger
}

// New returns a group service. A nil logger discards output.
func New(keys *groupkey.Manager, dir domain.Directory, log logrus.FieldLogger) *Service {
	return &Service{keys: keys, dir: dir, log: logx.OrDiscard(log)}
}

func advance(state *domain.GroupState, next domain.GroupState) error {
	if !state.CanTransition(next) {
		return fmt.Errorf("group state %s cannot move to %s", *state, next)
	}
	*state = next
	return nil
}

// CreateGroup creates a group administered by admin and distributes its
// first key (version 1) to admin and every member.
//
// Steps:
//  1. Resolve every member's public key from the directory.
//  2. Generate the group key.
//  3. Wrap it once per member, the admin included.
//  4. Publish the group record, then the packages.
func (s *Service) CreateGroup(
	ctx context.Context,
	admin domain.Identity,
	name string,
	members []domain.Username,
) (domain.Group, error) {
	state := domain.GroupUninitialized

	all := uniqueMembers(admin.Label, members)
	if len(all) < 2 {
		return domain.Group{}, ErrNoMembers
	}
	roster, err := s.roster(ctx, admin, all)
	if err != nil {
		return domain.Group{}, err
	}

	gk, err := s.keys.CreateGroupKey()
	if err != nil {
		return domain.Group{}, err
	}
	defer wipeKey(&gk)
	if err := advance(&state, domain.GroupKeyCreated); err != nil {
		return domain.Group{}, err
	}

	g := domain.Group{
		ID:         domain.GroupID(uuid.NewString()),
		Name:       name,
		Admin:      admin.Label,
		Members:    all,
		KeyVersion: 1,
		CreatedUTC: time.Now().Unix(),
	}
	pkgs, err := s.keys.WrapForMembers(gk, g.ID, g.KeyVersion, admin.Label, roster, admin.Private)
	if err != nil {
		return domain.Group{}, err
	}
	if err := advance(&state, domain.GroupDistributed); err != nil {
		return domain.Group{}, err
	}

	if err := s.dir.CreateGroup(ctx, g); err != nil {
		return domain.Group{}, fmt.Errorf("create group: %w", err)
	}
	if err := s.dir.PublishKeyPackages(ctx, groupkey.ToWireAll(pkgs)); err != nil {
		return domain.Group{}, fmt.Errorf("publish key packages: %w", err)
	}
	if err := advance(&state, domain.GroupActive); err != nil {
		return domain.Group{}, err
	}

	s.log.WithFields(logrus.Fields{
		"group":       g.ID,
		"user":        admin.Label,
		"members":     len(g.Members),
		"key_version": g.KeyVersion,
	}).Info("group created")
	return g, nil
}

// AddMember wraps the current group key for member and adds it to the
// group. Any current member may add; the actor must already hold the key.
func (s *Service) AddMember(
	ctx context.Context,
	actor domain.Identity,
	id domain.GroupID,
	member domain.Username,
) error {
	g, err := s.dir.FetchGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch group: %w", err)
	}
	if !g.HasMember(actor.Label) {
		return fmt.Errorf("%w: %s", ErrNotMember, actor.Label)
	}
	log := s.log.WithFields(logrus.Fields{"group": id, "user": actor.Label, "member": member})
	if g.HasMember(member) {
		log.Debug("member already present")
		return nil
	}

	gk, err := s.currentKey(ctx, actor, g)
	if err != nil {
		return err
	}
	defer wipeKey(&gk)

	roster, err := s.roster(ctx, actor, []domain.Username{member})
	if err != nil {
		return err
	}
	pkgs, err := s.keys.WrapForMembers(gk, id, g.KeyVersion, actor.Label, roster, actor.Private)
	if err != nil {
		return err
	}
	if err := s.dir.PublishKeyPackages(ctx, groupkey.ToWireAll(pkgs)); err != nil {
		return fmt.Errorf("publish key package: %w", err)
	}
	if err := s.dir.AddGroupMember(ctx, id, member); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	log.WithField("key_version", g.KeyVersion).Info("member added")
	return nil
}

// RemoveMember drops member from the group and deletes its packages. When
// rotate is set the key first moves to a new version wrapped only for the
// remaining members, so a failed rotation leaves the member in place and
// the call can be retried. A member leaving on its own never rotates: it
// would learn the new key.
func (s *Service) RemoveMember(
	ctx context.Context,
	actor domain.Identity,
	id domain.GroupID,
	member domain.Username,
	rotate bool,
) error {
	g, err := s.dir.FetchGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch group: %w", err)
	}
	leaving := member == actor.Label
	if !leaving && g.Admin != actor.Label {
		return ErrNotAdmin
	}
	if !g.HasMember(member) {
		return fmt.Errorf("%w: %s", ErrNotMember, member)
	}
	log := s.log.WithFields(logrus.Fields{"group": id, "user": actor.Label, "member": member})

	if rotate && !leaving {
		remaining := g
		remaining.Members = without(g.Members, member)
		if _, err := s.rotate(ctx, actor, remaining); err != nil {
			return fmt.Errorf("rotate before removing %s: %w", member, err)
		}
	}

	if err := s.dir.RemoveGroupMember(ctx, id, member); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := s.dir.DeleteKeyPackages(ctx, id, member); err != nil {
		return fmt.Errorf("delete key packages: %w", err)
	}
	log.Info("member removed")
	if !rotate && !leaving {
		log.Warn("group key not rotated; removed member can still read new messages")
	}
	return nil
}

// RotateKey moves the group to a fresh key without changing membership.
func (s *Service) RotateKey(
	ctx context.Context,
	actor domain.Identity,
	id domain.GroupID,
) (domain.KeyVersion, error) {
	g, err := s.dir.FetchGroup(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("fetch group: %w", err)
	}
	if !g.HasMember(actor.Label) {
		return 0, fmt.Errorf("%w: %s", ErrNotMember, actor.Label)
	}
	return s.rotate(ctx, actor, g)
}

// rotate publishes version g.KeyVersion+1 for g.Members.
func (s *Service) rotate(ctx context.Context, actor domain.Identity, g domain.Group) (domain.KeyVersion, error) {
	old, err := s.currentKey(ctx, actor, g)
	if err != nil {
		return 0, err
	}
	defer wipeKey(&old)

	rot, err := s.keys.Rotate(old)
	if err != nil {
		return 0, err
	}
	defer wipeKey(&rot.Key)

	roster, err := s.roster(ctx, actor, g.Members)
	if err != nil {
		return 0, err
	}
	next := g.KeyVersion + 1
	pkgs, err := s.keys.WrapForMembers(rot.Key, g.ID, next, actor.Label, roster, actor.Private)
	if err != nil {
		return 0, err
	}
	if err := s.dir.PublishKeyPackages(ctx, groupkey.ToWireAll(pkgs)); err != nil {
		return 0, fmt.Errorf("publish rotated key packages: %w", err)
	}
	if err := s.dir.UpdateGroupKey(ctx, g.ID, next, rot.LinkHex()); err != nil {
		return 0, fmt.Errorf("update group key version: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"group":       g.ID,
		"user":        actor.Label,
		"key_version": next,
	}).Info("group key rotated")
	return next, nil
}

// currentKey unwraps actor's package for g's current key version. Any
// failure to obtain the package reads as ErrKeyPackageNotFound.
func (s *Service) currentKey(ctx context.Context, actor domain.Identity, g domain.Group) (domain.SymmetricKey, error) {
	wires, err := s.dir.FetchKeyPackages(ctx, g.ID, actor.Label)
	if err != nil {
		return domain.SymmetricKey{}, fmt.Errorf("%w: %w", domain.ErrKeyPackageNotFound, err)
	}
	w, ok := groupkey.Select(wires, g.KeyVersion)
	if !ok {
		return domain.SymmetricKey{}, fmt.Errorf("%w: %s has none for version %d",
			domain.ErrKeyPackageNotFound, actor.Label, g.KeyVersion)
	}
	pkg, err := groupkey.FromWire(*w)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	wrapper := actor.Public
	if pkg.WrappedBy != actor.Label {
		if wrapper, err = s.dir.FetchPublicKey(ctx, pkg.WrappedBy); err != nil {
			return domain.SymmetricKey{}, fmt.Errorf("%w: wrapper key: %w", domain.ErrKeyPackageNotFound, err)
		}
	}
	return s.keys.Unwrap(&pkg, wrapper, actor.Private)
}

// roster maps each member to its public key. The actor's own key comes
// from its identity rather than the directory.
func (s *Service) roster(
	ctx context.Context,
	actor domain.Identity,
	members []domain.Username,
) (map[domain.Username]domain.X25519Public, error) {
	out := make(map[domain.Username]domain.X25519Public, len(members))
	for _, m := range members {
		if m == actor.Label {
			out[m] = actor.Public
			continue
		}
		pub, err := s.dir.FetchPublicKey(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("public key of %s: %w", m, err)
		}
		out[m] = pub
	}
	return out, nil
}

func uniqueMembers(admin domain.Username, members []domain.Username) []domain.Username {
	seen := map[domain.Username]bool{admin: true}
	out := []domain.Username{admin}
	for _, m := range members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func without(members []domain.Username, drop domain.Username) []domain.Username {
	out := make([]domain.Username, 0, len(members))
	for _, m := range members {
		if m != drop {
			out = append(out, m)
		}
	}
	return out
}

func wipeKey(k *domain.SymmetricKey) { crypto.Wipe(k[:]) }

// Compile-time assertion that Service implements domain.GroupService.
var _ domain.GroupService = (*Service)(nil)
