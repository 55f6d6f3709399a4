package interfaces

import domaintypes "cipherchat/internal/domain/types"

// ProfileStore persists the non-secret client profile per relay: which
// username was registered and with which public key.
type ProfileStore interface {
	SaveProfile(profile domaintypes.Profile) error
	LoadProfile(serverURL string, username domaintypes.Username) (domaintypes.Profile, bool, error)
}

// RelayStore is the relay's persistence: public keys, group records, key
// packages, direct mailboxes and group logs.
type RelayStore interface {
	PutPublicKey(user domaintypes.Username, pub domaintypes.X25519Public) error
	GetPublicKey(user domaintypes.Username) (domaintypes.X25519Public, bool, error)

	PutGroup(group domaintypes.Group) error
	GetGroup(id domaintypes.GroupID) (domaintypes.Group, bool, error)
	// UpdateGroup applies fn to the stored group atomically.
	UpdateGroup(id domaintypes.GroupID, fn func(*domaintypes.Group) error) (domaintypes.Group, error)

	PutKeyPackages(packages []domaintypes.WireKeyPackage) error
	GetKeyPackages(id domaintypes.GroupID, member domaintypes.Username) ([]domaintypes.WireKeyPackage, error)
	DeleteKeyPackages(id domaintypes.GroupID, member domaintypes.Username) error

	EnqueueDirect(envelope domaintypes.WireEnvelope) error
	PeekDirect(user domaintypes.Username, limit int) ([]domaintypes.WireEnvelope, error)
	AckDirect(user domaintypes.Username, count int) error

	AppendGroupMessage(envelope domaintypes.WireEnvelope) error
	GroupMessagesSince(id domaintypes.GroupID, since int64) ([]domaintypes.WireEnvelope, error)

	Close() error
}
