package interfaces

import (
	"context"

	domaintypes "cipherchat/internal/domain/types"
)

// Directory is the contact and group directory collaborator. It only ever
// sees public keys and wrapped group keys.
type Directory interface {
	PublishPublicKey(ctx context.Context, user domaintypes.Username, pub domaintypes.X25519Public) error
	FetchPublicKey(ctx context.Context, user domaintypes.Username) (domaintypes.X25519Public, error)

	CreateGroup(ctx context.Context, group domaintypes.Group) error
	FetchGroup(ctx context.Context, id domaintypes.GroupID) (domaintypes.Group, error)
	AddGroupMember(ctx context.Context, id domaintypes.GroupID, member domaintypes.Username) error
	RemoveGroupMember(ctx context.Context, id domaintypes.GroupID, member domaintypes.Username) error
	UpdateGroupKey(
		ctx context.Context,
		id domaintypes.GroupID,
		version domaintypes.KeyVersion,
		keyLink string,
	) error

	PublishKeyPackages(ctx context.Context, packages []domaintypes.WireKeyPackage) error
	FetchKeyPackages(
		ctx context.Context,
		id domaintypes.GroupID,
		member domaintypes.Username,
	) ([]domaintypes.WireKeyPackage, error)
	DeleteKeyPackages(ctx context.Context, id domaintypes.GroupID, member domaintypes.Username) error
}

// Transport is the message relay collaborator.
type Transport interface {
	SendMessage(ctx context.Context, envelope domaintypes.WireEnvelope) error
	FetchMessages(
		ctx context.Context,
		username domaintypes.Username,
		limit int,
	) ([]domaintypes.WireEnvelope, error)
	AckMessages(ctx context.Context, username domaintypes.Username, count int) error

	SendGroupMessage(ctx context.Context, envelope domaintypes.WireEnvelope) error
	FetchGroupMessages(
		ctx context.Context,
		id domaintypes.GroupID,
		since int64,
	) ([]domaintypes.WireEnvelope, error)

	// Subscribe streams envelopes addressed to username, including group
	// messages for groups it belongs to, until ctx is done.
	Subscribe(ctx context.Context, username domaintypes.Username) (<-chan domaintypes.WireEnvelope, error)
}

// RelayClient is how we talk to the central relay server, all with context.
type RelayClient interface {
	Directory
	Transport
}
