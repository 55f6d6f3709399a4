package interfaces

import (
	"context"

	domaintypes "cipherchat/internal/domain/types"
)

// IdentityService derives identities from credentials.
type IdentityService interface {
	DeriveIdentity(
		ctx context.Context,
		password string,
		label domaintypes.Username,
	) (domaintypes.Identity, error)
	FingerprintIdentity(ctx context.Context, password string, label domaintypes.Username) (
		domaintypes.Fingerprint,
		error,
	)
}

// GroupService creates groups and manages their membership and keys.
type GroupService interface {
	CreateGroup(
		ctx context.Context,
		admin domaintypes.Identity,
		name string,
		members []domaintypes.Username,
	) (domaintypes.Group, error)
	AddMember(
		ctx context.Context,
		actor domaintypes.Identity,
		id domaintypes.GroupID,
		member domaintypes.Username,
	) error
	RemoveMember(
		ctx context.Context,
		actor domaintypes.Identity,
		id domaintypes.GroupID,
		member domaintypes.Username,
		rotate bool,
	) error
	RotateKey(ctx context.Context, actor domaintypes.Identity, id domaintypes.GroupID) (domaintypes.KeyVersion, error)
}

// SessionController binds open conversations to their keys and routes
// messages through the transport.
type SessionController interface {
	Unlock(ctx context.Context, password string, label domaintypes.Username) error
	Lock()
	OpenDirect(ctx context.Context, peer domaintypes.Username) (domaintypes.Conversation, error)
	OpenGroup(ctx context.Context, id domaintypes.GroupID) (domaintypes.Conversation, error)
	Close(conv domaintypes.Conversation)
	Send(
		ctx context.Context,
		conv domaintypes.Conversation,
		msg domaintypes.OutgoingMessage,
	) (domaintypes.WireEnvelope, error)
	Decrypt(conv domaintypes.Conversation, envelopes []domaintypes.WireEnvelope) []domaintypes.DecryptedMessage
	ReceiveDirect(ctx context.Context, limit int) ([]domaintypes.DecryptedMessage, error)
	ReceiveGroup(
		ctx context.Context,
		conv domaintypes.Conversation,
		since int64,
	) ([]domaintypes.DecryptedMessage, error)
	Listen(ctx context.Context, handle func(domaintypes.DecryptedMessage)) error
}
