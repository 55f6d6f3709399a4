package domain

import (
	interfaces "cipherchat/internal/domain/interfaces"
	types "cipherchat/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username         = types.Username
	Fingerprint      = types.Fingerprint
	GroupID          = types.GroupID
	MessageID        = types.MessageID
	KeyVersion       = types.KeyVersion
	X25519Public     = types.X25519Public
	X25519Private    = types.X25519Private
	SymmetricKey     = types.SymmetricKey
	Identity         = types.Identity
	Sealed           = types.Sealed
	DirectEnvelope   = types.DirectEnvelope
	GroupEnvelope    = types.GroupEnvelope
	WireEnvelope     = types.WireEnvelope
	PayloadType      = types.PayloadType
	OutgoingMessage  = types.OutgoingMessage
	DecryptedMessage = types.DecryptedMessage
	MessageStatus    = types.MessageStatus
	ConversationKind = types.ConversationKind
	Conversation     = types.Conversation
	Group            = types.Group
	GroupState       = types.GroupState
	KeyPackage       = types.KeyPackage
	WireKeyPackage   = types.WireKeyPackage
	Profile          = types.Profile
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Directory         = interfaces.Directory
	Transport         = interfaces.Transport
	RelayClient       = interfaces.RelayClient
	IdentityService   = interfaces.IdentityService
	GroupService      = interfaces.GroupService
	SessionController = interfaces.SessionController
	ProfileStore      = interfaces.ProfileStore
	RelayStore        = interfaces.RelayStore
)

// Constants re-exported from the types subpackage.
const (
	NonceSize = types.NonceSize

	PayloadText = types.PayloadText
	PayloadFile = types.PayloadFile

	KindDirect = types.KindDirect
	KindGroup  = types.KindGroup

	StatusDecrypted     = types.StatusDecrypted
	StatusUndecryptable = types.StatusUndecryptable
	StatusAwaitingKey   = types.StatusAwaitingKey

	GroupUninitialized = types.GroupUninitialized
	GroupKeyCreated    = types.GroupKeyCreated
	GroupDistributed   = types.GroupDistributed
	GroupActive        = types.GroupActive
)

// Error sentinels re-exported from the types subpackage.
var (
	ErrKeyDerivation      = types.ErrKeyDerivation
	ErrInvalidKey         = types.ErrInvalidKey
	ErrAuthentication     = types.ErrAuthentication
	ErrKeyPackageNotFound = types.ErrKeyPackageNotFound
	ErrNotFound           = types.ErrNotFound
)

// DirectConversation returns the conversation with peer.
func DirectConversation(peer Username) Conversation { return types.DirectConversation(peer) }

// GroupConversation returns the conversation of group id.
func GroupConversation(id GroupID) Conversation { return types.GroupConversation(id) }
