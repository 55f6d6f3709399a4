package types

// ConversationKind distinguishes direct from group conversations.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Conversation identifies one open chat: a peer for direct chats, a group id
// for group chats.
type Conversation struct {
	Kind  ConversationKind `json:"kind"`
	Peer  Username         `json:"peer,omitempty"`
	Group GroupID          `json:"group,omitempty"`
}

// DirectConversation returns the conversation with peer.
func DirectConversation(peer Username) Conversation {
	return Conversation{Kind: KindDirect, Peer: peer}
}

// GroupConversation returns the conversation of group id.
func GroupConversation(id GroupID) Conversation {
	return Conversation{Kind: KindGroup, Group: id}
}

// String returns "direct:<peer>" or "group:<id>".
func (c Conversation) String() string {
	if c.Kind == KindGroup {
		return "group:" + string(c.Group)
	}
	return "direct:" + string(c.Peer)
}
