package types

import (
	"encoding/hex"
	"fmt"
)

// NonceSize is the XSalsa20-Poly1305 nonce length used by secretbox and box.
const NonceSize = 24

// PayloadType tells the receiver how to present a decrypted payload.
type PayloadType string

const (
	PayloadText PayloadType = "text"
	PayloadFile PayloadType = "file"
)

// Sealed is the output of one authenticated encryption: a fresh nonce and
// the ciphertext (tag included).
type Sealed struct {
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// DirectEnvelope is an encrypted direct message under a pairwise shared key.
type DirectEnvelope struct {
	Sealed
}

// GroupEnvelope is an encrypted group message under the group key of
// KeyVersion.
type GroupEnvelope struct {
	KeyVersion KeyVersion
	Sealed
}

// WireEnvelope is the JSON form exchanged with the relay. Binary fields are
// lowercase hex. Kind selects whether To or GroupID is meaningful.
type WireEnvelope struct {
	ID         MessageID        `json:"id,omitempty"`
	Kind       ConversationKind `json:"kind"`
	From       Username         `json:"from"`
	To         Username         `json:"to,omitempty"`
	GroupID    GroupID          `json:"group_id,omitempty"`
	KeyVersion KeyVersion       `json:"key_version,omitempty"`
	Message    string           `json:"message"`
	Nonce      string           `json:"nonce,omitempty"`
	Type       PayloadType      `json:"type"`
	FileType   string           `json:"fileType,omitempty"`
	FileName   string           `json:"fileName,omitempty"`
	Timestamp  int64            `json:"timestamp"`
}

// EncodeSealed fills Message and Nonce from s.
func (w *WireEnvelope) EncodeSealed(s Sealed) {
	w.Message = hex.EncodeToString(s.Ciphertext)
	w.Nonce = hex.EncodeToString(s.Nonce[:])
}

// DecodeSealed parses Message and Nonce. A missing or malformed nonce makes
// the envelope undecryptable, so it reports ErrAuthentication.
func (w WireEnvelope) DecodeSealed() (Sealed, error) {
	var s Sealed
	if w.Nonce == "" {
		return s, fmt.Errorf("%w: envelope carries no nonce", ErrAuthentication)
	}
	nonce, err := hex.DecodeString(w.Nonce)
	if err != nil || len(nonce) != NonceSize {
		return s, fmt.Errorf("%w: malformed nonce", ErrAuthentication)
	}
	ct, err := hex.DecodeString(w.Message)
	if err != nil {
		return s, fmt.Errorf("%w: malformed ciphertext", ErrAuthentication)
	}
	copy(s.Nonce[:], nonce)
	s.Ciphertext = ct
	return s, nil
}

// EncodeDirect fills w from a direct envelope.
func (w *WireEnvelope) EncodeDirect(env DirectEnvelope) {
	w.Kind = KindDirect
	w.KeyVersion = 0
	w.EncodeSealed(env.Sealed)
}

// EncodeGroup fills w from a group envelope, key version included.
func (w *WireEnvelope) EncodeGroup(env GroupEnvelope) {
	w.Kind = KindGroup
	w.KeyVersion = env.KeyVersion
	w.EncodeSealed(env.Sealed)
}

// Direct parses w as a direct envelope.
func (w WireEnvelope) Direct() (DirectEnvelope, error) {
	s, err := w.DecodeSealed()
	return DirectEnvelope{Sealed: s}, err
}

// Group parses w as a group envelope.
func (w WireEnvelope) Group() (GroupEnvelope, error) {
	s, err := w.DecodeSealed()
	return GroupEnvelope{KeyVersion: w.KeyVersion, Sealed: s}, err
}

// Conversation returns the conversation this envelope belongs to, as seen
// by the user me.
func (w WireEnvelope) Conversation(me Username) Conversation {
	if w.Kind == KindGroup {
		return GroupConversation(w.GroupID)
	}
	if w.From == me {
		return DirectConversation(w.To)
	}
	return DirectConversation(w.From)
}

// OutgoingMessage is a plaintext handed to the controller for sending.
type OutgoingMessage struct {
	Type     PayloadType
	Body     []byte
	FileName string
	FileType string
}

// MessageStatus is the user-visible outcome of decrypting one envelope.
type MessageStatus int

const (
	StatusDecrypted MessageStatus = iota
	StatusUndecryptable
	StatusAwaitingKey
)

func (s MessageStatus) String() string {
	switch s {
	case StatusDecrypted:
		return "decrypted"
	case StatusUndecryptable:
		return "message could not be decrypted"
	case StatusAwaitingKey:
		return "waiting for group key"
	default:
		return fmt.Sprintf("MessageStatus(%d)", int(s))
	}
}

// DecryptedMessage is what the controller surfaces to the UI layer.
// Plaintext is nil unless Status is StatusDecrypted; Err carries the typed
// failure otherwise.
type DecryptedMessage struct {
	ID           MessageID     `json:"id"`
	Conversation Conversation  `json:"conversation"`
	From         Username      `json:"from"`
	Type         PayloadType   `json:"type"`
	FileName     string        `json:"file_name,omitempty"`
	FileType     string        `json:"file_type,omitempty"`
	Plaintext    []byte        `json:"plaintext,omitempty"`
	Timestamp    int64         `json:"timestamp"`
	Status       MessageStatus `json:"status"`
	Err          error         `json:"-"`
}
