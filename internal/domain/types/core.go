package types

// Username is the identity label a user registers with the relay.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// GroupID identifies a group conversation on the relay.
type GroupID string

// String returns the string form of the group identifier.
func (id GroupID) String() string { return string(id) }

// MessageID identifies one envelope.
type MessageID string

// String returns the string form of the message identifier.
func (id MessageID) String() string { return string(id) }

// KeyVersion numbers successive group keys. Version 0 means "no key".
type KeyVersion uint32
