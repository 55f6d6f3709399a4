package types

import "fmt"

// Group is the relay's membership record for a group conversation. It
// carries no key material; KeyLink ties KeyVersion to its predecessor.
type Group struct {
	ID         GroupID    `json:"id"`
	Name       string     `json:"name"`
	Admin      Username   `json:"admin"`
	Members    []Username `json:"members"`
	KeyVersion KeyVersion `json:"key_version"`
	KeyLink    string     `json:"key_link,omitempty"`
	CreatedUTC int64      `json:"created_utc"`
}

// HasMember reports whether u is in the member list.
func (g Group) HasMember(u Username) bool {
	for _, m := range g.Members {
		if m == u {
			return true
		}
	}
	return false
}

// GroupState is the key-distribution lifecycle of a group as seen by one
// client.
type GroupState int

const (
	GroupUninitialized GroupState = iota
	GroupKeyCreated
	GroupDistributed
	GroupActive
)

func (s GroupState) String() string {
	switch s {
	case GroupUninitialized:
		return "uninitialized"
	case GroupKeyCreated:
		return "key-created"
	case GroupDistributed:
		return "distributed"
	case GroupActive:
		return "active"
	default:
		return fmt.Sprintf("GroupState(%d)", int(s))
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Member additions and removals happen inside Active, and a member that
// only receives a package moves straight from Uninitialized to Active.
func (s GroupState) CanTransition(next GroupState) bool {
	switch s {
	case GroupUninitialized:
		return next == GroupKeyCreated || next == GroupActive
	case GroupKeyCreated:
		return next == GroupDistributed
	case GroupDistributed:
		return next == GroupActive
	case GroupActive:
		return next == GroupActive
	default:
		return false
	}
}

// KeyPackage is one group key wrapped for one recipient with a pairwise box
// between the wrapper's private key and the recipient's public key.
type KeyPackage struct {
	GroupID      GroupID
	Recipient    Username
	WrappedBy    Username
	KeyVersion   KeyVersion
	EncryptedKey []byte
	Nonce        [NonceSize]byte
}

// WireKeyPackage is the relay row for a KeyPackage, one per
// (group, member, version).
type WireKeyPackage struct {
	GroupID      GroupID    `json:"group_id"`
	MemberID     Username   `json:"member_id"`
	WrappedBy    Username   `json:"wrapped_by"`
	KeyVersion   KeyVersion `json:"key_version"`
	EncryptedKey string     `json:"encrypted_key"`
	Nonce        string     `json:"nonce"`
}
