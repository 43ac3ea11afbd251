package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies which side of a conversation a participant sits on.
type Role string

const (
	// RoleRequester vehicle owner asking for service
	RoleRequester Role = "requester"
	// RolePartner responding service partner (shop, mechanic, tow, rental)
	RolePartner Role = "partner"
)

// Counterpart the opposite side
func (r Role) Counterpart() Role {
	if r == RoleRequester {
		return RolePartner
	}
	return RoleRequester
}

// Participant one side of a conversation
type Participant struct {
	ID   string
	Role Role
}

// ConversationKey addresses the single logical conversation for one
// (service request, partner) pair. Exactly one conversation exists per pair;
// a request can hold several conversations when several partners engage.
type ConversationKey struct {
	RequestID   string
	RequesterID string
	PartnerID   string
}

// NewConversationKey builds the canonical key from two participants in any
// order. Both sides of the pair resolve to the same key.
func NewConversationKey(requestID string, a, b Participant) (ConversationKey, error) {
	if requestID == "" {
		return ConversationKey{}, errors.New("conversation key needs a request id")
	}
	if a.Role == b.Role {
		return ConversationKey{}, errors.New("conversation needs one requester and one partner")
	}
	key := ConversationKey{RequestID: requestID}
	for _, p := range []Participant{a, b} {
		switch p.Role {
		case RoleRequester:
			key.RequesterID = p.ID
		case RolePartner:
			key.PartnerID = p.ID
		default:
			return ConversationKey{}, fmt.Errorf("unknown role %q", p.Role)
		}
	}
	if key.RequesterID == "" || key.PartnerID == "" {
		return ConversationKey{}, errors.New("conversation key needs both participants")
	}
	return key, nil
}

// Room the transport-level channel name for this conversation.
// The requester id is not part of the address: the request already pins it.
func (k ConversationKey) Room() string {
	return fmt.Sprintf("conv:%s:%s", k.RequestID, k.PartnerID)
}

// ParseRoom splits a room name back into (requestID, partnerID).
func ParseRoom(room string) (string, string, error) {
	parts := strings.SplitN(room, ":", 3)
	if len(parts) != 3 || parts[0] != "conv" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("malformed room %q", room)
	}
	return parts[1], parts[2], nil
}

// CounterpartID the participant the viewer is talking to
func (k ConversationKey) CounterpartID(viewer Role) string {
	if viewer == RoleRequester {
		return k.PartnerID
	}
	return k.RequesterID
}
