package models

import (
	"sort"
	"strings"
	"time"
)

const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestDeclined = "declined"
	FriendRequestCanceled = "canceled"

	RelationshipCoparent = "coparent"
	RelationshipSupport  = "support"
	RelationshipOther    = "other"
)

// FriendRequest is a document in the friend_requests collection.
type FriendRequest struct {
	ID               string     `json:"id" firestore:"-"`
	SenderID         string     `json:"senderId" firestore:"senderId"`
	ReceiverID       string     `json:"receiverId" firestore:"receiverId"`
	Status           string     `json:"status" firestore:"status"`
	RelationshipType string     `json:"relationshipType" firestore:"relationshipType"`
	SharedChildren   []string   `json:"sharedChildren,omitempty" firestore:"sharedChildren,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt" firestore:"updatedAt"`
	RespondedAt      *time.Time `json:"respondedAt,omitempty" firestore:"respondedAt,omitempty"`
}

// FriendRequestID is the document id shared by every request between a and b,
// in either direction.
func FriendRequestID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// Friend is stored at friends/{uid}/friendsList/{friendId}, mirrored on both sides.
type Friend struct {
	FriendID         string    `json:"friendId" firestore:"-"`
	RelationshipType string    `json:"relationshipType" firestore:"relationshipType"`
	SharedChildren   []string  `json:"sharedChildren,omitempty" firestore:"sharedChildren,omitempty"`
	RequestID        string    `json:"requestId" firestore:"requestId"`
	Since            time.Time `json:"since" firestore:"since"`
}
