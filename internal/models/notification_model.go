package models

import "time"

// Notification types.
const (
	NotificationFriendRequest  = "friend_request"
	NotificationFriendAccepted = "friend_accepted"
	NotificationFieldProposed  = "plan_field_proposed"
	NotificationFieldReviewed  = "plan_field_reviewed"
	NotificationEventReminder  = "event_reminder"
	NotificationEventChanged   = "event_changed"
)

// Notification is stored at notifications/{uid}/items/{id}.
type Notification struct {
	ID         string    `json:"id" firestore:"-"`
	UserID     string    `json:"userId" firestore:"-"`
	Type       string    `json:"type" firestore:"type"`
	Title      string    `json:"title" firestore:"title"`
	Body       string    `json:"body" firestore:"body"`
	EntityType string    `json:"entityType,omitempty" firestore:"entityType,omitempty"`
	EntityID   string    `json:"entityId,omitempty" firestore:"entityId,omitempty"`
	ActorID    string    `json:"actorId,omitempty" firestore:"actorId,omitempty"`
	Read       bool      `json:"read" firestore:"read"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}

// NotificationMessage is the queue payload consumed by the notifier worker.
type NotificationMessage struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}
