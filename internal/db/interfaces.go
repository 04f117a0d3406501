package db

import (
	"context"
	"errors"
	"time"

	"compartilar-backend-go/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when a create or reservation collides with an existing document.
	ErrAlreadyExists = errors.New("document already exists")
)

// UserRepository stores accounts and username reservations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// Update merges the given top-level fields into the user document.
	Update(ctx context.Context, userID string, fields map[string]interface{}) error
	// ReserveUsername claims usernames/{username} for userID, releases the name the
	// user document currently holds and sets the new one, all in one transaction.
	// Returns ErrAlreadyExists when another user holds the name.
	ReserveUsername(ctx context.Context, userID, username string) error
	// UsernameOwner returns the uid holding username, or ErrNotFound.
	UsernameOwner(ctx context.Context, username string) (string, error)
	GetByCustomerID(ctx context.Context, customerID string) (*models.User, error)
}

// ChildMutation mutates a child read inside a transaction and returns the changelog
// entry to write with it. Returning an error aborts the transaction.
type ChildMutation func(child *models.Child) (*models.ChangeLogEntry, error)

// ChildRepository stores children and their change history.
type ChildRepository interface {
	// Create writes the child and its creation entry in one batch and returns the new id.
	Create(ctx context.Context, child *models.Child, entry *models.ChangeLogEntry) (string, error)
	GetByID(ctx context.Context, childID string) (*models.Child, error)
	// ListForUser returns children where userID is editor or viewer, soft-deleted ones excluded.
	ListForUser(ctx context.Context, userID string) ([]*models.Child, error)
	Update(ctx context.Context, childID string, fn ChildMutation) (*models.Child, error)
	History(ctx context.Context, childID string, limit int) ([]*models.ChangeLogEntry, error)
}

// EventMutation receives the parent child and the event (nil on create) inside a transaction.
// On create it must return the event to insert.
type EventMutation func(child *models.Child, event *models.CalendarEvent) (*models.CalendarEvent, *models.ChangeLogEntry, error)

// EventRepository stores calendar events under children/{childId}/events.
// Changelog entries go to the child's change_history in the same transaction.
type EventRepository interface {
	Create(ctx context.Context, childID string, fn EventMutation) (*models.CalendarEvent, error)
	Update(ctx context.Context, childID, eventID string, fn EventMutation) (*models.CalendarEvent, error)
	GetByID(ctx context.Context, childID, eventID string) (*models.CalendarEvent, error)
	// ListByChild returns non-deleted events starting before until.
	ListByChild(ctx context.Context, childID string, until time.Time) ([]*models.CalendarEvent, error)
	// DueReminders returns events across all children whose nextReminderAt is at or before now.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]*models.CalendarEvent, error)
	// ClaimReminder atomically replaces nextReminderAt with next when it still
	// equals due. False means another dispatcher got there first.
	ClaimReminder(ctx context.Context, childID, eventID string, due time.Time, next *time.Time) (bool, error)
}

// PlanMutation mutates a plan read inside a transaction.
type PlanMutation func(plan *models.ParentalPlan) (*models.ChangeLogEntry, error)

// PlanRepository stores parental plans and their change history.
type PlanRepository interface {
	Create(ctx context.Context, plan *models.ParentalPlan, entry *models.ChangeLogEntry) (string, error)
	GetByID(ctx context.Context, planID string) (*models.ParentalPlan, error)
	ListForUser(ctx context.Context, userID string) ([]*models.ParentalPlan, error)
	Update(ctx context.Context, planID string, fn PlanMutation) (*models.ParentalPlan, error)
	History(ctx context.Context, planID string, limit int) ([]*models.ChangeLogEntry, error)
}

// AcceptFunc validates and mutates a pending request and the shared children it names.
// It returns one changelog entry per child it changed, keyed by child id.
type AcceptFunc func(req *models.FriendRequest, children []*models.Child) (map[string]*models.ChangeLogEntry, error)

// FriendshipRepository stores friend requests and the mirrored friends lists.
type FriendshipRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) (string, error)
	// FindPending returns a pending request between a and b in either direction, or ErrNotFound.
	FindPending(ctx context.Context, a, b string) (*models.FriendRequest, error)
	// ListRequests lists requests received (incoming) or sent (outgoing) by userID with the given status.
	ListRequests(ctx context.Context, userID string, incoming bool, status string) ([]*models.FriendRequest, error)
	UpdateRequest(ctx context.Context, requestID string, fn func(req *models.FriendRequest) error) (*models.FriendRequest, error)
	// Accept runs fn inside a transaction, then writes the request, the changed children,
	// their changelog entries and both friends list documents.
	Accept(ctx context.Context, requestID string, fn AcceptFunc) (*models.FriendRequest, error)
	GetFriend(ctx context.Context, userID, friendID string) (*models.Friend, error)
	ListFriends(ctx context.Context, userID string) ([]*models.Friend, error)
	// RemoveFriend deletes both mirrored documents in one batch.
	RemoveFriend(ctx context.Context, userID, friendID string) error
}

// NotificationRepository stores in-app notifications under notifications/{uid}/items.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (string, error)
	List(ctx context.Context, userID string, limit int, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}

// BillingRepository applies Stripe events to the subscription kept on the user document.
type BillingRepository interface {
	// ApplyEvent runs fn on the user's subscription unless the event id was already
	// processed or the event is older than the last applied one. It records the event
	// id in the same transaction and reports whether fn ran.
	ApplyEvent(ctx context.Context, eventID, eventType, userID string, created int64, fn func(sub *models.Subscription) error) (bool, error)
}
