package core

import (
	"context"
	"time"

	"compartilar-backend-go/internal/approval"
	"compartilar-backend-go/internal/config"
	"compartilar-backend-go/internal/models"
)

// UserService manages accounts, profiles and username reservations.
type UserService interface {
	// Initialize gets or creates the account for the token holder and reserves
	// the requested username. The bool reports whether the account was created.
	Initialize(ctx context.Context, claims models.TokenClaims, req models.InitializeUserRequest) (*models.User, bool, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	ReserveUsername(ctx context.Context, userID, username string) error
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// ChildService manages child records and who can see them.
type ChildService interface {
	Create(ctx context.Context, userID string, req models.CreateChildRequest) (*models.Child, error)
	List(ctx context.Context, userID string) ([]*models.Child, error)
	Get(ctx context.Context, userID, childID string) (*models.Child, error)
	Update(ctx context.Context, userID, childID string, req models.UpdateChildRequest) (*models.Child, error)
	Delete(ctx context.Context, userID, childID string) error
	UpdateAccess(ctx context.Context, userID, childID string, req models.UpdateAccessRequest) (*models.Child, error)
	History(ctx context.Context, userID, childID string, limit int) ([]*models.ChangeLogEntry, error)
}

// EventService manages the shared calendar of a child.
type EventService interface {
	Create(ctx context.Context, userID, childID string, req models.CreateEventRequest) (*models.CalendarEvent, error)
	List(ctx context.Context, userID, childID string, q models.ListEventsQuery) ([]*models.EventOccurrence, error)
	Get(ctx context.Context, userID, childID, eventID string) (*models.CalendarEvent, error)
	Update(ctx context.Context, userID, childID, eventID string, req models.UpdateEventRequest) (*models.CalendarEvent, error)
	Delete(ctx context.Context, userID, childID, eventID string) error
}

// ReminderService sends due event reminders.
type ReminderService interface {
	// Dispatch notifies members about every reminder due at now and returns how many events it handled.
	Dispatch(ctx context.Context, now time.Time) (int, error)
}

// ParentalPlanService manages parental plans and their field approval workflow.
type ParentalPlanService interface {
	Create(ctx context.Context, userID string, req models.CreatePlanRequest) (*models.ParentalPlan, error)
	List(ctx context.Context, userID string) ([]*models.ParentalPlan, error)
	Get(ctx context.Context, userID, planID string) (*models.ParentalPlan, error)
	Update(ctx context.Context, userID, planID string, req models.UpdatePlanRequest) (*models.ParentalPlan, error)
	Delete(ctx context.Context, userID, planID string) error
	UpdateAccess(ctx context.Context, userID, planID string, req models.UpdateAccessRequest) (*models.ParentalPlan, error)
	History(ctx context.Context, userID, planID string, limit int) ([]*models.ChangeLogEntry, error)

	ProposeField(ctx context.Context, userID, planID, section, field string, req models.FieldProposalRequest) (*approval.FieldStatus, error)
	ApproveField(ctx context.Context, userID, planID, section, field string, req models.FieldReviewRequest) (*approval.FieldStatus, error)
	RejectField(ctx context.Context, userID, planID, section, field string, req models.FieldReviewRequest) (*approval.FieldStatus, error)
	CancelField(ctx context.Context, userID, planID, section, field string) (*approval.FieldStatus, error)
}

// FriendshipService manages friend requests and friends lists.
type FriendshipService interface {
	SendRequest(ctx context.Context, userID string, req models.SendFriendRequestRequest) (*models.FriendRequest, error)
	ListRequests(ctx context.Context, userID, direction string) ([]*models.FriendRequest, error)
	Accept(ctx context.Context, userID, requestID string) (*models.FriendRequest, error)
	Decline(ctx context.Context, userID, requestID string) (*models.FriendRequest, error)
	Cancel(ctx context.Context, userID, requestID string) error
	ListFriends(ctx context.Context, userID string) ([]*models.Friend, error)
	RemoveFriend(ctx context.Context, userID, friendID string) error
}

// CheckoutSession is what the client needs to redirect to Stripe Checkout.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// BillingService mirrors Stripe subscription state onto user accounts.
type BillingService interface {
	Plans() []config.Plan
	CreateCheckoutSession(ctx context.Context, userID, planID string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	// HandleWebhook verifies the signature before touching any state.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
	// Record is the best-effort form used by other services; failures are only logged.
	Record(ctx context.Context, userID, action, targetType, targetID string, details map[string]interface{})
}

// NotificationService stores in-app notifications and queues them for email delivery.
type NotificationService interface {
	// Notify is best effort: failures are logged and never returned.
	Notify(ctx context.Context, n models.Notification)
	NotifyAll(ctx context.Context, recipients []string, except string, n models.Notification)
	List(ctx context.Context, userID string, q models.ListQuery) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// Publisher is the part of the message queue the notification service needs.
type Publisher interface {
	Publish(queueName string, body []byte) error
}
