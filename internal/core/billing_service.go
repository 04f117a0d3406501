package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/config"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

// Stripe event types the billing service reacts to.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventSubscriptionUpdated   = "customer.subscription.updated"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
	EventInvoicePaymentFailed  = "invoice.payment_failed"
	EventInvoicePaymentSucceed = "invoice.payment_succeeded"
)

// ErrInvalidSignature is returned by a PaymentGateway when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// CheckoutParams describes a subscription checkout for one user.
type CheckoutParams struct {
	UserID     string
	PlanID     string
	PriceID    string
	CustomerID string
	Email      string
	SuccessURL string
	CancelURL  string
}

// BillingEvent is the part of a verified Stripe event the service needs.
type BillingEvent struct {
	ID                string
	Type              string
	Created           int64
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
	PlanID            string
	Status            string
	CurrentPeriodEnd  int64
}

// PaymentGateway is the billing provider.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (*BillingEvent, error)
}

type billingService struct {
	gateway      PaymentGateway
	billingRepo  db.BillingRepository
	userRepo     db.UserRepository
	plans        config.Plans
	clientURL    string
	auditService AuditService
	logger       *zap.Logger
}

// NewBillingService creates a BillingService backed by gateway.
func NewBillingService(gateway PaymentGateway, billingRepo db.BillingRepository, userRepo db.UserRepository, plans config.Plans, clientURL string, auditService AuditService, logger *zap.Logger) BillingService {
	return &billingService{
		gateway:      gateway,
		billingRepo:  billingRepo,
		userRepo:     userRepo,
		plans:        plans,
		clientURL:    clientURL,
		auditService: auditService,
		logger:       logger,
	}
}

func (s *billingService) Plans() []config.Plan {
	out := make([]config.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, userID, planID string) (*CheckoutSession, error) {
	plan, ok := s.plans[planID]
	if !ok {
		return nil, Validation(fmt.Sprintf("unknown plan %q", planID))
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	params := CheckoutParams{
		UserID:     userID,
		PlanID:     plan.ID,
		PriceID:    plan.PriceID,
		CustomerID: user.Subscription.StripeCustomerID,
		SuccessURL: s.clientURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.clientURL + "/billing/cancel",
	}
	if params.CustomerID == "" {
		params.Email = user.Email
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	s.auditService.Record(ctx, userID, models.AuditCheckoutCreate, "PLAN", plan.ID, map[string]interface{}{
		"sessionId": session.SessionID,
	})
	return session, nil
}

func (s *billingService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", classify(err, "User not found")
	}
	if user.Subscription.StripeCustomerID == "" {
		return "", Validation("No billing account is linked to this user")
	}
	url, err := s.gateway.CreatePortalSession(ctx, user.Subscription.StripeCustomerID, s.clientURL+"/settings/billing")
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return url, nil
}

func (s *billingService) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	sub := user.Subscription
	if sub.Status == "" {
		sub.Status = models.SubscriptionNone
	}
	return &sub, nil
}

// HandleWebhook applies a verified Stripe event to the subscription of the user it belongs to.
// Events for unknown users and unhandled types are acknowledged without changes.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return &Error{Kind: ErrValidation, Message: "Invalid webhook signature", Err: err}
		}
		return &Error{Kind: ErrValidation, Message: "Invalid webhook payload", Err: err}
	}

	apply := s.mutation(event)
	if apply == nil {
		s.logger.Debug("Ignoring Stripe event", zap.String("type", event.Type), zap.String("event_id", event.ID))
		return nil
	}

	userID, err := s.userFor(ctx, event)
	var applied bool
	if err == nil {
		applied, err = s.billingRepo.ApplyEvent(ctx, event.ID, event.Type, userID, event.Created, apply)
	}
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("Stripe event does not match any user",
				zap.String("type", event.Type),
				zap.String("event_id", event.ID),
				zap.String("customer_id", event.CustomerID))
			return nil
		}
		return err
	}
	if !applied {
		s.logger.Info("Stripe event skipped", zap.String("event_id", event.ID), zap.String("user_id", userID))
		return nil
	}
	s.auditService.Record(ctx, userID, models.AuditSubscriptionEvent, "SUBSCRIPTION", event.SubscriptionID, map[string]interface{}{
		"eventId": event.ID,
		"type":    event.Type,
		"status":  event.Status,
	})
	return nil
}

func (s *billingService) userFor(ctx context.Context, event *BillingEvent) (string, error) {
	if event.ClientReferenceID != "" {
		return event.ClientReferenceID, nil
	}
	if event.CustomerID == "" {
		return "", fmt.Errorf("event %s has no customer: %w", event.ID, db.ErrNotFound)
	}
	user, err := s.userRepo.GetByCustomerID(ctx, event.CustomerID)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// mutation returns the subscription change for event, or nil for unhandled types.
func (s *billingService) mutation(event *BillingEvent) func(sub *models.Subscription) error {
	switch event.Type {
	case EventCheckoutCompleted:
		return func(sub *models.Subscription) error {
			if event.CustomerID != "" {
				sub.StripeCustomerID = event.CustomerID
			}
			if event.SubscriptionID != "" {
				sub.StripeSubscriptionID = event.SubscriptionID
			}
			if event.PlanID != "" {
				sub.Plan = event.PlanID
			}
			sub.Active = true
			sub.Status = models.SubscriptionActive
			sub.PaymentFailed = false
			return nil
		}
	case EventSubscriptionUpdated:
		return func(sub *models.Subscription) error {
			sub.StripeSubscriptionID = event.SubscriptionID
			if event.CustomerID != "" {
				sub.StripeCustomerID = event.CustomerID
			}
			sub.Status = event.Status
			sub.Active = event.Status == models.SubscriptionActive || event.Status == models.SubscriptionTrialing
			if event.PlanID != "" {
				sub.Plan = event.PlanID
			}
			setPeriodEnd(sub, event.CurrentPeriodEnd)
			return nil
		}
	case EventSubscriptionDeleted:
		return func(sub *models.Subscription) error {
			sub.Active = false
			sub.Status = models.SubscriptionCanceled
			setPeriodEnd(sub, event.CurrentPeriodEnd)
			return nil
		}
	case EventInvoicePaymentFailed:
		return func(sub *models.Subscription) error {
			sub.PaymentFailed = true
			sub.Status = models.SubscriptionPastDue
			return nil
		}
	case EventInvoicePaymentSucceed:
		return func(sub *models.Subscription) error {
			sub.PaymentFailed = false
			sub.Active = true
			sub.Status = models.SubscriptionActive
			return nil
		}
	}
	return nil
}

func setPeriodEnd(sub *models.Subscription, unix int64) {
	if unix <= 0 {
		return
	}
	t := time.Unix(unix, 0).UTC()
	sub.CurrentPeriodEnd = &t
}
