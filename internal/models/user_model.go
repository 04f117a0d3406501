package models

import "time"

// User represents an account in the users collection. The document ID is the Firebase Auth UID.
type User struct {
	ID           string       `json:"id" firestore:"-"`
	Username     string       `json:"username,omitempty" firestore:"username,omitempty"`
	Email        string       `json:"email" firestore:"email"`
	DisplayName  string       `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	FirstName    string       `json:"firstName,omitempty" firestore:"firstName,omitempty"`
	LastName     string       `json:"lastName,omitempty" firestore:"lastName,omitempty"`
	PhoneNumber  string       `json:"phoneNumber,omitempty" firestore:"phoneNumber,omitempty"`
	PhotoURL     string       `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`
	Subscription Subscription `json:"subscription" firestore:"subscription"`
	CreatedAt    time.Time    `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt    time.Time    `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// Subscription statuses mirrored from Stripe.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionNone     = "none"
)

// Subscription is the billing state kept on the user document.
type Subscription struct {
	Active               bool       `json:"active" firestore:"active"`
	Plan                 string     `json:"plan,omitempty" firestore:"plan,omitempty"`
	Status               string     `json:"status" firestore:"status"`
	StripeCustomerID     string     `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string     `json:"stripeSubscriptionId,omitempty" firestore:"stripeSubscriptionId,omitempty"`
	PaymentFailed        bool       `json:"paymentFailed" firestore:"paymentFailed"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty" firestore:"currentPeriodEnd,omitempty"`
	// LastEventCreated is the Stripe creation time (unix seconds) of the newest applied event.
	LastEventCreated int64 `json:"-" firestore:"lastEventCreated"`
}

// UsernameReservation is stored at usernames/{lowercase username}.
type UsernameReservation struct {
	UID       string    `firestore:"uid"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// TokenClaims carries the identity fields taken from a verified ID token.
type TokenClaims struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}
