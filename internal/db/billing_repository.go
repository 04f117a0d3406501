package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"compartilar-backend-go/internal/models"
)

const stripeEventsCollection = "stripe_events"

// firestoreBillingRepository implements BillingRepository using Firestore.
type firestoreBillingRepository struct {
	client *firestore.Client
}

// NewFirestoreBillingRepository creates a new instance of firestoreBillingRepository.
func NewFirestoreBillingRepository(client *firestore.Client) BillingRepository {
	return &firestoreBillingRepository{client: client}
}

// ApplyEvent records the Stripe event id and updates the subscription atomically.
// Redelivered events and events older than the last applied one are recorded but not applied.
func (r *firestoreBillingRepository) ApplyEvent(ctx context.Context, eventID, eventType, userID string, created int64, fn func(sub *models.Subscription) error) (bool, error) {
	eventRef := r.client.Collection(stripeEventsCollection).Doc(eventID)
	userRef := r.client.Collection(usersCollection).Doc(userID)

	var applied bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		if _, err := tx.Get(eventRef); err == nil {
			return nil
		} else if !isNotFound(err) {
			return err
		}
		snap, err := tx.Get(userRef)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
			}
			return err
		}
		user, err := decodeUser(snap)
		if err != nil {
			return err
		}

		record := map[string]interface{}{
			"type":        eventType,
			"userId":      userID,
			"created":     created,
			"processedAt": firestore.ServerTimestamp,
		}
		sub := user.Subscription
		if created < sub.LastEventCreated {
			record["skipped"] = true
			return tx.Create(eventRef, record)
		}
		if err := fn(&sub); err != nil {
			return err
		}
		sub.LastEventCreated = created
		if err := tx.Update(userRef, []firestore.Update{
			{Path: "subscription", Value: sub},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}); err != nil {
			return err
		}
		applied = true
		return tx.Create(eventRef, record)
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply Stripe event '%s': %w", eventID, err)
	}
	return applied, nil
}
