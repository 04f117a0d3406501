package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"compartilar-backend-go/internal/models"
)

const (
	notificationsCollection     = "notifications"
	notificationItemsCollection = "items"
)

type firestoreNotificationRepository struct {
	client *firestore.Client
}

// NewFirestoreNotificationRepository creates a new instance of firestoreNotificationRepository.
func NewFirestoreNotificationRepository(client *firestore.Client) NotificationRepository {
	return &firestoreNotificationRepository{client: client}
}

func (r *firestoreNotificationRepository) items(userID string) *firestore.CollectionRef {
	return r.client.Collection(notificationsCollection).Doc(userID).Collection(notificationItemsCollection)
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, n *models.Notification) (string, error) {
	ref := r.items(n.UserID).NewDoc()
	if n.ID != "" {
		ref = r.items(n.UserID).Doc(n.ID)
	}
	if _, err := ref.Create(ctx, n); err != nil {
		return "", fmt.Errorf("failed to create notification for '%s': %w", n.UserID, err)
	}
	n.ID = ref.ID
	return ref.ID, nil
}

func (r *firestoreNotificationRepository) List(ctx context.Context, userID string, limit int, unreadOnly bool) ([]*models.Notification, error) {
	q := r.items(userID).Query
	if unreadOnly {
		q = q.Where("read", "==", false)
	}
	iter := q.OrderBy("createdAt", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	out := []*models.Notification{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list notifications for '%s': %w", userID, err)
		}
		var n models.Notification
		if err := doc.DataTo(&n); err != nil {
			return nil, fmt.Errorf("failed to decode notification '%s': %w", doc.Ref.ID, err)
		}
		n.ID = doc.Ref.ID
		n.UserID = userID
		out = append(out, &n)
	}
	return out, nil
}

func (r *firestoreNotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	_, err := r.items(userID).Doc(notificationID).Update(ctx, []firestore.Update{{Path: "read", Value: true}})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("notification '%s' not found: %w", notificationID, ErrNotFound)
		}
		return fmt.Errorf("failed to mark notification '%s' read: %w", notificationID, err)
	}
	return nil
}
