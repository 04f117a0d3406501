package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"compartilar-backend-go/internal/models"
)

const (
	usersCollection     = "users"
	usernamesCollection = "usernames"
)

// firestoreUserRepository implements the UserRepository interface using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

// Create adds a new user document keyed by the Firebase Auth UID.
func (r *firestoreUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(user.ID).Create(ctx, user)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("user with ID '%s' already exists: %w", user.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user with ID '%s': %w", user.ID, err)
	}
	return nil
}

// GetByID retrieves a user document by its ID (Firebase Auth UID).
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeUser(docSnap)
}

func decodeUser(doc *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", doc.Ref.ID, err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

// Update merges fields into the user document. updatedAt is always refreshed.
func (r *firestoreUserRepository) Update(ctx context.Context, userID string, fields map[string]interface{}) error {
	if userID == "" {
		return errors.New("user ID cannot be empty for Update operation")
	}
	data := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	data["updatedAt"] = firestore.ServerTimestamp
	if _, err := r.client.Collection(usersCollection).Doc(userID).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update user with ID '%s': %w", userID, err)
	}
	return nil
}

// ReserveUsername claims a username for userID and releases the previous one in a single transaction.
func (r *firestoreUserRepository) ReserveUsername(ctx context.Context, userID, username string) error {
	names := r.client.Collection(usernamesCollection)
	userRef := r.client.Collection(usersCollection).Doc(userID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		previous := ""
		userSnap, err := tx.Get(userRef)
		switch {
		case err == nil:
			if v, err := userSnap.DataAt("username"); err == nil {
				previous, _ = v.(string)
			}
		case !isNotFound(err):
			return err
		}

		ref := names.Doc(username)
		snap, err := tx.Get(ref)
		claimed := false
		switch {
		case err == nil:
			var res models.UsernameReservation
			if err := snap.DataTo(&res); err != nil {
				return err
			}
			if res.UID != userID {
				return ErrAlreadyExists
			}
			claimed = true
		case isNotFound(err):
		default:
			return err
		}

		releasePrevious := false
		if previous != "" && previous != username {
			prevSnap, err := tx.Get(names.Doc(previous))
			if err == nil {
				var res models.UsernameReservation
				if err := prevSnap.DataTo(&res); err == nil && res.UID == userID {
					releasePrevious = true
				}
			} else if !isNotFound(err) {
				return err
			}
		}

		if !claimed {
			if err := tx.Create(ref, models.UsernameReservation{UID: userID, CreatedAt: time.Now().UTC()}); err != nil {
				return err
			}
		}
		if releasePrevious {
			if err := tx.Delete(names.Doc(previous)); err != nil {
				return err
			}
		}
		return tx.Set(userRef, map[string]interface{}{
			"username":  username,
			"updatedAt": firestore.ServerTimestamp,
		}, firestore.MergeAll)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("username '%s' is taken: %w", username, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to reserve username '%s': %w", username, err)
	}
	return nil
}

// UsernameOwner returns the uid holding username.
func (r *firestoreUserRepository) UsernameOwner(ctx context.Context, username string) (string, error) {
	snap, err := r.client.Collection(usernamesCollection).Doc(username).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("username '%s': %w", username, ErrNotFound)
		}
		return "", fmt.Errorf("failed to look up username '%s': %w", username, err)
	}
	var res models.UsernameReservation
	if err := snap.DataTo(&res); err != nil {
		return "", fmt.Errorf("failed to decode username reservation '%s': %w", username, err)
	}
	return res.UID, nil
}

// GetByCustomerID finds the user linked to a Stripe customer.
func (r *firestoreUserRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	iter := r.client.Collection(usersCollection).
		Where("subscription.stripeCustomerId", "==", customerID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("user with Stripe customer '%s' not found: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by Stripe customer '%s': %w", customerID, err)
	}
	return decodeUser(doc)
}
