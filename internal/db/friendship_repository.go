package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"compartilar-backend-go/internal/models"
)

const (
	friendRequestsCollection = "friend_requests"
	friendsCollection        = "friends"
	friendsListCollection    = "friendsList"
)

// firestoreFriendshipRepository implements FriendshipRepository using Firestore.
type firestoreFriendshipRepository struct {
	client *firestore.Client
}

// NewFirestoreFriendshipRepository creates a new instance of firestoreFriendshipRepository.
func NewFirestoreFriendshipRepository(client *firestore.Client) FriendshipRepository {
	return &firestoreFriendshipRepository{client: client}
}

func (r *firestoreFriendshipRepository) friendRef(userID, friendID string) *firestore.DocumentRef {
	return r.client.Collection(friendsCollection).Doc(userID).Collection(friendsListCollection).Doc(friendID)
}

func decodeRequest(doc *firestore.DocumentSnapshot) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := doc.DataTo(&req); err != nil {
		return nil, fmt.Errorf("failed to decode friend request '%s': %w", doc.Ref.ID, err)
	}
	req.ID = doc.Ref.ID
	return &req, nil
}

// CreateRequest stores req under the pair's request id. A resolved request
// between the same users is replaced; a pending one yields ErrAlreadyExists.
func (r *firestoreFriendshipRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) (string, error) {
	ref := r.client.Collection(friendRequestsCollection).Doc(models.FriendRequestID(req.SenderID, req.ReceiverID))
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		switch {
		case err == nil:
			existing, err := decodeRequest(doc)
			if err != nil {
				return err
			}
			if existing.Status == models.FriendRequestPending {
				return fmt.Errorf("pending friend request '%s': %w", ref.ID, ErrAlreadyExists)
			}
		case !isNotFound(err):
			return err
		}
		return tx.Set(ref, req)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create friend request: %w", err)
	}
	req.ID = ref.ID
	return ref.ID, nil
}

func (r *firestoreFriendshipRepository) FindPending(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	col := r.client.Collection(friendRequestsCollection)
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		iter := col.Where("senderId", "==", pair[0]).
			Where("receiverId", "==", pair[1]).
			Where("status", "==", models.FriendRequestPending).
			Limit(1).
			Documents(ctx)
		doc, err := iter.Next()
		iter.Stop()
		if err == iterator.Done {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up pending friend request: %w", err)
		}
		return decodeRequest(doc)
	}
	return nil, fmt.Errorf("no pending request between '%s' and '%s': %w", a, b, ErrNotFound)
}

func (r *firestoreFriendshipRepository) ListRequests(ctx context.Context, userID string, incoming bool, status string) ([]*models.FriendRequest, error) {
	field := "senderId"
	if incoming {
		field = "receiverId"
	}
	q := r.client.Collection(friendRequestsCollection).Where(field, "==", userID)
	if status != "" {
		q = q.Where("status", "==", status)
	}
	iter := q.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	reqs := []*models.FriendRequest{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list friend requests for '%s': %w", userID, err)
		}
		req, err := decodeRequest(doc)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (r *firestoreFriendshipRepository) UpdateRequest(ctx context.Context, requestID string, fn func(req *models.FriendRequest) error) (*models.FriendRequest, error) {
	ref := r.client.Collection(friendRequestsCollection).Doc(requestID)
	var out *models.FriendRequest
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		req, err := r.getRequestTx(tx, ref)
		if err != nil {
			return err
		}
		if err := fn(req); err != nil {
			return err
		}
		out = req
		return tx.Set(ref, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update friend request '%s': %w", requestID, err)
	}
	return out, nil
}

func (r *firestoreFriendshipRepository) getRequestTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (*models.FriendRequest, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("friend request '%s' not found: %w", ref.ID, ErrNotFound)
		}
		return nil, err
	}
	return decodeRequest(snap)
}

// Accept reads the request and its shared children, lets fn validate and mutate
// them, then writes everything in the same transaction.
func (r *firestoreFriendshipRepository) Accept(ctx context.Context, requestID string, fn AcceptFunc) (*models.FriendRequest, error) {
	ref := r.client.Collection(friendRequestsCollection).Doc(requestID)
	children := r.client.Collection(childrenCollection)
	var out *models.FriendRequest
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		req, err := r.getRequestTx(tx, ref)
		if err != nil {
			return err
		}
		shared := make([]*models.Child, 0, len(req.SharedChildren))
		for _, id := range req.SharedChildren {
			child, err := getChildTx(tx, children.Doc(id))
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			shared = append(shared, child)
		}

		entries, err := fn(req, shared)
		if err != nil {
			return err
		}

		if err := tx.Set(ref, req); err != nil {
			return err
		}
		for _, child := range shared {
			entry, ok := entries[child.ID]
			if !ok || entry == nil {
				continue
			}
			cref := children.Doc(child.ID)
			if err := tx.Set(cref, child); err != nil {
				return err
			}
			if err := tx.Create(historyRef(cref, entry), entry); err != nil {
				return err
			}
		}
		since := time.Now().UTC()
		if req.RespondedAt != nil {
			since = *req.RespondedAt
		}
		for _, pair := range [][2]string{{req.SenderID, req.ReceiverID}, {req.ReceiverID, req.SenderID}} {
			friend := models.Friend{
				RelationshipType: req.RelationshipType,
				SharedChildren:   req.SharedChildren,
				RequestID:        req.ID,
				Since:            since,
			}
			if err := tx.Set(r.friendRef(pair[0], pair[1]), friend); err != nil {
				return err
			}
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept friend request '%s': %w", requestID, err)
	}
	return out, nil
}

func (r *firestoreFriendshipRepository) GetFriend(ctx context.Context, userID, friendID string) (*models.Friend, error) {
	snap, err := r.friendRef(userID, friendID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("friend '%s' of '%s' not found: %w", friendID, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get friend '%s': %w", friendID, err)
	}
	var f models.Friend
	if err := snap.DataTo(&f); err != nil {
		return nil, fmt.Errorf("failed to decode friend '%s': %w", friendID, err)
	}
	f.FriendID = snap.Ref.ID
	return &f, nil
}

func (r *firestoreFriendshipRepository) ListFriends(ctx context.Context, userID string) ([]*models.Friend, error) {
	iter := r.client.Collection(friendsCollection).Doc(userID).Collection(friendsListCollection).Documents(ctx)
	defer iter.Stop()

	friends := []*models.Friend{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list friends of '%s': %w", userID, err)
		}
		var f models.Friend
		if err := doc.DataTo(&f); err != nil {
			return nil, fmt.Errorf("failed to decode friend '%s': %w", doc.Ref.ID, err)
		}
		f.FriendID = doc.Ref.ID
		friends = append(friends, &f)
	}
	return friends, nil
}

func (r *firestoreFriendshipRepository) RemoveFriend(ctx context.Context, userID, friendID string) error {
	batch := r.client.Batch()
	batch.Delete(r.friendRef(userID, friendID))
	batch.Delete(r.friendRef(friendID, userID))
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to remove friend '%s' of '%s': %w", friendID, userID, err)
	}
	return nil
}
