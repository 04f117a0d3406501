package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/models"
)

const childrenCollection = "children"

// firestoreChildRepository implements ChildRepository using Firestore.
type firestoreChildRepository struct {
	client *firestore.Client
}

// NewFirestoreChildRepository creates a new instance of firestoreChildRepository.
func NewFirestoreChildRepository(client *firestore.Client) ChildRepository {
	return &firestoreChildRepository{client: client}
}

// decodeChild reads a child document. Documents written before the ACL was
// normalized keep their owner under a legacy field name.
func decodeChild(doc *firestore.DocumentSnapshot) (*models.Child, error) {
	var child models.Child
	if err := doc.DataTo(&child); err != nil {
		return nil, fmt.Errorf("failed to decode child data for ID '%s': %w", doc.Ref.ID, err)
	}
	child.ID = doc.Ref.ID
	if child.OwnerID == "" {
		child.SetACL(access.Legacy(doc.Data()))
	}
	return &child, nil
}

func (r *firestoreChildRepository) Create(ctx context.Context, child *models.Child, entry *models.ChangeLogEntry) (string, error) {
	ref := r.client.Collection(childrenCollection).NewDoc()
	child.ID = ref.ID

	batch := r.client.Batch()
	batch.Create(ref, child)
	if entry != nil {
		batch.Create(historyRef(ref, entry), entry)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to create child: %w", err)
	}
	return ref.ID, nil
}

func (r *firestoreChildRepository) GetByID(ctx context.Context, childID string) (*models.Child, error) {
	if childID == "" {
		return nil, errors.New("childID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(childrenCollection).Doc(childID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("child with ID '%s' not found: %w", childID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get child with ID '%s': %w", childID, err)
	}
	return decodeChild(snap)
}

// ListForUser merges the editor, viewer and owner queries; the owner query
// catches documents that predate the editors array.
func (r *firestoreChildRepository) ListForUser(ctx context.Context, userID string) ([]*models.Child, error) {
	col := r.client.Collection(childrenCollection)
	queries := []firestore.Query{
		col.Where("editors", "array-contains", userID),
		col.Where("viewers", "array-contains", userID),
		col.Where("ownerId", "==", userID),
	}
	children := []*models.Child{}
	err := collectByID(ctx, queries, func(doc *firestore.DocumentSnapshot) error {
		child, err := decodeChild(doc)
		if err != nil {
			return err
		}
		if !child.IsDeleted {
			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list children for user '%s': %w", userID, err)
	}
	return children, nil
}

// Update reads the child, applies fn and writes the child together with the
// returned changelog entry in one transaction.
func (r *firestoreChildRepository) Update(ctx context.Context, childID string, fn ChildMutation) (*models.Child, error) {
	ref := r.client.Collection(childrenCollection).Doc(childID)
	var out *models.Child
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		child, err := getChildTx(tx, ref)
		if err != nil {
			return err
		}
		entry, err := fn(child)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, child); err != nil {
			return err
		}
		if entry != nil {
			if err := tx.Create(historyRef(ref, entry), entry); err != nil {
				return err
			}
		}
		out = child
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update child '%s': %w", childID, err)
	}
	return out, nil
}

func (r *firestoreChildRepository) History(ctx context.Context, childID string, limit int) ([]*models.ChangeLogEntry, error) {
	return readHistory(ctx, r.client.Collection(childrenCollection).Doc(childID), limit)
}

func getChildTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (*models.Child, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("child with ID '%s' not found: %w", ref.ID, ErrNotFound)
		}
		return nil, err
	}
	return decodeChild(snap)
}
