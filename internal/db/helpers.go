package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"compartilar-backend-go/internal/models"
)

const changeHistoryCollection = "change_history"

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// prepareEntry fills the id, timestamp and entity id of a changelog entry.
func prepareEntry(entry *models.ChangeLogEntry, entityID string) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.EntityID == "" {
		entry.EntityID = entityID
	}
}

// historyRef returns where a changelog entry for the document at parent is written.
func historyRef(parent *firestore.DocumentRef, entry *models.ChangeLogEntry) *firestore.DocumentRef {
	prepareEntry(entry, parent.ID)
	return parent.Collection(changeHistoryCollection).Doc(entry.ID)
}

// readHistory lists the newest entries of parent's change_history.
func readHistory(ctx context.Context, parent *firestore.DocumentRef, limit int) ([]*models.ChangeLogEntry, error) {
	q := parent.Collection(changeHistoryCollection).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	entries := []*models.ChangeLogEntry{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate change history of %s: %w", parent.Path, err)
		}
		var e models.ChangeLogEntry
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("failed to decode change history entry %s: %w", doc.Ref.ID, err)
		}
		e.ID = doc.Ref.ID
		entries = append(entries, &e)
	}
	return entries, nil
}

// collectByID runs each query and merges the results by document id, preserving first-seen order.
func collectByID(ctx context.Context, queries []firestore.Query, decode func(doc *firestore.DocumentSnapshot) error) error {
	seen := make(map[string]struct{})
	for _, q := range queries {
		iter := q.Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return err
			}
			if _, ok := seen[doc.Ref.ID]; ok {
				continue
			}
			seen[doc.Ref.ID] = struct{}{}
			if err := decode(doc); err != nil {
				iter.Stop()
				return err
			}
		}
		iter.Stop()
	}
	return nil
}
