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

const eventsCollection = "events"

// firestoreEventRepository implements EventRepository. Events live under their child
// so every event write can append to the child's change_history atomically.
type firestoreEventRepository struct {
	client *firestore.Client
}

// NewFirestoreEventRepository creates a new instance of firestoreEventRepository.
func NewFirestoreEventRepository(client *firestore.Client) EventRepository {
	return &firestoreEventRepository{client: client}
}

func (r *firestoreEventRepository) childRef(childID string) *firestore.DocumentRef {
	return r.client.Collection(childrenCollection).Doc(childID)
}

func decodeEvent(doc *firestore.DocumentSnapshot) (*models.CalendarEvent, error) {
	var ev models.CalendarEvent
	if err := doc.DataTo(&ev); err != nil {
		return nil, fmt.Errorf("failed to decode event data for ID '%s': %w", doc.Ref.ID, err)
	}
	ev.ID = doc.Ref.ID
	if ev.ChildID == "" && doc.Ref.Parent != nil && doc.Ref.Parent.Parent != nil {
		ev.ChildID = doc.Ref.Parent.Parent.ID
	}
	return &ev, nil
}

func (r *firestoreEventRepository) Create(ctx context.Context, childID string, fn EventMutation) (*models.CalendarEvent, error) {
	cref := r.childRef(childID)
	var out *models.CalendarEvent
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		child, err := getChildTx(tx, cref)
		if err != nil {
			return err
		}
		ev, entry, err := fn(child, nil)
		if err != nil {
			return err
		}
		if ev == nil {
			return errors.New("event mutation returned no event")
		}
		ref := cref.Collection(eventsCollection).NewDoc()
		ev.ID = ref.ID
		ev.ChildID = childID
		if err := tx.Create(ref, ev); err != nil {
			return err
		}
		if entry != nil {
			entry.EntityID = ev.ID
			if err := tx.Create(historyRef(cref, entry), entry); err != nil {
				return err
			}
		}
		out = ev
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event for child '%s': %w", childID, err)
	}
	return out, nil
}

func (r *firestoreEventRepository) Update(ctx context.Context, childID, eventID string, fn EventMutation) (*models.CalendarEvent, error) {
	cref := r.childRef(childID)
	ref := cref.Collection(eventsCollection).Doc(eventID)
	var out *models.CalendarEvent
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		child, err := getChildTx(tx, cref)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("event with ID '%s' not found: %w", eventID, ErrNotFound)
			}
			return err
		}
		ev, err := decodeEvent(snap)
		if err != nil {
			return err
		}
		_, entry, err := fn(child, ev)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, ev); err != nil {
			return err
		}
		if entry != nil {
			if err := tx.Create(historyRef(cref, entry), entry); err != nil {
				return err
			}
		}
		out = ev
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event '%s': %w", eventID, err)
	}
	return out, nil
}

func (r *firestoreEventRepository) GetByID(ctx context.Context, childID, eventID string) (*models.CalendarEvent, error) {
	snap, err := r.childRef(childID).Collection(eventsCollection).Doc(eventID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("event with ID '%s' not found: %w", eventID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get event with ID '%s': %w", eventID, err)
	}
	return decodeEvent(snap)
}

// ListByChild returns every non-deleted event starting before until. Recurring
// events are expanded by the caller, so older series are included.
func (r *firestoreEventRepository) ListByChild(ctx context.Context, childID string, until time.Time) ([]*models.CalendarEvent, error) {
	iter := r.childRef(childID).Collection(eventsCollection).
		Where("startDate", "<", until).
		OrderBy("startDate", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	events := []*models.CalendarEvent{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate events for child '%s': %w", childID, err)
		}
		ev, err := decodeEvent(doc)
		if err != nil {
			return nil, err
		}
		if !ev.IsDeleted {
			events = append(events, ev)
		}
	}
	return events, nil
}

// DueReminders queries the events collection group. Requires a single-field
// collection-group index on nextReminderAt.
func (r *firestoreEventRepository) DueReminders(ctx context.Context, now time.Time, limit int) ([]*models.CalendarEvent, error) {
	iter := r.client.CollectionGroup(eventsCollection).
		Where("nextReminderAt", "<=", now).
		OrderBy("nextReminderAt", firestore.Asc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	events := []*models.CalendarEvent{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query due reminders: %w", err)
		}
		ev, err := decodeEvent(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// ClaimReminder moves nextReminderAt from due to next in a transaction. It
// reports false when another dispatcher already moved it or the event is gone.
func (r *firestoreEventRepository) ClaimReminder(ctx context.Context, childID, eventID string, due time.Time, next *time.Time) (bool, error) {
	ref := r.childRef(childID).Collection(eventsCollection).Doc(eventID)
	claimed := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = false
		doc, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		ev, err := decodeEvent(doc)
		if err != nil {
			return err
		}
		if ev.NextReminderAt == nil || !ev.NextReminderAt.Equal(due) {
			return nil
		}
		var value interface{}
		if next != nil {
			value = *next
		}
		if err := tx.Update(ref, []firestore.Update{{Path: "nextReminderAt", Value: value}}); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder for event '%s': %w", eventID, err)
	}
	return claimed, nil
}
