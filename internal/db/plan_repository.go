package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/models"
)

const plansCollection = "parental_plans"

// firestorePlanRepository implements PlanRepository using Firestore.
type firestorePlanRepository struct {
	client *firestore.Client
}

// NewFirestorePlanRepository creates a new instance of firestorePlanRepository.
func NewFirestorePlanRepository(client *firestore.Client) PlanRepository {
	return &firestorePlanRepository{client: client}
}

func decodePlan(doc *firestore.DocumentSnapshot) (*models.ParentalPlan, error) {
	var plan models.ParentalPlan
	if err := doc.DataTo(&plan); err != nil {
		return nil, fmt.Errorf("failed to decode parental plan data for ID '%s': %w", doc.Ref.ID, err)
	}
	plan.ID = doc.Ref.ID
	if plan.OwnerID == "" {
		plan.SetACL(access.Legacy(doc.Data()))
	}
	return &plan, nil
}

func (r *firestorePlanRepository) Create(ctx context.Context, plan *models.ParentalPlan, entry *models.ChangeLogEntry) (string, error) {
	ref := r.client.Collection(plansCollection).NewDoc()
	plan.ID = ref.ID

	batch := r.client.Batch()
	batch.Create(ref, plan)
	if entry != nil {
		batch.Create(historyRef(ref, entry), entry)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to create parental plan: %w", err)
	}
	return ref.ID, nil
}

func (r *firestorePlanRepository) GetByID(ctx context.Context, planID string) (*models.ParentalPlan, error) {
	if planID == "" {
		return nil, errors.New("planID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(plansCollection).Doc(planID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("parental plan with ID '%s' not found: %w", planID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get parental plan with ID '%s': %w", planID, err)
	}
	return decodePlan(snap)
}

func (r *firestorePlanRepository) ListForUser(ctx context.Context, userID string) ([]*models.ParentalPlan, error) {
	col := r.client.Collection(plansCollection)
	queries := []firestore.Query{
		col.Where("editors", "array-contains", userID),
		col.Where("viewers", "array-contains", userID),
		col.Where("ownerId", "==", userID),
	}
	plans := []*models.ParentalPlan{}
	err := collectByID(ctx, queries, func(doc *firestore.DocumentSnapshot) error {
		plan, err := decodePlan(doc)
		if err != nil {
			return err
		}
		if !plan.IsDeleted {
			plans = append(plans, plan)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list parental plans for user '%s': %w", userID, err)
	}
	return plans, nil
}

// Update applies fn to the plan and writes it with its changelog entry in one transaction.
func (r *firestorePlanRepository) Update(ctx context.Context, planID string, fn PlanMutation) (*models.ParentalPlan, error) {
	ref := r.client.Collection(plansCollection).Doc(planID)
	var out *models.ParentalPlan
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("parental plan with ID '%s' not found: %w", planID, ErrNotFound)
			}
			return err
		}
		plan, err := decodePlan(snap)
		if err != nil {
			return err
		}
		entry, err := fn(plan)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, plan); err != nil {
			return err
		}
		if entry != nil {
			if err := tx.Create(historyRef(ref, entry), entry); err != nil {
				return err
			}
		}
		out = plan
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update parental plan '%s': %w", planID, err)
	}
	return out, nil
}

func (r *firestorePlanRepository) History(ctx context.Context, planID string, limit int) ([]*models.ChangeLogEntry, error) {
	return readHistory(ctx, r.client.Collection(plansCollection).Doc(planID), limit)
}
