package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/approval"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

const (
	entityPlan      = "parental_plan"
	planNotFoundMsg = "Parental plan not found"
)

type parentalPlanService struct {
	planRepo      db.PlanRepository
	childRepo     db.ChildRepository
	auditService  AuditService
	notifications NotificationService
	logger        *zap.Logger
	now           func() time.Time
}

// NewParentalPlanService creates a ParentalPlanService.
func NewParentalPlanService(planRepo db.PlanRepository, childRepo db.ChildRepository, auditService AuditService, notifications NotificationService, logger *zap.Logger) ParentalPlanService {
	return &parentalPlanService{
		planRepo:      planRepo,
		childRepo:     childRepo,
		auditService:  auditService,
		notifications: notifications,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// checkChildren ensures every child exists and userID can edit it.
func (s *parentalPlanService) checkChildren(ctx context.Context, userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, Validation("childrenIds must contain at least one child")
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		child, err := s.childRepo.GetByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) || (err == nil && child.IsDeleted) {
			return nil, Validation(fmt.Sprintf("child %s does not exist", id))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load child '%s': %w", id, err)
		}
		if access.Resolve(child.ACL(), userID) < access.Editor {
			return nil, Forbidden(fmt.Sprintf("You cannot add child %s to a parental plan", id))
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *parentalPlanService) Create(ctx context.Context, userID string, req models.CreatePlanRequest) (*models.ParentalPlan, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, Validation("title is required")
	}
	children, err := s.checkChildren(ctx, userID, req.ChildrenIDs)
	if err != nil {
		return nil, err
	}
	now := s.now()
	plan := &models.ParentalPlan{
		Title:       title,
		ChildrenIDs: children,
		CreatedBy:   userID,
		Sections:    map[string]map[string]*approval.FieldStatus{},
		Status:      models.PlanStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for section := range models.ApprovalSections {
		plan.Sections[section] = map[string]*approval.FieldStatus{}
	}
	plan.SetACL(access.ACL{OwnerID: userID})

	entry := &models.ChangeLogEntry{
		Timestamp:   now,
		UserID:      userID,
		Action:      models.ActionCreate,
		EntityType:  entityPlan,
		FieldsAfter: map[string]interface{}{"title": title, "childrenIds": children},
		Description: "Parental plan created",
	}
	id, err := s.planRepo.Create(ctx, plan, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create parental plan: %w", err)
	}
	plan.ID = id
	s.auditService.Record(ctx, userID, models.AuditPlanCreate, "PLAN", id, nil)
	return plan, nil
}

func (s *parentalPlanService) List(ctx context.Context, userID string) ([]*models.ParentalPlan, error) {
	plans, err := s.planRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parental plans: %w", err)
	}
	return plans, nil
}

func (s *parentalPlanService) Get(ctx context.Context, userID, planID string) (*models.ParentalPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, classify(err, planNotFoundMsg)
	}
	if plan.IsDeleted {
		return nil, NotFound(planNotFoundMsg)
	}
	if err := access.Require(plan.ACL(), userID, access.Viewer, "You do not have access to this parental plan"); err != nil {
		return nil, classify(err, planNotFoundMsg)
	}
	return plan, nil
}

func (s *parentalPlanService) mutate(ctx context.Context, userID, planID string, min access.Capability, msg string, fn func(p *models.ParentalPlan, now time.Time) (*models.ChangeLogEntry, error)) (*models.ParentalPlan, error) {
	plan, err := s.planRepo.Update(ctx, planID, func(p *models.ParentalPlan) (*models.ChangeLogEntry, error) {
		if p.IsDeleted {
			return nil, NotFound(planNotFoundMsg)
		}
		if err := access.Require(p.ACL(), userID, min, msg); err != nil {
			return nil, err
		}
		now := s.now()
		entry, err := fn(p, now)
		if err != nil {
			return nil, err
		}
		p.UpdatedAt = now
		return entry, nil
	})
	if err != nil {
		return nil, classify(err, planNotFoundMsg)
	}
	return plan, nil
}

func (s *parentalPlanService) Update(ctx context.Context, userID, planID string, req models.UpdatePlanRequest) (*models.ParentalPlan, error) {
	var children []string
	if req.ChildrenIDs != nil {
		var err error
		if children, err = s.checkChildren(ctx, userID, *req.ChildrenIDs); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, userID, planID, access.Editor, "Only editors can update this parental plan", func(p *models.ParentalPlan, now time.Time) (*models.ChangeLogEntry, error) {
		before := map[string]interface{}{"title": p.Title, "childrenIds": append([]string{}, p.ChildrenIDs...), "status": p.Status}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return nil, Validation("title cannot be empty")
			}
			p.Title = title
		}
		if req.ChildrenIDs != nil {
			p.ChildrenIDs = children
		}
		if req.Status != nil {
			if *req.Status != models.PlanStatusActive && *req.Status != models.PlanStatusArchived {
				return nil, Validation("status must be active or archived")
			}
			p.Status = *req.Status
		}
		after := map[string]interface{}{"title": p.Title, "childrenIds": p.ChildrenIDs, "status": p.Status}
		fb, fa := models.DiffFields(before, after)
		if len(fa) == 0 {
			return nil, nil
		}
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionUpdate,
			EntityType:   entityPlan,
			FieldsBefore: fb,
			FieldsAfter:  fa,
			Description:  "Parental plan updated",
		}, nil
	})
}

func (s *parentalPlanService) Delete(ctx context.Context, userID, planID string) error {
	_, err := s.mutate(ctx, userID, planID, access.Owner, "Only the owner can delete this parental plan", func(p *models.ParentalPlan, now time.Time) (*models.ChangeLogEntry, error) {
		p.IsDeleted = true
		p.DeletedAt = &now
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionDelete,
			EntityType:   entityPlan,
			FieldsBefore: map[string]interface{}{"isDeleted": false},
			FieldsAfter:  map[string]interface{}{"isDeleted": true},
			Description:  "Parental plan deleted",
		}, nil
	})
	if err != nil {
		return err
	}
	s.auditService.Record(ctx, userID, models.AuditPlanDelete, "PLAN", planID, nil)
	return nil
}

func (s *parentalPlanService) UpdateAccess(ctx context.Context, userID, planID string, req models.UpdateAccessRequest) (*models.ParentalPlan, error) {
	plan, err := s.mutate(ctx, userID, planID, access.Owner, "Only the owner can change who has access to this parental plan", func(p *models.ParentalPlan, now time.Time) (*models.ChangeLogEntry, error) {
		before := p.ACL()
		after, err := applyAccessChanges(before, req)
		if err != nil {
			return nil, err
		}
		p.SetACL(after)
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionShare,
			EntityType:   entityPlan,
			FieldsBefore: aclSnapshot(before),
			FieldsAfter:  aclSnapshot(p.ACL()),
			Description:  "Access updated",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.auditService.Record(ctx, userID, models.AuditPlanShare, "PLAN", planID, nil)
	return plan, nil
}

func (s *parentalPlanService) History(ctx context.Context, userID, planID string, limit int) ([]*models.ChangeLogEntry, error) {
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLen
	}
	entries, err := s.planRepo.History(ctx, planID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history of parental plan '%s': %w", planID, err)
	}
	return entries, nil
}

func (s *parentalPlanService) ProposeField(ctx context.Context, userID, planID, section, field string, req models.FieldProposalRequest) (*approval.FieldStatus, error) {
	return s.transition(ctx, userID, planID, section, field, approval.ActionPropose, req.Value, req.Comment)
}

func (s *parentalPlanService) ApproveField(ctx context.Context, userID, planID, section, field string, req models.FieldReviewRequest) (*approval.FieldStatus, error) {
	return s.transition(ctx, userID, planID, section, field, approval.ActionApprove, nil, req.Comment)
}

func (s *parentalPlanService) RejectField(ctx context.Context, userID, planID, section, field string, req models.FieldReviewRequest) (*approval.FieldStatus, error) {
	return s.transition(ctx, userID, planID, section, field, approval.ActionReject, nil, req.Comment)
}

func (s *parentalPlanService) CancelField(ctx context.Context, userID, planID, section, field string) (*approval.FieldStatus, error) {
	return s.transition(ctx, userID, planID, section, field, approval.ActionCancel, nil, "")
}

// transition applies one approval action to sections.{section}.{field}. The new
// field state and its changelog entry are committed together.
func (s *parentalPlanService) transition(ctx context.Context, userID, planID, section, field string, action approval.Action, value *string, comment string) (*approval.FieldStatus, error) {
	if !models.ApprovalSections[section] {
		return nil, Validation(fmt.Sprintf("section %q does not support field approval", section))
	}
	if !ValidFieldName(field) {
		return nil, Validation("invalid field name")
	}

	var result approval.FieldStatus
	var members []string
	_, err := s.mutate(ctx, userID, planID, access.Editor, "Only editors can change parental plan fields", func(p *models.ParentalPlan, now time.Time) (*models.ChangeLogEntry, error) {
		if p.Status == models.PlanStatusArchived {
			return nil, Validation("Archived parental plans cannot be changed")
		}
		f := p.Field(section, field)
		before := f.Snapshot()
		if err := f.Apply(action, userID, value, comment, now); err != nil {
			return nil, err
		}
		result = *f
		members = p.ACL().Members()
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionFieldPrefix + string(action),
			EntityType:   entityPlan,
			FieldsBefore: before,
			FieldsAfter:  f.Snapshot(),
			Description:  fmt.Sprintf("%s.%s: %s", section, field, action),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	n := models.Notification{
		Type:       models.NotificationFieldReviewed,
		Title:      fmt.Sprintf("Plan field %s was %s", field, pastTense(action)),
		Body:       result.Value,
		EntityType: entityPlan,
		EntityID:   planID,
		ActorID:    userID,
	}
	if action == approval.ActionPropose {
		n.Type = models.NotificationFieldProposed
		n.Title = fmt.Sprintf("A change to %s is waiting for your approval", field)
	}
	s.notifications.NotifyAll(ctx, members, userID, n)
	return &result, nil
}

func pastTense(a approval.Action) string {
	switch a {
	case approval.ActionApprove:
		return "approved"
	case approval.ActionReject:
		return "rejected"
	case approval.ActionCancel:
		return "withdrawn"
	}
	return "proposed"
}
