package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

const (
	entityChild       = "child"
	childNotFoundMsg  = "Child not found"
	defaultHistoryLen = 50
)

// childService implements the ChildService interface.
type childService struct {
	childRepo    db.ChildRepository
	auditService AuditService
	logger       *zap.Logger
	now          func() time.Time
}

// NewChildService creates a new ChildService instance.
func NewChildService(childRepo db.ChildRepository, auditService AuditService, logger *zap.Logger) ChildService {
	return &childService{
		childRepo:    childRepo,
		auditService: auditService,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *childService) validate(c *models.Child) error {
	if strings.TrimSpace(c.FirstName) == "" {
		return Validation("firstName is required")
	}
	if !ValidBirthDate(c.BirthDate, s.now()) {
		return Validation("birthDate must be a YYYY-MM-DD date that is not in the future")
	}
	if c.Gender != "" && !oneOf(c.Gender, models.ChildGenders) {
		return Validation("gender must be one of " + strings.Join(models.ChildGenders, ", "))
	}
	if c.Relationship != "" && !oneOf(c.Relationship, models.ChildRelationships) {
		return Validation("relationship must be one of " + strings.Join(models.ChildRelationships, ", "))
	}
	return nil
}

// Create stores a new child owned by userID together with its creation entry.
func (s *childService) Create(ctx context.Context, userID string, req models.CreateChildRequest) (*models.Child, error) {
	now := s.now()
	child := &models.Child{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		BirthDate:    req.BirthDate,
		Gender:       req.Gender,
		Relationship: req.Relationship,
		PhotoURL:     req.PhotoURL,
		CreatedBy:    userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	child.SetACL(access.ACL{OwnerID: userID})
	if err := s.validate(child); err != nil {
		return nil, err
	}

	entry := &models.ChangeLogEntry{
		Timestamp:   now,
		UserID:      userID,
		Action:      models.ActionCreate,
		EntityType:  entityChild,
		FieldsAfter: child.Fields(),
		Description: "Child created",
	}
	id, err := s.childRepo.Create(ctx, child, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	child.ID = id
	s.auditService.Record(ctx, userID, models.AuditChildCreate, "CHILD", id, nil)
	return child, nil
}

func (s *childService) List(ctx context.Context, userID string) ([]*models.Child, error) {
	children, err := s.childRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

// load fetches a live child and checks the caller has at least min access.
func (s *childService) load(ctx context.Context, userID, childID string, min access.Capability, msg string) (*models.Child, error) {
	child, err := s.childRepo.GetByID(ctx, childID)
	if err != nil {
		return nil, classify(err, childNotFoundMsg)
	}
	if child.IsDeleted {
		return nil, NotFound(childNotFoundMsg)
	}
	if err := access.Require(child.ACL(), userID, min, msg); err != nil {
		return nil, classify(err, childNotFoundMsg)
	}
	return child, nil
}

func (s *childService) Get(ctx context.Context, userID, childID string) (*models.Child, error) {
	return s.load(ctx, userID, childID, access.Viewer, "You do not have access to this child")
}

// mutate runs fn on a live child the caller has min access to, writing the change and its entry atomically.
func (s *childService) mutate(ctx context.Context, userID, childID string, min access.Capability, msg string, fn func(c *models.Child) (*models.ChangeLogEntry, error)) (*models.Child, error) {
	child, err := s.childRepo.Update(ctx, childID, func(c *models.Child) (*models.ChangeLogEntry, error) {
		if c.IsDeleted {
			return nil, NotFound(childNotFoundMsg)
		}
		if err := access.Require(c.ACL(), userID, min, msg); err != nil {
			return nil, err
		}
		return fn(c)
	})
	if err != nil {
		return nil, classify(err, childNotFoundMsg)
	}
	return child, nil
}

func (s *childService) Update(ctx context.Context, userID, childID string, req models.UpdateChildRequest) (*models.Child, error) {
	return s.mutate(ctx, userID, childID, access.Editor, "Only editors can update this child", func(c *models.Child) (*models.ChangeLogEntry, error) {
		before := c.Fields()
		if req.FirstName != nil {
			c.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			c.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.BirthDate != nil {
			c.BirthDate = *req.BirthDate
		}
		if req.Gender != nil {
			c.Gender = *req.Gender
		}
		if req.Relationship != nil {
			c.Relationship = *req.Relationship
		}
		if req.PhotoURL != nil {
			c.PhotoURL = *req.PhotoURL
		}
		if err := s.validate(c); err != nil {
			return nil, err
		}
		fb, fa := models.DiffFields(before, c.Fields())
		if len(fa) == 0 {
			return nil, nil
		}
		now := s.now()
		c.UpdatedAt = now
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionUpdate,
			EntityType:   entityChild,
			FieldsBefore: fb,
			FieldsAfter:  fa,
			Description:  "Child updated",
		}, nil
	})
}

// Delete soft-deletes the child. Only the owner may delete.
func (s *childService) Delete(ctx context.Context, userID, childID string) error {
	_, err := s.mutate(ctx, userID, childID, access.Owner, "Only the owner can delete this child", func(c *models.Child) (*models.ChangeLogEntry, error) {
		now := s.now()
		c.IsDeleted = true
		c.DeletedAt = &now
		c.UpdatedAt = now
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionDelete,
			EntityType:   entityChild,
			FieldsBefore: map[string]interface{}{"isDeleted": false},
			FieldsAfter:  map[string]interface{}{"isDeleted": true},
			Description:  "Child deleted",
		}, nil
	})
	if err != nil {
		return err
	}
	s.auditService.Record(ctx, userID, models.AuditChildDelete, "CHILD", childID, nil)
	return nil
}

func (s *childService) UpdateAccess(ctx context.Context, userID, childID string, req models.UpdateAccessRequest) (*models.Child, error) {
	child, err := s.mutate(ctx, userID, childID, access.Owner, "Only the owner can change who has access to this child", func(c *models.Child) (*models.ChangeLogEntry, error) {
		before := c.ACL()
		after, err := applyAccessChanges(before, req)
		if err != nil {
			return nil, err
		}
		c.SetACL(after)
		now := s.now()
		c.UpdatedAt = now
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionShare,
			EntityType:   entityChild,
			FieldsBefore: aclSnapshot(before),
			FieldsAfter:  aclSnapshot(c.ACL()),
			Description:  "Access updated",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.auditService.Record(ctx, userID, models.AuditChildShare, "CHILD", childID, map[string]interface{}{
		"addEditors": req.AddEditors,
		"addViewers": req.AddViewers,
		"remove":     req.Remove,
	})
	return child, nil
}

func (s *childService) History(ctx context.Context, userID, childID string, limit int) ([]*models.ChangeLogEntry, error) {
	if _, err := s.load(ctx, userID, childID, access.Viewer, "You do not have access to this child"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLen
	}
	entries, err := s.childRepo.History(ctx, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history of child '%s': %w", childID, err)
	}
	return entries, nil
}
