package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(auditRepo db.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{auditRepo: auditRepo, logger: logger}
}

// CreateAuditLog stores logEntry, filling request metadata from ctx when missing.
func (s *auditService) CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error {
	if s.auditRepo == nil {
		return fmt.Errorf("AuditRepository not initialized in AuditService")
	}
	meta := RequestMetaFrom(ctx)
	if logEntry.IPAddress == "" {
		logEntry.IPAddress = meta.IPAddress
	}
	if logEntry.UserAgent == "" {
		logEntry.UserAgent = meta.UserAgent
	}
	if meta.RequestID != "" {
		if logEntry.Details == nil {
			logEntry.Details = map[string]interface{}{}
		}
		logEntry.Details["requestId"] = meta.RequestID
	}
	if err := s.auditRepo.Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log via repository: %w", err)
	}
	return nil
}

func (s *auditService) Record(ctx context.Context, userID, action, targetType, targetID string, details map[string]interface{}) {
	entry := models.AuditLog{
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Timestamp:  time.Now().UTC(),
		Details:    details,
	}
	if err := s.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("targetId", targetID),
			zap.Error(err))
	}
}
