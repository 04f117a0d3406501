package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

type notificationService struct {
	repo      db.NotificationRepository
	userRepo  db.UserRepository
	publisher Publisher
	queue     string
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService creates a NotificationService. publisher may be nil,
// in which case notifications are stored but not queued for email.
func NewNotificationService(repo db.NotificationRepository, userRepo db.UserRepository, publisher Publisher, queue string, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:      repo,
		userRepo:  userRepo,
		publisher: publisher,
		queue:     queue,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *notificationService) Notify(ctx context.Context, n models.Notification) {
	if n.UserID == "" {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if _, err := s.repo.Create(ctx, &n); err != nil {
		s.logger.Warn("failed to store notification",
			zap.String("userId", n.UserID), zap.String("type", n.Type), zap.Error(err))
		return
	}
	if s.publisher == nil {
		return
	}

	user, err := s.userRepo.GetByID(ctx, n.UserID)
	if err != nil || user.Email == "" {
		s.logger.Debug("skipping email for notification", zap.String("userId", n.UserID), zap.Error(err))
		return
	}
	body, err := json.Marshal(models.NotificationMessage{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Email:          user.Email,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
	})
	if err != nil {
		s.logger.Warn("failed to encode notification message", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(s.queue, body); err != nil {
		s.logger.Warn("failed to publish notification",
			zap.String("queue", s.queue), zap.String("notificationId", n.ID), zap.Error(err))
	}
}

// NotifyAll sends n to every recipient except the actor.
func (s *notificationService) NotifyAll(ctx context.Context, recipients []string, except string, n models.Notification) {
	for _, uid := range recipients {
		if uid == "" || uid == except {
			continue
		}
		m := n
		m.ID = ""
		m.UserID = uid
		s.Notify(ctx, m)
	}
}

func (s *notificationService) List(ctx context.Context, userID string, q models.ListQuery) ([]*models.Notification, error) {
	return s.repo.List(ctx, userID, q.Limit, q.UnreadOnly)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return classify(s.repo.MarkRead(ctx, userID, notificationID), "Notification not found")
}
