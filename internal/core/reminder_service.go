package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/calendar"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

const reminderBatchSize = 200

type reminderService struct {
	eventRepo     db.EventRepository
	childRepo     db.ChildRepository
	notifications NotificationService
	logger        *zap.Logger
}

// NewReminderService creates a ReminderService.
func NewReminderService(eventRepo db.EventRepository, childRepo db.ChildRepository, notifications NotificationService, logger *zap.Logger) ReminderService {
	return &reminderService{eventRepo: eventRepo, childRepo: childRepo, notifications: notifications, logger: logger}
}

// Dispatch claims each due reminder, moving the event's nextReminderAt to its
// following occurrence, and notifies the child's members for the claims it wins.
// A reminder whose child cannot be loaded is left due for the next run.
func (s *reminderService) Dispatch(ctx context.Context, now time.Time) (int, error) {
	due, err := s.eventRepo.DueReminders(ctx, now, reminderBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load due reminders: %w", err)
	}

	handled := 0
	for _, ev := range due {
		if ev.NextReminderAt == nil {
			continue
		}
		next := calendar.NextReminder(ev.StartDate, ev.EndDate, ev.Recurrence, ev.Reminder, now)

		var child *models.Child
		if !ev.IsDeleted {
			child, err = s.childRepo.GetByID(ctx, ev.ChildID)
			switch {
			case errors.Is(err, db.ErrNotFound):
				child = nil
			case err != nil:
				s.logger.Warn("reminder postponed", zap.String("eventId", ev.ID), zap.String("childId", ev.ChildID), zap.Error(err))
				continue
			case child.IsDeleted:
				child = nil
			}
		}
		if child == nil {
			next = nil
		}

		claimed, err := s.eventRepo.ClaimReminder(ctx, ev.ChildID, ev.ID, *ev.NextReminderAt, next)
		if err != nil {
			s.logger.Error("failed to advance reminder", zap.String("eventId", ev.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if child != nil {
			s.notify(ctx, child, ev)
		}
		handled++
	}
	if handled > 0 {
		s.logger.Info("event reminders dispatched", zap.Int("count", handled))
	}
	return handled, nil
}

func (s *reminderService) notify(ctx context.Context, child *models.Child, ev *models.CalendarEvent) {
	recipients := child.ACL().Members()
	if ev.IsPrivate {
		recipients = []string{ev.CreatedBy}
	}
	n := models.Notification{
		Type:       models.NotificationEventReminder,
		Title:      "Reminder: " + ev.Title,
		Body:       fmt.Sprintf("%s starts at %s", ev.Title, nextStart(ev).Format(time.RFC1123)),
		EntityType: entityEvent,
		EntityID:   ev.ID,
	}
	s.notifications.NotifyAll(ctx, recipients, "", n)
}

// nextStart is the occurrence the current reminder refers to.
func nextStart(ev *models.CalendarEvent) time.Time {
	if ev.NextReminderAt == nil || ev.Reminder == nil {
		return ev.StartDate
	}
	return ev.NextReminderAt.Add(time.Duration(ev.Reminder.MinutesBefore) * time.Minute)
}
