package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/calendar"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

const (
	entityEvent         = "event"
	eventNotFoundMsg    = "Event not found"
	eventEditorsOnlyMsg = "Only editors can update calendar events"
	maxListWindow       = 366 * 24 * time.Hour
)

// eventService implements EventService. Events are stored under their child and
// inherit the child's access list; private events are visible to their creator only.
type eventService struct {
	eventRepo     db.EventRepository
	childRepo     db.ChildRepository
	notifications NotificationService
	logger        *zap.Logger
	now           func() time.Time
}

// NewEventService creates a new EventService instance.
func NewEventService(eventRepo db.EventRepository, childRepo db.ChildRepository, notifications NotificationService, logger *zap.Logger) EventService {
	return &eventService{
		eventRepo:     eventRepo,
		childRepo:     childRepo,
		notifications: notifications,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func validateEvent(ev *models.CalendarEvent) error {
	if strings.TrimSpace(ev.Title) == "" {
		return Validation("title is required")
	}
	if ev.StartDate.IsZero() || ev.EndDate.IsZero() {
		return Validation("startDate and endDate are required")
	}
	if ev.EndDate.Before(ev.StartDate) {
		return Validation("endDate must not be before startDate")
	}
	if !oneOf(ev.Category, models.EventCategories) {
		return Validation("category must be one of " + strings.Join(models.EventCategories, ", "))
	}
	if r := ev.Recurrence; r != nil {
		switch r.Frequency {
		case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
		default:
			return Validation("recurrence frequency must be daily, weekly, monthly or yearly")
		}
		if r.Interval < 0 {
			return Validation("recurrence interval must be at least 1")
		}
		if r.Until != nil && r.Until.Before(ev.StartDate) {
			return Validation("recurrence until must not be before startDate")
		}
	}
	if ev.Reminder != nil && (ev.Reminder.MinutesBefore < 0 || ev.Reminder.MinutesBefore > 40320) {
		return Validation("reminder minutesBefore must be between 0 and 40320")
	}
	return nil
}

// scheduleReminder recomputes nextReminderAt from the event's schedule.
func (s *eventService) scheduleReminder(ev *models.CalendarEvent) {
	if ev.IsDeleted {
		ev.NextReminderAt = nil
		return
	}
	ev.NextReminderAt = calendar.NextReminder(ev.StartDate, ev.EndDate, ev.Recurrence, ev.Reminder, s.now())
}

func (s *eventService) Create(ctx context.Context, userID, childID string, req models.CreateEventRequest) (*models.CalendarEvent, error) {
	var members []string
	ev, err := s.eventRepo.Create(ctx, childID, func(child *models.Child, _ *models.CalendarEvent) (*models.CalendarEvent, *models.ChangeLogEntry, error) {
		if child.IsDeleted {
			return nil, nil, NotFound(childNotFoundMsg)
		}
		if err := access.Require(child.ACL(), userID, access.Editor, "Only editors can create calendar events"); err != nil {
			return nil, nil, err
		}
		now := s.now()
		category := req.Category
		if category == "" {
			category = "other"
		}
		ev := &models.CalendarEvent{
			ChildID:             childID,
			Title:               strings.TrimSpace(req.Title),
			Description:         req.Description,
			Location:            req.Location,
			StartDate:           req.StartDate.UTC(),
			EndDate:             req.EndDate.UTC(),
			AllDay:              req.AllDay,
			Category:            category,
			IsPrivate:           req.IsPrivate,
			ResponsibleParentID: req.ResponsibleParentID,
			Recurrence:          req.Recurrence,
			Reminder:            req.Reminder,
			CreatedBy:           userID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := validateEvent(ev); err != nil {
			return nil, nil, err
		}
		s.scheduleReminder(ev)
		members = child.ACL().Members()
		return ev, &models.ChangeLogEntry{
			Timestamp:   now,
			UserID:      userID,
			Action:      models.ActionEventCreate,
			EntityType:  entityEvent,
			FieldsAfter: ev.Fields(),
			Description: "Event created: " + ev.Title,
		}, nil
	})
	if err != nil {
		return nil, classify(err, childNotFoundMsg)
	}
	if !ev.IsPrivate {
		s.notifications.NotifyAll(ctx, members, userID, models.Notification{
			Type:       models.NotificationEventChanged,
			Title:      "New calendar event",
			Body:       ev.Title,
			EntityType: entityEvent,
			EntityID:   ev.ID,
			ActorID:    userID,
		})
	}
	return ev, nil
}

func (s *eventService) loadChild(ctx context.Context, userID, childID string) (*models.Child, error) {
	child, err := s.childRepo.GetByID(ctx, childID)
	if err != nil {
		return nil, classify(err, childNotFoundMsg)
	}
	if child.IsDeleted {
		return nil, NotFound(childNotFoundMsg)
	}
	if err := access.Require(child.ACL(), userID, access.Viewer, "You do not have access to this child's calendar"); err != nil {
		return nil, classify(err, childNotFoundMsg)
	}
	return child, nil
}

// List expands the child's events into occurrences within [from, to).
// Missing bounds default to one month back and two months ahead.
func (s *eventService) List(ctx context.Context, userID, childID string, q models.ListEventsQuery) ([]*models.EventOccurrence, error) {
	if _, err := s.loadChild(ctx, userID, childID); err != nil {
		return nil, err
	}
	from, to := q.From, q.To
	if from.IsZero() {
		from = s.now().AddDate(0, -1, 0)
	}
	if to.IsZero() {
		to = from.AddDate(0, 3, 0)
	}
	if !to.After(from) {
		return nil, Validation("to must be after from")
	}
	if to.Sub(from) > maxListWindow {
		return nil, Validation("the listing window cannot exceed one year")
	}

	events, err := s.eventRepo.ListByChild(ctx, childID, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list events of child '%s': %w", childID, err)
	}
	out := []*models.EventOccurrence{}
	for _, ev := range events {
		if !ev.VisibleTo(userID) {
			continue
		}
		for _, occ := range calendar.Occurrences(ev.StartDate, ev.EndDate, ev.Recurrence, from, to) {
			out = append(out, &models.EventOccurrence{CalendarEvent: ev, OccurrenceStart: occ.Start, OccurrenceEnd: occ.End})
		}
	}
	sortOccurrences(out)
	return out, nil
}

func (s *eventService) Get(ctx context.Context, userID, childID, eventID string) (*models.CalendarEvent, error) {
	if _, err := s.loadChild(ctx, userID, childID); err != nil {
		return nil, err
	}
	ev, err := s.eventRepo.GetByID(ctx, childID, eventID)
	if err != nil {
		return nil, classify(err, eventNotFoundMsg)
	}
	if ev.IsDeleted || !ev.VisibleTo(userID) {
		return nil, NotFound(eventNotFoundMsg)
	}
	return ev, nil
}

// mutate checks editor access on the child and visibility of the event inside the transaction.
func (s *eventService) mutate(ctx context.Context, userID, childID, eventID string, fn func(ev *models.CalendarEvent, now time.Time) (*models.ChangeLogEntry, error)) (*models.CalendarEvent, error) {
	ev, err := s.eventRepo.Update(ctx, childID, eventID, func(child *models.Child, ev *models.CalendarEvent) (*models.CalendarEvent, *models.ChangeLogEntry, error) {
		if child.IsDeleted {
			return nil, nil, NotFound(childNotFoundMsg)
		}
		if err := access.Require(child.ACL(), userID, access.Editor, eventEditorsOnlyMsg); err != nil {
			return nil, nil, err
		}
		if ev.IsDeleted || !ev.VisibleTo(userID) {
			return nil, nil, NotFound(eventNotFoundMsg)
		}
		entry, err := fn(ev, s.now())
		return ev, entry, err
	})
	if err != nil {
		return nil, classify(err, eventNotFoundMsg)
	}
	return ev, nil
}

func (s *eventService) Update(ctx context.Context, userID, childID, eventID string, req models.UpdateEventRequest) (*models.CalendarEvent, error) {
	return s.mutate(ctx, userID, childID, eventID, func(ev *models.CalendarEvent, now time.Time) (*models.ChangeLogEntry, error) {
		before := ev.Fields()
		if req.Title != nil {
			ev.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			ev.Description = *req.Description
		}
		if req.Location != nil {
			ev.Location = *req.Location
		}
		if req.StartDate != nil {
			ev.StartDate = req.StartDate.UTC()
		}
		if req.EndDate != nil {
			ev.EndDate = req.EndDate.UTC()
		}
		if req.AllDay != nil {
			ev.AllDay = *req.AllDay
		}
		if req.Category != nil {
			ev.Category = *req.Category
		}
		if req.IsPrivate != nil {
			ev.IsPrivate = *req.IsPrivate
		}
		if req.ResponsibleParentID != nil {
			ev.ResponsibleParentID = *req.ResponsibleParentID
		}
		if req.ClearRecurrence {
			ev.Recurrence = nil
		} else if req.Recurrence != nil {
			ev.Recurrence = req.Recurrence
		}
		if req.ClearReminder {
			ev.Reminder = nil
		} else if req.Reminder != nil {
			ev.Reminder = req.Reminder
		}
		if err := validateEvent(ev); err != nil {
			return nil, err
		}
		s.scheduleReminder(ev)
		ev.UpdatedAt = now

		fb, fa := models.DiffFields(before, ev.Fields())
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionEventUpdate,
			EntityType:   entityEvent,
			EntityID:     ev.ID,
			FieldsBefore: fb,
			FieldsAfter:  fa,
			Description:  "Event updated: " + ev.Title,
		}, nil
	})
}

// Delete soft-deletes the event and cancels its reminders.
func (s *eventService) Delete(ctx context.Context, userID, childID, eventID string) error {
	_, err := s.mutate(ctx, userID, childID, eventID, func(ev *models.CalendarEvent, now time.Time) (*models.ChangeLogEntry, error) {
		ev.IsDeleted = true
		ev.NextReminderAt = nil
		ev.UpdatedAt = now
		return &models.ChangeLogEntry{
			Timestamp:    now,
			UserID:       userID,
			Action:       models.ActionEventDelete,
			EntityType:   entityEvent,
			EntityID:     ev.ID,
			FieldsBefore: ev.Fields(),
			Description:  "Event deleted: " + ev.Title,
		}, nil
	})
	return err
}
