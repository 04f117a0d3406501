package models

import "time"

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// EventCategories accepted by validation.
var EventCategories = []string{"custody", "school", "medical", "activity", "holiday", "other"}

// Recurrence describes how an event repeats. Until and Count are optional bounds.
type Recurrence struct {
	Frequency string     `json:"frequency" firestore:"frequency" binding:"required,oneof=daily weekly monthly yearly"`
	Interval  int        `json:"interval,omitempty" firestore:"interval" binding:"omitempty,min=1,max=365"`
	Until     *time.Time `json:"until,omitempty" firestore:"until,omitempty"`
	Count     int        `json:"count,omitempty" firestore:"count,omitempty" binding:"omitempty,min=1,max=1000"`
}

// EffectiveInterval treats a missing interval as 1.
func (r *Recurrence) EffectiveInterval() int {
	if r == nil || r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Reminder asks for a notification some minutes before each occurrence.
type Reminder struct {
	MinutesBefore int `json:"minutesBefore" firestore:"minutesBefore" binding:"min=0,max=40320"`
}

// CalendarEvent is stored at children/{childId}/events/{eventId}.
type CalendarEvent struct {
	ID                  string      `json:"id" firestore:"-"`
	ChildID             string      `json:"childId" firestore:"childId"`
	Title               string      `json:"title" firestore:"title"`
	Description         string      `json:"description,omitempty" firestore:"description,omitempty"`
	Location            string      `json:"location,omitempty" firestore:"location,omitempty"`
	StartDate           time.Time   `json:"startDate" firestore:"startDate"`
	EndDate             time.Time   `json:"endDate" firestore:"endDate"`
	AllDay              bool        `json:"allDay" firestore:"allDay"`
	Category            string      `json:"category" firestore:"category"`
	IsPrivate           bool        `json:"isPrivate" firestore:"isPrivate"`
	ResponsibleParentID string      `json:"responsibleParentId,omitempty" firestore:"responsibleParentId,omitempty"`
	Recurrence          *Recurrence `json:"recurrence,omitempty" firestore:"recurrence"`
	Reminder            *Reminder   `json:"reminder,omitempty" firestore:"reminder"`
	NextReminderAt      *time.Time  `json:"nextReminderAt,omitempty" firestore:"nextReminderAt"`
	CreatedBy           string      `json:"createdBy" firestore:"createdBy"`
	IsDeleted           bool        `json:"-" firestore:"isDeleted"`
	CreatedAt           time.Time   `json:"createdAt" firestore:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt" firestore:"updatedAt"`
}

// Fields returns the editable fields as a map, used for changelog snapshots.
func (e *CalendarEvent) Fields() map[string]interface{} {
	return map[string]interface{}{
		"title":       e.Title,
		"description": e.Description,
		"location":    e.Location,
		"startDate":   e.StartDate,
		"endDate":     e.EndDate,
		"allDay":      e.AllDay,
		"category":    e.Category,
		"isPrivate":   e.IsPrivate,
	}
}

// VisibleTo reports whether uid may see the event, given they can see the child.
func (e *CalendarEvent) VisibleTo(uid string) bool {
	return !e.IsPrivate || e.CreatedBy == uid
}

// EventOccurrence is a listing row: the event plus one concrete occurrence.
type EventOccurrence struct {
	*CalendarEvent
	OccurrenceStart time.Time `json:"occurrenceStart"`
	OccurrenceEnd   time.Time `json:"occurrenceEnd"`
}
