// Package dbtest provides in-memory implementations of the db repository
// interfaces. Each mutation and its changelog entry are applied under one
// lock, and only when the mutation callback succeeds, mirroring the
// transactional contract of the Firestore repositories.
package dbtest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"compartilar-backend-go/internal/approval"
	"compartilar-backend-go/internal/models"
)

// Store holds every collection in memory.
type Store struct {
	mu sync.Mutex

	seq           int
	users         map[string]*models.User
	usernames     map[string]string
	children      map[string]*models.Child
	plans         map[string]*models.ParentalPlan
	events        map[string]map[string]*models.CalendarEvent
	history       map[string][]*models.ChangeLogEntry
	requests      map[string]*models.FriendRequest
	friends       map[string]map[string]*models.Friend
	notifications map[string][]*models.Notification
	audit         []models.AuditLog
	stripeEvents  map[string]bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[string]*models.User),
		usernames:     make(map[string]string),
		children:      make(map[string]*models.Child),
		plans:         make(map[string]*models.ParentalPlan),
		events:        make(map[string]map[string]*models.CalendarEvent),
		history:       make(map[string][]*models.ChangeLogEntry),
		requests:      make(map[string]*models.FriendRequest),
		friends:       make(map[string]map[string]*models.Friend),
		notifications: make(map[string][]*models.Notification),
		stripeEvents:  make(map[string]bool),
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Store) appendHistory(key, entityID string, entry *models.ChangeLogEntry) {
	if entry == nil {
		return
	}
	e := *entry
	if e.ID == "" {
		e.ID = s.nextID("log")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.EntityID == "" {
		e.EntityID = entityID
	}
	*entry = e
	s.history[key] = append(s.history[key], &e)
}

func (s *Store) readHistory(key string, limit int) []*models.ChangeLogEntry {
	src := s.history[key]
	out := make([]*models.ChangeLogEntry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		e := *src[i]
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// AuditLogs returns a copy of every audit entry written so far.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.audit...)
}

// ChildHistoryLen reports how many changelog entries a child has.
func (s *Store) ChildHistoryLen(childID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history["children/"+childID])
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Subscription.CurrentPeriodEnd = copyTime(u.Subscription.CurrentPeriodEnd)
	return &c
}

func cloneChild(x *models.Child) *models.Child {
	c := *x
	c.Editors = copyStrings(x.Editors)
	c.Viewers = copyStrings(x.Viewers)
	c.DeletedAt = copyTime(x.DeletedAt)
	return &c
}

func clonePlan(x *models.ParentalPlan) *models.ParentalPlan {
	c := *x
	c.ChildrenIDs = copyStrings(x.ChildrenIDs)
	c.Editors = copyStrings(x.Editors)
	c.Viewers = copyStrings(x.Viewers)
	c.DeletedAt = copyTime(x.DeletedAt)
	if x.Sections != nil {
		c.Sections = make(map[string]map[string]*approval.FieldStatus, len(x.Sections))
		for name, fields := range x.Sections {
			m := make(map[string]*approval.FieldStatus, len(fields))
			for k, f := range fields {
				if f == nil {
					continue
				}
				fc := *f
				fc.Comments = append([]approval.Comment(nil), f.Comments...)
				m[k] = &fc
			}
			c.Sections[name] = m
		}
	}
	return &c
}

func cloneEvent(x *models.CalendarEvent) *models.CalendarEvent {
	c := *x
	if x.Recurrence != nil {
		r := *x.Recurrence
		r.Until = copyTime(x.Recurrence.Until)
		c.Recurrence = &r
	}
	if x.Reminder != nil {
		r := *x.Reminder
		c.Reminder = &r
	}
	c.NextReminderAt = copyTime(x.NextReminderAt)
	return &c
}

func cloneRequest(x *models.FriendRequest) *models.FriendRequest {
	c := *x
	c.SharedChildren = copyStrings(x.SharedChildren)
	c.RespondedAt = copyTime(x.RespondedAt)
	return &c
}

func sortByCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return id(items[i]) < id(items[j])
	})
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
