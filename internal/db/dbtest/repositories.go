package dbtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

// UserRepository returns the in-memory db.UserRepository.
func (s *Store) UserRepository() db.UserRepository { return &userRepo{s} }

// ChildRepository returns the in-memory db.ChildRepository.
func (s *Store) ChildRepository() db.ChildRepository { return &childRepo{s} }

// EventRepository returns the in-memory db.EventRepository.
func (s *Store) EventRepository() db.EventRepository { return &eventRepo{s} }

// PlanRepository returns the in-memory db.PlanRepository.
func (s *Store) PlanRepository() db.PlanRepository { return &planRepo{s} }

// FriendshipRepository returns the in-memory db.FriendshipRepository.
func (s *Store) FriendshipRepository() db.FriendshipRepository { return &friendshipRepo{s} }

// NotificationRepository returns the in-memory db.NotificationRepository.
func (s *Store) NotificationRepository() db.NotificationRepository { return &notificationRepo{s} }

// AuditRepository returns the in-memory db.AuditRepository.
func (s *Store) AuditRepository() db.AuditRepository { return &auditRepo{s} }

// BillingRepository returns the in-memory db.BillingRepository.
func (s *Store) BillingRepository() db.BillingRepository { return &billingRepo{s} }

func notFound(kind, id string) error {
	return fmt.Errorf("%s with ID '%s' not found: %w", kind, id, db.ErrNotFound)
}

// --- users ---

type userRepo struct{ s *Store }

func (r *userRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, notFound("user", userID)
	}
	return cloneUser(u), nil
}

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Create operation")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return fmt.Errorf("user with ID '%s' already exists: %w", user.ID, db.ErrAlreadyExists)
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepo) Update(_ context.Context, userID string, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		u = &models.User{ID: userID, CreatedAt: time.Now().UTC()}
		r.s.users[userID] = u
	}
	for k, v := range fields {
		s, _ := v.(string)
		switch k {
		case "username":
			u.Username = s
		case "email":
			u.Email = s
		case "displayName":
			u.DisplayName = s
		case "firstName":
			u.FirstName = s
		case "lastName":
			u.LastName = s
		case "phoneNumber":
			u.PhoneNumber = s
		case "photoURL":
			u.PhotoURL = s
		default:
			return fmt.Errorf("dbtest: unsupported user field %q", k)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) ReserveUsername(_ context.Context, userID, username string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	previous := ""
	if u, ok := r.s.users[userID]; ok {
		previous = u.Username
	}
	if owner, ok := r.s.usernames[username]; ok && owner != userID {
		return fmt.Errorf("username '%s' is taken: %w", username, db.ErrAlreadyExists)
	}
	r.s.usernames[username] = userID
	if previous != "" && previous != username && r.s.usernames[previous] == userID {
		delete(r.s.usernames, previous)
	}
	u, ok := r.s.users[userID]
	if !ok {
		u = &models.User{ID: userID, CreatedAt: time.Now().UTC()}
		r.s.users[userID] = u
	}
	u.Username = username
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) UsernameOwner(_ context.Context, username string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	uid, ok := r.s.usernames[username]
	if !ok {
		return "", fmt.Errorf("username '%s': %w", username, db.ErrNotFound)
	}
	return uid, nil
}

func (r *userRepo) GetByCustomerID(_ context.Context, customerID string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Subscription.StripeCustomerID == customerID {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user with Stripe customer '%s' not found: %w", customerID, db.ErrNotFound)
}

// --- children ---

type childRepo struct{ s *Store }

func (r *childRepo) Create(_ context.Context, child *models.Child, entry *models.ChangeLogEntry) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	child.ID = r.s.nextID("child")
	r.s.children[child.ID] = cloneChild(child)
	r.s.appendHistory("children/"+child.ID, child.ID, entry)
	return child.ID, nil
}

func (r *childRepo) GetByID(_ context.Context, childID string) (*models.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[childID]
	if !ok {
		return nil, notFound("child", childID)
	}
	return cloneChild(c), nil
}

func (r *childRepo) ListForUser(_ context.Context, userID string) ([]*models.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Child{}
	for _, c := range r.s.children {
		if c.IsDeleted {
			continue
		}
		if c.OwnerID == userID || contains(c.Editors, userID) || contains(c.Viewers, userID) {
			out = append(out, cloneChild(c))
		}
	}
	sortByCreated(out, func(c *models.Child) time.Time { return c.CreatedAt }, func(c *models.Child) string { return c.ID })
	return out, nil
}

func (r *childRepo) Update(_ context.Context, childID string, fn db.ChildMutation) (*models.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[childID]
	if !ok {
		return nil, notFound("child", childID)
	}
	work := cloneChild(c)
	entry, err := fn(work)
	if err != nil {
		return nil, fmt.Errorf("failed to update child '%s': %w", childID, err)
	}
	r.s.children[childID] = cloneChild(work)
	r.s.appendHistory("children/"+childID, childID, entry)
	return work, nil
}

func (r *childRepo) History(_ context.Context, childID string, limit int) ([]*models.ChangeLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.readHistory("children/"+childID, limit), nil
}

// --- events ---

type eventRepo struct{ s *Store }

func (r *eventRepo) Create(_ context.Context, childID string, fn db.EventMutation) (*models.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[childID]
	if !ok {
		return nil, notFound("child", childID)
	}
	ev, entry, err := fn(cloneChild(c), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create event for child '%s': %w", childID, err)
	}
	if ev == nil {
		return nil, errors.New("event mutation returned no event")
	}
	ev.ID = r.s.nextID("event")
	ev.ChildID = childID
	if r.s.events[childID] == nil {
		r.s.events[childID] = make(map[string]*models.CalendarEvent)
	}
	r.s.events[childID][ev.ID] = cloneEvent(ev)
	if entry != nil {
		entry.EntityID = ev.ID
	}
	r.s.appendHistory("children/"+childID, ev.ID, entry)
	return ev, nil
}

func (r *eventRepo) Update(_ context.Context, childID, eventID string, fn db.EventMutation) (*models.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[childID]
	if !ok {
		return nil, notFound("child", childID)
	}
	ev, ok := r.s.events[childID][eventID]
	if !ok {
		return nil, notFound("event", eventID)
	}
	work := cloneEvent(ev)
	_, entry, err := fn(cloneChild(c), work)
	if err != nil {
		return nil, fmt.Errorf("failed to update event '%s': %w", eventID, err)
	}
	r.s.events[childID][eventID] = cloneEvent(work)
	r.s.appendHistory("children/"+childID, eventID, entry)
	return work, nil
}

func (r *eventRepo) GetByID(_ context.Context, childID, eventID string) (*models.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev, ok := r.s.events[childID][eventID]
	if !ok {
		return nil, notFound("event", eventID)
	}
	return cloneEvent(ev), nil
}

func (r *eventRepo) ListByChild(_ context.Context, childID string, until time.Time) ([]*models.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.CalendarEvent{}
	for _, ev := range r.s.events[childID] {
		if !ev.IsDeleted && ev.StartDate.Before(until) {
			out = append(out, cloneEvent(ev))
		}
	}
	sortByCreated(out, func(e *models.CalendarEvent) time.Time { return e.StartDate }, func(e *models.CalendarEvent) string { return e.ID })
	return out, nil
}

func (r *eventRepo) DueReminders(_ context.Context, now time.Time, limit int) ([]*models.CalendarEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.CalendarEvent{}
	for _, byID := range r.s.events {
		for _, ev := range byID {
			if ev.NextReminderAt != nil && !ev.NextReminderAt.After(now) {
				out = append(out, cloneEvent(ev))
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextReminderAt.Before(*out[j].NextReminderAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *eventRepo) ClaimReminder(_ context.Context, childID, eventID string, due time.Time, next *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev, ok := r.s.events[childID][eventID]
	if !ok || ev.NextReminderAt == nil || !ev.NextReminderAt.Equal(due) {
		return false, nil
	}
	ev.NextReminderAt = copyTime(next)
	return true, nil
}

// --- parental plans ---

type planRepo struct{ s *Store }

func (r *planRepo) Create(_ context.Context, plan *models.ParentalPlan, entry *models.ChangeLogEntry) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan.ID = r.s.nextID("plan")
	r.s.plans[plan.ID] = clonePlan(plan)
	r.s.appendHistory("parental_plans/"+plan.ID, plan.ID, entry)
	return plan.ID, nil
}

func (r *planRepo) GetByID(_ context.Context, planID string) (*models.ParentalPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[planID]
	if !ok {
		return nil, notFound("parental plan", planID)
	}
	return clonePlan(p), nil
}

func (r *planRepo) ListForUser(_ context.Context, userID string) ([]*models.ParentalPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.ParentalPlan{}
	for _, p := range r.s.plans {
		if p.IsDeleted {
			continue
		}
		if p.OwnerID == userID || contains(p.Editors, userID) || contains(p.Viewers, userID) {
			out = append(out, clonePlan(p))
		}
	}
	sortByCreated(out, func(p *models.ParentalPlan) time.Time { return p.CreatedAt }, func(p *models.ParentalPlan) string { return p.ID })
	return out, nil
}

func (r *planRepo) Update(_ context.Context, planID string, fn db.PlanMutation) (*models.ParentalPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[planID]
	if !ok {
		return nil, notFound("parental plan", planID)
	}
	work := clonePlan(p)
	entry, err := fn(work)
	if err != nil {
		return nil, fmt.Errorf("failed to update parental plan '%s': %w", planID, err)
	}
	r.s.plans[planID] = clonePlan(work)
	r.s.appendHistory("parental_plans/"+planID, planID, entry)
	return work, nil
}

func (r *planRepo) History(_ context.Context, planID string, limit int) ([]*models.ChangeLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.readHistory("parental_plans/"+planID, limit), nil
}

// --- friendships ---

type friendshipRepo struct{ s *Store }

func (r *friendshipRepo) CreateRequest(_ context.Context, req *models.FriendRequest) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := models.FriendRequestID(req.SenderID, req.ReceiverID)
	if existing, ok := r.s.requests[id]; ok && existing.Status == models.FriendRequestPending {
		return "", fmt.Errorf("pending friend request '%s': %w", id, db.ErrAlreadyExists)
	}
	req.ID = id
	r.s.requests[id] = cloneRequest(req)
	return id, nil
}

func (r *friendshipRepo) FindPending(_ context.Context, a, b string) (*models.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.requests {
		if req.Status != models.FriendRequestPending {
			continue
		}
		if (req.SenderID == a && req.ReceiverID == b) || (req.SenderID == b && req.ReceiverID == a) {
			return cloneRequest(req), nil
		}
	}
	return nil, fmt.Errorf("no pending request between '%s' and '%s': %w", a, b, db.ErrNotFound)
}

func (r *friendshipRepo) ListRequests(_ context.Context, userID string, incoming bool, status string) ([]*models.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.FriendRequest{}
	for _, req := range r.s.requests {
		party := req.SenderID
		if incoming {
			party = req.ReceiverID
		}
		if party != userID || (status != "" && req.Status != status) {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	sortByCreated(out, func(q *models.FriendRequest) time.Time { return q.CreatedAt }, func(q *models.FriendRequest) string { return q.ID })
	return out, nil
}

func (r *friendshipRepo) UpdateRequest(_ context.Context, requestID string, fn func(req *models.FriendRequest) error) (*models.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[requestID]
	if !ok {
		return nil, notFound("friend request", requestID)
	}
	work := cloneRequest(req)
	if err := fn(work); err != nil {
		return nil, fmt.Errorf("failed to update friend request '%s': %w", requestID, err)
	}
	r.s.requests[requestID] = cloneRequest(work)
	return work, nil
}

func (r *friendshipRepo) Accept(_ context.Context, requestID string, fn db.AcceptFunc) (*models.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[requestID]
	if !ok {
		return nil, notFound("friend request", requestID)
	}
	work := cloneRequest(req)
	shared := []*models.Child{}
	for _, id := range work.SharedChildren {
		if c, ok := r.s.children[id]; ok {
			shared = append(shared, cloneChild(c))
		}
	}
	entries, err := fn(work, shared)
	if err != nil {
		return nil, fmt.Errorf("failed to accept friend request '%s': %w", requestID, err)
	}

	r.s.requests[requestID] = cloneRequest(work)
	for _, c := range shared {
		entry, ok := entries[c.ID]
		if !ok || entry == nil {
			continue
		}
		r.s.children[c.ID] = cloneChild(c)
		r.s.appendHistory("children/"+c.ID, c.ID, entry)
	}
	since := time.Now().UTC()
	if work.RespondedAt != nil {
		since = *work.RespondedAt
	}
	for _, pair := range [][2]string{{work.SenderID, work.ReceiverID}, {work.ReceiverID, work.SenderID}} {
		if r.s.friends[pair[0]] == nil {
			r.s.friends[pair[0]] = make(map[string]*models.Friend)
		}
		r.s.friends[pair[0]][pair[1]] = &models.Friend{
			FriendID:         pair[1],
			RelationshipType: work.RelationshipType,
			SharedChildren:   copyStrings(work.SharedChildren),
			RequestID:        work.ID,
			Since:            since,
		}
	}
	return work, nil
}

func (r *friendshipRepo) GetFriend(_ context.Context, userID, friendID string) (*models.Friend, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.friends[userID][friendID]
	if !ok {
		return nil, fmt.Errorf("friend '%s' of '%s' not found: %w", friendID, userID, db.ErrNotFound)
	}
	c := *f
	c.SharedChildren = copyStrings(f.SharedChildren)
	return &c, nil
}

func (r *friendshipRepo) ListFriends(_ context.Context, userID string) ([]*models.Friend, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Friend{}
	for _, f := range r.s.friends[userID] {
		c := *f
		c.SharedChildren = copyStrings(f.SharedChildren)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FriendID < out[j].FriendID })
	return out, nil
}

func (r *friendshipRepo) RemoveFriend(_ context.Context, userID, friendID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.friends[userID], friendID)
	delete(r.s.friends[friendID], userID)
	return nil
}

// --- notifications ---

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, n *models.Notification) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = r.s.nextID("notification")
	}
	c := *n
	r.s.notifications[n.UserID] = append(r.s.notifications[n.UserID], &c)
	return n.ID, nil
}

func (r *notificationRepo) List(_ context.Context, userID string, limit int, unreadOnly bool) ([]*models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	src := r.s.notifications[userID]
	out := []*models.Notification{}
	for i := len(src) - 1; i >= 0; i-- {
		if unreadOnly && src[i].Read {
			continue
		}
		c := *src[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, userID, notificationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications[userID] {
		if n.ID == notificationID {
			n.Read = true
			return nil
		}
	}
	return notFound("notification", notificationID)
}

// --- audit ---

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, logEntry models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if logEntry.Timestamp.IsZero() {
		logEntry.Timestamp = time.Now().UTC()
	}
	r.s.audit = append(r.s.audit, logEntry)
	return nil
}

// --- billing ---

type billingRepo struct{ s *Store }

func (r *billingRepo) ApplyEvent(_ context.Context, eventID, _, userID string, created int64, fn func(sub *models.Subscription) error) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.stripeEvents[eventID] {
		return false, nil
	}
	u, ok := r.s.users[userID]
	if !ok {
		return false, notFound("user", userID)
	}
	if created < u.Subscription.LastEventCreated {
		r.s.stripeEvents[eventID] = true
		return false, nil
	}
	sub := u.Subscription
	sub.CurrentPeriodEnd = copyTime(u.Subscription.CurrentPeriodEnd)
	if err := fn(&sub); err != nil {
		return false, fmt.Errorf("failed to apply Stripe event '%s': %w", eventID, err)
	}
	sub.LastEventCreated = created
	u.Subscription = sub
	u.UpdatedAt = time.Now().UTC()
	r.s.stripeEvents[eventID] = true
	return true, nil
}
