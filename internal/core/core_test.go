package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/config"
	"compartilar-backend-go/internal/db/dbtest"
	"compartilar-backend-go/internal/models"
)

// recordingPublisher captures queued messages.
type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, body)
	return nil
}

type testEnv struct {
	store         *dbtest.Store
	publisher     *recordingPublisher
	gateway       *fakeGateway
	audit         AuditService
	notifications NotificationService
	users         UserService
	children      ChildService
	events        EventService
	reminders     ReminderService
	plans         ParentalPlanService
	friends       FriendshipService
	billing       BillingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := dbtest.New()
	pub := &recordingPublisher{}
	gw := &fakeGateway{}

	audit := NewAuditService(store.AuditRepository(), logger)
	notes := NewNotificationService(store.NotificationRepository(), store.UserRepository(), pub, "notifications", logger)
	plans := config.Plans{
		"monthly": {ID: "monthly", Name: "Monthly", PriceID: "price_monthly", Interval: "month"},
		"yearly":  {ID: "yearly", Name: "Yearly", PriceID: "price_yearly", Interval: "year"},
	}
	return &testEnv{
		store:         store,
		publisher:     pub,
		gateway:       gw,
		audit:         audit,
		notifications: notes,
		users:         NewUserService(store.UserRepository(), audit, logger),
		children:      NewChildService(store.ChildRepository(), audit, logger),
		events:        NewEventService(store.EventRepository(), store.ChildRepository(), notes, logger),
		reminders:     NewReminderService(store.EventRepository(), store.ChildRepository(), notes, logger),
		plans:         NewParentalPlanService(store.PlanRepository(), store.ChildRepository(), audit, notes, logger),
		friends:       NewFriendshipService(store.FriendshipRepository(), store.UserRepository(), store.ChildRepository(), audit, notes, logger),
		billing:       NewBillingService(gw, store.BillingRepository(), store.UserRepository(), plans, "https://app.example.com", audit, logger),
	}
}

// user creates an account with the given uid and username.
func (e *testEnv) user(t *testing.T, uid, username string) *models.User {
	t.Helper()
	u, created, err := e.users.Initialize(context.Background(),
		models.TokenClaims{UID: uid, Email: uid + "@example.com", DisplayName: uid},
		models.InitializeUserRequest{Username: username})
	require.NoError(t, err)
	require.True(t, created)
	return u
}

// child creates a child owned by uid and shares it with the given editors and viewers.
func (e *testEnv) child(t *testing.T, uid string, editors, viewers []string) *models.Child {
	t.Helper()
	ctx := context.Background()
	c, err := e.children.Create(ctx, uid, models.CreateChildRequest{FirstName: "Ana", BirthDate: "2018-03-04"})
	require.NoError(t, err)
	if len(editors) > 0 || len(viewers) > 0 {
		c, err = e.children.UpdateAccess(ctx, uid, c.ID, models.UpdateAccessRequest{AddEditors: editors, AddViewers: viewers})
		require.NoError(t, err)
	}
	return c
}

func (e *testEnv) notificationsFor(t *testing.T, uid string) []*models.Notification {
	t.Helper()
	list, err := e.notifications.List(context.Background(), uid, models.ListQuery{Limit: 100})
	require.NoError(t, err)
	return list
}

func assertKind(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
	if msg != "" {
		var ce *Error
		require.True(t, errors.As(err, &ce), "expected *core.Error, got %T", err)
		assert.Equal(t, msg, ce.Message)
	}
}

func strp(s string) *string { return &s }
