package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/approval"
	"compartilar-backend-go/internal/config"
	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/db/dbtest"
	"compartilar-backend-go/internal/middleware"
	"compartilar-backend-go/internal/models"
	"compartilar-backend-go/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenVerifier treats every token as the uid it names.
type tokenVerifier struct{}

func (tokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if idToken == "expired" {
		return nil, errors.New("token expired")
	}
	return &auth.Token{UID: idToken, Claims: map[string]interface{}{
		"email": idToken + "@example.com",
		"name":  strings.ToUpper(idToken[:1]) + idToken[1:],
	}}, nil
}

const goodSignature = "t=1,v1=good"

type stubGateway struct{}

func (stubGateway) CreateCheckoutSession(_ context.Context, p core.CheckoutParams) (*core.CheckoutSession, error) {
	return &core.CheckoutSession{SessionID: "cs_" + p.UserID, URL: "https://checkout.stripe.test/" + p.PriceID}, nil
}

func (stubGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.test/" + customerID, nil
}

func (stubGateway) ParseWebhook(payload []byte, signature string) (*core.BillingEvent, error) {
	if signature != goodSignature {
		return nil, core.ErrInvalidSignature
	}
	var ev core.BillingEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

type memCounter struct {
	mu sync.Mutex
	n  map[string]int64
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Ignore the window suffix so tests never straddle a boundary.
	k := key[:strings.LastIndex(key, ":")]
	m.n[k]++
	return m.n[k], nil
}

type apiEnv struct {
	router *gin.Engine
	store  *dbtest.Store
}

func newAPIEnv(t *testing.T, limiter *ratelimit.Limiter) *apiEnv {
	t.Helper()
	logger := zap.NewNop()
	store := dbtest.New()
	audit := core.NewAuditService(store.AuditRepository(), logger)
	notes := core.NewNotificationService(store.NotificationRepository(), store.UserRepository(), nil, "", logger)
	plans := config.Plans{"monthly": {ID: "monthly", Name: "Monthly", PriceID: "price_monthly", Interval: "month"}}

	if limiter == nil {
		limiter = ratelimit.New(nil, 100, time.Minute)
	}
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.RecoveryMiddleware(logger))
	SetupRoutes(router, logger, tokenVerifier{}, limiter, Services{
		Users:         core.NewUserService(store.UserRepository(), audit, logger),
		Children:      core.NewChildService(store.ChildRepository(), audit, logger),
		Events:        core.NewEventService(store.EventRepository(), store.ChildRepository(), notes, logger),
		Plans:         core.NewParentalPlanService(store.PlanRepository(), store.ChildRepository(), audit, notes, logger),
		Friendships:   core.NewFriendshipService(store.FriendshipRepository(), store.UserRepository(), store.ChildRepository(), audit, notes, logger),
		Notifications: notes,
		Billing:       core.NewBillingService(stubGateway{}, store.BillingRepository(), store.UserRepository(), plans, "https://app.example.com", audit, logger),
	})
	return &apiEnv{router: router, store: store}
}

// do sends an authenticated browser-style request. An empty uid sends no token.
func (e *apiEnv) do(t *testing.T, method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+uid)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, w, &resp)
	return resp.Error
}

func (e *apiEnv) initUser(t *testing.T, uid, username string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/users/initialize", uid, gin.H{"username": username})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (e *apiEnv) createChild(t *testing.T, uid string) *models.Child {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/children", uid, gin.H{"firstName": "Lia", "birthDate": "2018-03-04"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var child models.Child
	decode(t, w, &child)
	return &child
}

func TestHealthAndAuth(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w = env.do(t, http.MethodGet, "/api/v1/children", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/children", "expired", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// State-changing calls need the CSRF header even with a valid token.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/children", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer ana")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/users/initialize", "ana", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp InitializeUserResponse
	decode(t, w, &resp)
	assert.True(t, resp.Created)
	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.Equal(t, "Ana", resp.User.DisplayName)

	w = env.do(t, http.MethodPost, "/api/v1/users/initialize", "ana", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/users/initialize", "bob", gin.H{"username": "b!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "username must be")

	w = env.do(t, http.MethodPatch, "/api/v1/users/me", "ana", gin.H{"username": "Ana_S", "firstName": "Ana"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/users/me", "ana", nil)
	var me models.User
	decode(t, w, &me)
	assert.Equal(t, "ana_s", me.Username)
	assert.Equal(t, "Ana", me.FirstName)

	w = env.do(t, http.MethodGet, "/api/v1/users/username-availability?username=ANA_S", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail UsernameAvailabilityResponse
	decode(t, w, &avail)
	assert.Equal(t, UsernameAvailabilityResponse{Username: "ana_s", Available: false}, avail)

	w = env.do(t, http.MethodGet, "/api/v1/users/me", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChildEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.initUser(t, "ana", "ana")
	env.initUser(t, "bob", "bob")

	w := env.do(t, http.MethodPost, "/api/v1/children", "ana", gin.H{"birthDate": "2018-03-04"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "firstName is required", errorOf(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/children", "ana", gin.H{"firstName": "Lia", "birthDate": "2999-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "birthDate must be a YYYY-MM-DD date")

	child := env.createChild(t, "ana")
	assert.Equal(t, "ana", child.OwnerID)
	assert.Equal(t, "undisclosed", child.Gender)

	path := "/api/v1/children/" + child.ID
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, path, "bob", nil).Code)

	w = env.do(t, http.MethodPut, path+"/access", "ana", gin.H{"addViewers": []string{"bob"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, "bob", nil).Code)

	w = env.do(t, http.MethodPatch, path, "bob", gin.H{"firstName": "Bia"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only editors can update this child", errorOf(t, w))

	w = env.do(t, http.MethodPatch, path, "ana", gin.H{"firstName": "Bia"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, path+"/history?limit=10", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.ChangeLogEntry
	decode(t, w, &history)
	assert.Len(t, history, 3)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, path+"/history?limit=0", "ana", nil).Code)

	w = env.do(t, http.MethodGet, "/api/v1/children", "bob", nil)
	var list []models.Child
	decode(t, w, &list)
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, path, "bob", nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, "ana", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, "ana", nil).Code)
}

func TestEventEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.initUser(t, "ana", "ana")
	child := env.createChild(t, "ana")
	base := "/api/v1/children/" + child.ID + "/events"

	w := env.do(t, http.MethodPost, base, "ana", gin.H{
		"title":     "Dentist",
		"startDate": "2030-01-01T10:00:00Z",
		"endDate":   "2030-01-01T09:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "endDate must not be before startDate", errorOf(t, w))

	w = env.do(t, http.MethodPost, base, "ana", gin.H{
		"title":     "Dentist",
		"startDate": "2030-01-01T10:00:00Z",
		"endDate":   "2030-01-01T11:00:00Z",
		"category":  "medical",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ev models.CalendarEvent
	decode(t, w, &ev)

	w = env.do(t, http.MethodGet, base+"?from=2030-01-01T00:00:00Z&to=2030-01-02T00:00:00Z", "ana", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var occurrences []map[string]interface{}
	decode(t, w, &occurrences)
	assert.Len(t, occurrences, 1)

	w = env.do(t, http.MethodPatch, base+"/"+ev.ID, "ana", gin.H{"title": "Orthodontist"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodGet, base+"/"+ev.ID, "ana", nil)
	decode(t, w, &ev)
	assert.Equal(t, "Orthodontist", ev.Title)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/"+ev.ID, "ana", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"/"+ev.ID, "ana", nil).Code)
}

func TestParentalPlanApprovalFlow(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.initUser(t, "ana", "ana")
	env.initUser(t, "bob", "bob")
	child := env.createChild(t, "ana")

	w := env.do(t, http.MethodPost, "/api/v1/parental-plans", "ana", gin.H{"title": "Plan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "childrenIds is required", errorOf(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/parental-plans", "ana", gin.H{"title": "Plan", "childrenIds": []string{child.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var plan models.ParentalPlan
	decode(t, w, &plan)
	path := "/api/v1/parental-plans/" + plan.ID

	w = env.do(t, http.MethodPut, path+"/access", "ana", gin.H{"addEditors": []string{"bob"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	field := path + "/sections/education/fields/school"
	w = env.do(t, http.MethodPost, field+"/propose", "ana", gin.H{"value": "Escola Azul", "comment": "closest"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status approval.FieldStatus
	decode(t, w, &status)
	assert.Equal(t, approval.StatusPending, status.Status)
	assert.Equal(t, "Escola Azul", status.Value)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, field+"/approve", "ana", nil).Code)

	w = env.do(t, http.MethodPost, field+"/approve", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &status)
	assert.Equal(t, approval.StatusApproved, status.Status)
	assert.Equal(t, "bob", status.ApprovedBy)

	w = env.do(t, http.MethodPost, path+"/sections/unknown/fields/school/propose", "ana", gin.H{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, path+"/history", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.ChangeLogEntry
	decode(t, w, &history)
	assert.GreaterOrEqual(t, len(history), 3)

	w = env.do(t, http.MethodGet, "/api/v1/parental-plans", "bob", nil)
	var plans []models.ParentalPlan
	decode(t, w, &plans)
	assert.Len(t, plans, 1)
}

func TestFriendAndNotificationEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.initUser(t, "ana", "ana_s")
	env.initUser(t, "bob", "bob")

	w := env.do(t, http.MethodPost, "/api/v1/friends/requests", "bob", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "receiverId is required when receiverUsername is not provided", errorOf(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/friends/requests", "bob", gin.H{"receiverUsername": "Ana_S"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var fr models.FriendRequest
	decode(t, w, &fr)
	assert.Equal(t, models.RelationshipCoparent, fr.RelationshipType)

	w = env.do(t, http.MethodGet, "/api/v1/friends/requests", "ana", nil)
	var incoming []models.FriendRequest
	decode(t, w, &incoming)
	assert.Len(t, incoming, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/friends/requests?direction=sideways", "ana", nil).Code)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/v1/friends/requests/"+fr.ID+"/accept", "bob", nil).Code)
	w = env.do(t, http.MethodPost, "/api/v1/friends/requests/"+fr.ID+"/accept", "ana", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/friends", "bob", nil)
	var friends []models.Friend
	decode(t, w, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, "ana", friends[0].FriendID)

	w = env.do(t, http.MethodGet, "/api/v1/notifications?unread=true", "ana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []models.Notification
	decode(t, w, &notes)
	require.NotEmpty(t, notes)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/read", notes[0].ID), "ana", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/notifications/missing/read", "ana", nil).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/friends/ana", "bob", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/v1/friends/ana", "bob", nil).Code)
}

func TestBillingEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.initUser(t, "ana", "ana")

	w := env.do(t, http.MethodGet, "/api/v1/billing/plans", "ana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "price_monthly")

	w = env.do(t, http.MethodPost, "/api/v1/billing/checkout-session", "ana", gin.H{"planId": "monthly"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session core.CheckoutSession
	decode(t, w, &session)
	assert.Equal(t, "cs_ana", session.SessionID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/billing/checkout-session", "ana", gin.H{"planId": "gold"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/billing/portal-session", "ana", nil).Code)

	event := core.BillingEvent{
		ID: "evt_1", Type: core.EventCheckoutCompleted, Created: 100,
		CustomerID: "cus_1", SubscriptionID: "sub_1", ClientReferenceID: "ana", PlanID: "monthly",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	webhook := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", sig)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusBadRequest, webhook("t=1,v1=forged").Code)
	assert.Equal(t, http.StatusOK, webhook(goodSignature).Code)
	assert.Equal(t, http.StatusOK, webhook(goodSignature).Code)

	w = env.do(t, http.MethodGet, "/api/v1/billing/subscription", "ana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sub models.Subscription
	decode(t, w, &sub)
	assert.True(t, sub.Active)
	assert.Equal(t, "monthly", sub.Plan)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)

	w = env.do(t, http.MethodPost, "/api/v1/billing/portal-session", "ana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://billing.stripe.test/cus_1"}`, w.Body.String())
}

func TestRateLimitedRoutes(t *testing.T) {
	env := newAPIEnv(t, ratelimit.New(&memCounter{n: map[string]int64{}}, 2, time.Minute))
	env.initUser(t, "ana", "ana")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/children", "ana", nil).Code)
	w := env.do(t, http.MethodGet, "/api/v1/children", "ana", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Limits are per user.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/children", "bob", nil).Code)
	// Health is never limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		respondError(c, zap.NewNop(), errors.New("firestore: deadline exceeded"))
	})
	router.GET("/limited", func(c *gin.Context) {
		respondError(c, zap.NewNop(), fmt.Errorf("slow down: %w", core.ErrRateLimited))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "firestore")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
