package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/config"
	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier map[string]*auth.Token

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := s[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("token expired")
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyToken(t *testing.T) {
	verifier := stubVerifier{"good": {UID: "u1", Claims: map[string]interface{}{
		"email": "ana@example.com", "name": "Ana", "picture": "https://img/ana.png",
	}}}
	r := gin.New()
	r.Use(NewAuthMiddleware(verifier, zap.NewNop()).VerifyToken())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uid":   c.GetString(ContextUserID),
			"email": c.GetString(ContextUserEmail),
			"name":  c.GetString(ContextUserDisplayName),
			"photo": c.GetString(ContextUserPhotoURL),
		})
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header is required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "must be 'Bearer {token}'"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "must be 'Bearer {token}'"},
		{"invalid token", "Bearer bad", http.StatusUnauthorized, "Invalid or expired authentication token"},
		{"valid token", "bearer good", http.StatusOK, `"uid":"u1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	body := serve(r, req).Body.String()
	assert.Contains(t, body, `"email":"ana@example.com"`)
	assert.Contains(t, body, `"name":"Ana"`)
	assert.Contains(t, body, `"photo":"https://img/ana.png"`)
}

func TestNewAuthMiddlewarePanicsWithoutVerifier(t *testing.T) {
	assert.Panics(t, func() { NewAuthMiddleware(nil, zap.NewNop()) })
}

func TestCSRFMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CSRFMiddleware())
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.GET("/x", ok)
	r.POST("/x", ok)
	r.DELETE("/x", ok)

	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)

	req := httptest.NewRequest(http.MethodDelete, "/x", nil)
	req.Header.Set("X-Requested-With", "fetch")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

// countingStore counts calls regardless of key so tests do not depend on window boundaries.
type countingStore struct {
	mu   sync.Mutex
	n    map[string]int64
	keys []string
	fail bool
}

func (s *countingStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("redis down")
	}
	prefix := key[:strings.LastIndex(key, ":")]
	s.n[prefix]++
	s.keys = append(s.keys, key)
	return s.n[prefix], nil
}

func TestRateLimitMiddleware(t *testing.T) {
	store := &countingStore{n: map[string]int64{}}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set(ContextUserID, uid)
		}
		c.Next()
	})
	r.Use(RateLimitMiddleware(ratelimit.New(store, 2, time.Hour), zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(uid string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if uid != "" {
			req.Header.Set("X-Test-User", uid)
		}
		return serve(r, req)
	}

	w := get("u1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, get("u1").Code)

	w = get("u1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Too many requests")

	assert.Equal(t, http.StatusOK, get("u2").Code)
	assert.Equal(t, http.StatusOK, get("").Code)
	assert.True(t, strings.HasPrefix(store.keys[0], "ratelimit:uid:u1:"))
	assert.True(t, strings.HasPrefix(store.keys[len(store.keys)-1], "ratelimit:ip:"))
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(ratelimit.New(&countingStore{fail: true}, 1, time.Minute), zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var meta core.RequestMeta
	r.GET("/x", func(c *gin.Context) {
		meta = core.RequestMetaFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("User-Agent", "test-agent")
	w := serve(r, req)
	generated := w.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, meta.RequestID)
	assert.Equal(t, "test-agent", meta.UserAgent)
	assert.NotEmpty(t, meta.IPAddress)

	incoming := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, incoming)
	assert.Equal(t, incoming, serve(r, req).Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid\r\n")
	assert.NotEqual(t, "not-a-uuid", serve(r, req).Header().Get(HeaderRequestID))
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	assert.Panics(t, func() { CORSMiddleware(&config.Config{}) })

	r := gin.New()
	r.Use(CORSMiddleware(&config.Config{ClientURL: "https://app.compartilar.com, http://localhost:3000/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := serve(r, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestRequestLogger(t *testing.T) {
	assert.Panics(t, func() { RequestLogger(nil) })

	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	assert.Equal(t, http.StatusTeapot, serve(r, httptest.NewRequest(http.MethodGet, "/x?a=1", nil)).Code)
}
