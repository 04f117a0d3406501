package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/models"
)

// UserHandler handles account and profile endpoints.
type UserHandler struct {
	userService core.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: us, logger: logger}
}

// InitializeUserProfile handles POST /api/v1/users/initialize.
// The body is optional; it answers 201 when the account was created and 200 otherwise.
func (h *UserHandler) InitializeUserProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.InitializeUserRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	user, created, err := h.userService.Initialize(c.Request.Context(), tokenClaims(c, uid), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, InitializeUserResponse{User: user, Created: created})
}

// GetCurrentUserProfile handles GET /api/v1/users/me.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.userService.GetByID(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateCurrentUserProfile handles PATCH /api/v1/users/me.
func (h *UserHandler) UpdateCurrentUserProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), uid, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CheckUsernameAvailability handles GET /api/v1/users/username-availability?username=.
func (h *UserHandler) CheckUsernameAvailability(c *gin.Context) {
	var q UsernameAvailabilityQuery
	if !bindQuery(c, &q) {
		return
	}
	available, err := h.userService.UsernameAvailable(c.Request.Context(), q.Username)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	normalized, _ := core.NormalizeUsername(q.Username)
	c.JSON(http.StatusOK, UsernameAvailabilityResponse{Username: normalized, Available: available})
}
