package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/models"
)

// FriendshipHandler handles friend requests and friends lists.
type FriendshipHandler struct {
	friendshipService core.FriendshipService
	logger            *zap.Logger
}

// NewFriendshipHandler creates a new FriendshipHandler.
func NewFriendshipHandler(fs core.FriendshipService, logger *zap.Logger) *FriendshipHandler {
	return &FriendshipHandler{friendshipService: fs, logger: logger}
}

func (h *FriendshipHandler) SendRequest(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.SendFriendRequestRequest
	if !bindJSON(c, &req) {
		return
	}
	fr, err := h.friendshipService.SendRequest(c.Request.Context(), uid, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, fr)
}

// ListRequests handles GET /api/v1/friends/requests?direction=incoming|outgoing.
func (h *FriendshipHandler) ListRequests(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var q models.ListFriendRequestsQuery
	if !bindQuery(c, &q) {
		return
	}
	requests, err := h.friendshipService.ListRequests(c.Request.Context(), uid, q.Direction)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *FriendshipHandler) AcceptRequest(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	fr, err := h.friendshipService.Accept(c.Request.Context(), uid, c.Param("requestId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, fr)
}

func (h *FriendshipHandler) DeclineRequest(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	fr, err := h.friendshipService.Decline(c.Request.Context(), uid, c.Param("requestId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, fr)
}

// CancelRequest handles DELETE /api/v1/friends/requests/:requestId. Sender only.
func (h *FriendshipHandler) CancelRequest(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.friendshipService.Cancel(c.Request.Context(), uid, c.Param("requestId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FriendshipHandler) ListFriends(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	friends, err := h.friendshipService.ListFriends(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, friends)
}

func (h *FriendshipHandler) RemoveFriend(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.friendshipService.RemoveFriend(c.Request.Context(), uid, c.Param("friendId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
