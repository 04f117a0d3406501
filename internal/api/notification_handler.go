package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/models"
)

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	notificationService core.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(ns core.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: ns, logger: logger}
}

// ListNotifications handles GET /api/v1/notifications?limit=&unread=.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var q models.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.notificationService.List(c.Request.Context(), uid, q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), uid, c.Param("notificationId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
