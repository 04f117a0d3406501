package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/models"
)

// EventHandler handles the calendar endpoints nested under a child.
type EventHandler struct {
	eventService core.EventService
	logger       *zap.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(es core.EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{eventService: es, logger: logger}
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	event, err := h.eventService.Create(c.Request.Context(), uid, c.Param("childId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// ListEvents handles GET /api/v1/children/:childId/events?from=&to=.
// Recurring events are expanded into occurrences inside the range.
func (h *EventHandler) ListEvents(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var q models.ListEventsQuery
	if !bindQuery(c, &q) {
		return
	}
	occurrences, err := h.eventService.List(c.Request.Context(), uid, c.Param("childId"), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, occurrences)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	event, err := h.eventService.Get(c.Request.Context(), uid, c.Param("childId"), c.Param("eventId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) UpdateEvent(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	event, err := h.eventService.Update(c.Request.Context(), uid, c.Param("childId"), c.Param("eventId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) DeleteEvent(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.eventService.Delete(c.Request.Context(), uid, c.Param("childId"), c.Param("eventId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
