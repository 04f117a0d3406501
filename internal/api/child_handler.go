package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/models"
)

// ChildHandler handles child endpoints.
type ChildHandler struct {
	childService core.ChildService
	logger       *zap.Logger
}

// NewChildHandler creates a new ChildHandler.
func NewChildHandler(cs core.ChildService, logger *zap.Logger) *ChildHandler {
	return &ChildHandler{childService: cs, logger: logger}
}

// CreateChild handles POST /api/v1/children.
func (h *ChildHandler) CreateChild(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.CreateChildRequest
	if !bindJSON(c, &req) {
		return
	}
	child, err := h.childService.Create(c.Request.Context(), uid, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, child)
}

// ListChildren handles GET /api/v1/children and returns every child the caller can see.
func (h *ChildHandler) ListChildren(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	children, err := h.childService.List(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, children)
}

func (h *ChildHandler) GetChild(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	child, err := h.childService.Get(c.Request.Context(), uid, c.Param("childId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

func (h *ChildHandler) UpdateChild(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdateChildRequest
	if !bindJSON(c, &req) {
		return
	}
	child, err := h.childService.Update(c.Request.Context(), uid, c.Param("childId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

func (h *ChildHandler) DeleteChild(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.childService.Delete(c.Request.Context(), uid, c.Param("childId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateChildAccess handles PUT /api/v1/children/:childId/access. Owner only.
func (h *ChildHandler) UpdateChildAccess(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdateAccessRequest
	if !bindJSON(c, &req) {
		return
	}
	child, err := h.childService.UpdateAccess(c.Request.Context(), uid, c.Param("childId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

func (h *ChildHandler) GetChildHistory(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var q models.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	entries, err := h.childService.History(c.Request.Context(), uid, c.Param("childId"), q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
