package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/models"
)

// ParentalPlanHandler handles parental plan endpoints and the field approval workflow.
type ParentalPlanHandler struct {
	planService core.ParentalPlanService
	logger      *zap.Logger
}

// NewParentalPlanHandler creates a new ParentalPlanHandler.
func NewParentalPlanHandler(ps core.ParentalPlanService, logger *zap.Logger) *ParentalPlanHandler {
	return &ParentalPlanHandler{planService: ps, logger: logger}
}

func (h *ParentalPlanHandler) CreatePlan(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.CreatePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.planService.Create(c.Request.Context(), uid, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *ParentalPlanHandler) ListPlans(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	plans, err := h.planService.List(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *ParentalPlanHandler) GetPlan(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	plan, err := h.planService.Get(c.Request.Context(), uid, c.Param("planId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *ParentalPlanHandler) UpdatePlan(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdatePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.planService.Update(c.Request.Context(), uid, c.Param("planId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *ParentalPlanHandler) DeletePlan(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.planService.Delete(c.Request.Context(), uid, c.Param("planId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ParentalPlanHandler) UpdatePlanAccess(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdateAccessRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.planService.UpdateAccess(c.Request.Context(), uid, c.Param("planId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *ParentalPlanHandler) GetPlanHistory(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var q models.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	entries, err := h.planService.History(c.Request.Context(), uid, c.Param("planId"), q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ProposeField handles POST .../sections/:section/fields/:fieldName/propose.
func (h *ParentalPlanHandler) ProposeField(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.FieldProposalRequest
	if !bindJSON(c, &req) {
		return
	}
	status, err := h.planService.ProposeField(c.Request.Context(), uid, c.Param("planId"), c.Param("section"), c.Param("fieldName"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *ParentalPlanHandler) ApproveField(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.FieldReviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	status, err := h.planService.ApproveField(c.Request.Context(), uid, c.Param("planId"), c.Param("section"), c.Param("fieldName"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *ParentalPlanHandler) RejectField(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.FieldReviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	status, err := h.planService.RejectField(c.Request.Context(), uid, c.Param("planId"), c.Param("section"), c.Param("fieldName"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// CancelField withdraws the caller's own pending proposal.
func (h *ParentalPlanHandler) CancelField(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	status, err := h.planService.CancelField(c.Request.Context(), uid, c.Param("planId"), c.Param("section"), c.Param("fieldName"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
