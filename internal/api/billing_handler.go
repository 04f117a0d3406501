package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/models"
)

// Stripe documents 64KB as the upper bound for webhook payloads.
const maxWebhookBodyBytes = 65536

// BillingHandler handles billing-related API endpoints.
type BillingHandler struct {
	billingService core.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, logger: logger}
}

// ListPlans handles GET /api/v1/billing/plans.
func (h *BillingHandler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, h.billingService.Plans())
}

// CreateCheckoutSession handles POST /api/v1/billing/checkout-session.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.CheckoutSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.billingService.CreateCheckoutSession(c.Request.Context(), uid, req.PlanID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// CreatePortalSession handles POST /api/v1/billing/portal-session.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	url, err := h.billingService.CreatePortalSession(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PortalSessionResponse{URL: url})
}

func (h *BillingHandler) GetSubscription(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	sub, err := h.billingService.GetSubscription(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// HandleStripeWebhook handles POST /api/v1/billing/webhooks/stripe. It is public;
// the service verifies the Stripe-Signature header before acting on the payload.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Webhook payload could not be read"})
		return
	}
	if err := h.billingService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
