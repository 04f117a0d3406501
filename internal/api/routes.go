package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/middleware"
	"compartilar-backend-go/internal/ratelimit"
)

// Services groups the domain services the HTTP layer depends on.
type Services struct {
	Users         core.UserService
	Children      core.ChildService
	Events        core.EventService
	Plans         core.ParentalPlanService
	Friendships   core.FriendshipService
	Notifications core.NotificationService
	Billing       core.BillingService
}

// SetupRoutes registers every route. Global middleware (request id, logging,
// recovery, CORS) is expected to be installed on router by the caller.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	verifier middleware.TokenVerifier,
	limiter *ratelimit.Limiter,
	services Services,
) {
	RegisterValidators()

	authMW := middleware.NewAuthMiddleware(verifier, logger)

	userHandler := NewUserHandler(services.Users, logger)
	childHandler := NewChildHandler(services.Children, logger)
	eventHandler := NewEventHandler(services.Events, logger)
	planHandler := NewParentalPlanHandler(services.Plans, logger)
	friendHandler := NewFriendshipHandler(services.Friendships, logger)
	notificationHandler := NewNotificationHandler(services.Notifications, logger)
	billingHandler := NewBillingHandler(services.Billing, logger)

	apiV1 := router.Group("/api/v1")

	// Stripe authenticates webhooks by signature; no token, CSRF header or rate limit applies.
	apiV1.POST("/billing/webhooks/stripe", billingHandler.HandleStripeWebhook)

	authed := apiV1.Group("",
		authMW.VerifyToken(),
		middleware.RateLimitMiddleware(limiter, logger),
		middleware.CSRFMiddleware(),
	)
	{
		users := authed.Group("/users")
		users.POST("/initialize", userHandler.InitializeUserProfile)
		users.GET("/me", userHandler.GetCurrentUserProfile)
		users.PATCH("/me", userHandler.UpdateCurrentUserProfile)
		users.GET("/username-availability", userHandler.CheckUsernameAvailability)

		children := authed.Group("/children")
		children.POST("", childHandler.CreateChild)
		children.GET("", childHandler.ListChildren)
		children.GET("/:childId", childHandler.GetChild)
		children.PATCH("/:childId", childHandler.UpdateChild)
		children.DELETE("/:childId", childHandler.DeleteChild)
		children.PUT("/:childId/access", childHandler.UpdateChildAccess)
		children.GET("/:childId/history", childHandler.GetChildHistory)

		events := children.Group("/:childId/events")
		events.POST("", eventHandler.CreateEvent)
		events.GET("", eventHandler.ListEvents)
		events.GET("/:eventId", eventHandler.GetEvent)
		events.PATCH("/:eventId", eventHandler.UpdateEvent)
		events.DELETE("/:eventId", eventHandler.DeleteEvent)

		plans := authed.Group("/parental-plans")
		plans.POST("", planHandler.CreatePlan)
		plans.GET("", planHandler.ListPlans)
		plans.GET("/:planId", planHandler.GetPlan)
		plans.PATCH("/:planId", planHandler.UpdatePlan)
		plans.DELETE("/:planId", planHandler.DeletePlan)
		plans.PUT("/:planId/access", planHandler.UpdatePlanAccess)
		plans.GET("/:planId/history", planHandler.GetPlanHistory)

		fields := plans.Group("/:planId/sections/:section/fields/:fieldName")
		fields.POST("/propose", planHandler.ProposeField)
		fields.POST("/approve", planHandler.ApproveField)
		fields.POST("/reject", planHandler.RejectField)
		fields.POST("/cancel", planHandler.CancelField)

		friends := authed.Group("/friends")
		friends.GET("", friendHandler.ListFriends)
		friends.POST("/requests", friendHandler.SendRequest)
		friends.GET("/requests", friendHandler.ListRequests)
		friends.POST("/requests/:requestId/accept", friendHandler.AcceptRequest)
		friends.POST("/requests/:requestId/decline", friendHandler.DeclineRequest)
		friends.DELETE("/requests/:requestId", friendHandler.CancelRequest)
		friends.DELETE("/:friendId", friendHandler.RemoveFriend)

		notifications := authed.Group("/notifications")
		notifications.GET("", notificationHandler.ListNotifications)
		notifications.POST("/:notificationId/read", notificationHandler.MarkRead)

		billing := authed.Group("/billing")
		billing.GET("/plans", billingHandler.ListPlans)
		billing.POST("/checkout-session", billingHandler.CreateCheckoutSession)
		billing.POST("/portal-session", billingHandler.CreatePortalSession)
		billing.GET("/subscription", billingHandler.GetSubscription)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	logger.Info("API routes configured under /api/v1 and /health")
}
