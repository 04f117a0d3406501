package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/madflojo/tasks"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/api"
	"compartilar-backend-go/internal/config"
	"compartilar-backend-go/internal/core"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/middleware"
	"compartilar-backend-go/internal/ratelimit"
	"compartilar-backend-go/pkg/cache"
	"compartilar-backend-go/pkg/messagequeue"
)

func newLogger() (*zap.Logger, error) {
	if os.Getenv("GIN_MODE") == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// In production, environment variables are set directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
	}

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer logger.Sync()

	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	plans, err := config.LoadPlans(appConfig.PlansFile)
	if err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to load subscription plans", zap.String("file", appConfig.PlansFile), zap.Error(err))
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()
	if err := db.InitFirestore(initCtx, appConfig, logger); err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore and Firebase Admin SDK", zap.Error(err))
	}
	defer db.Close()
	firestoreClient := db.GetFirestoreClient()

	// Redis backs the shared rate limit. Without it every request is allowed.
	var counter cache.Counter
	if appConfig.RedisAddress != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddress,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		}, logger)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer redisCache.Close()
			counter = redisCache
		}
	} else {
		logger.Warn("REDIS_ADDRESS not set, rate limiting disabled")
	}
	limiter := ratelimit.New(counter, appConfig.RateLimitRequests, appConfig.RateLimitWindow)

	// RabbitMQ carries notification emails to the notifier worker. Without it
	// notifications stay in-app only.
	var publisher core.Publisher
	if appConfig.RabbitMQURL != "" {
		mq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL}, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, email notifications disabled", zap.Error(err))
		} else {
			defer mq.Close()
			publisher = mq
		}
	}

	userRepo := db.NewFirestoreUserRepository(firestoreClient)
	childRepo := db.NewFirestoreChildRepository(firestoreClient)
	eventRepo := db.NewFirestoreEventRepository(firestoreClient)

	auditService := core.NewAuditService(db.NewFirestoreAuditRepository(firestoreClient), logger)
	notificationService := core.NewNotificationService(db.NewFirestoreNotificationRepository(firestoreClient), userRepo, publisher, appConfig.NotificationQueue, logger)
	reminderService := core.NewReminderService(eventRepo, childRepo, notificationService, logger)
	services := api.Services{
		Users:         core.NewUserService(userRepo, auditService, logger),
		Children:      core.NewChildService(childRepo, auditService, logger),
		Events:        core.NewEventService(eventRepo, childRepo, notificationService, logger),
		Plans:         core.NewParentalPlanService(db.NewFirestorePlanRepository(firestoreClient), childRepo, auditService, notificationService, logger),
		Friendships:   core.NewFriendshipService(db.NewFirestoreFriendshipRepository(firestoreClient), userRepo, childRepo, auditService, notificationService, logger),
		Notifications: notificationService,
		Billing: core.NewBillingService(
			core.NewStripeGateway(appConfig.StripeSecretKey, appConfig.StripeWebhookSecret),
			db.NewFirestoreBillingRepository(firestoreClient),
			userRepo, plans, appConfig.ClientURL, auditService, logger,
		),
	}

	scheduler := tasks.New()
	defer scheduler.Stop()
	if err := scheduleReminders(scheduler, reminderService, appConfig.ReminderInterval, logger); err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to schedule reminder dispatch", zap.Error(err))
	}

	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORSMiddleware(appConfig))

	api.SetupRoutes(router, logger, db.GetFirebaseAuthClient(), limiter, services)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", appConfig.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exiting")
}

// scheduleReminders runs the reminder dispatcher every interval. A tick is
// skipped while the previous run is still going.
func scheduleReminders(scheduler *tasks.Scheduler, reminders core.ReminderService, interval time.Duration, logger *zap.Logger) error {
	var running atomic.Bool
	_, err := scheduler.Add(&tasks.Task{
		Interval: interval,
		TaskFunc: func() error {
			if !running.CompareAndSwap(false, true) {
				return nil
			}
			defer running.Store(false)
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := reminders.Dispatch(ctx, time.Now())
			if n > 0 {
				logger.Info("Dispatched event reminders", zap.Int("events", n))
			}
			return err
		},
		ErrFunc: func(err error) {
			logger.Error("Reminder dispatch failed", zap.Error(err))
		},
	})
	return err
}
