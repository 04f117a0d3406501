package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/config"
	"compartilar-backend-go/internal/notifier"
	"compartilar-backend-go/pkg/mailer"
	"compartilar-backend-go/pkg/messagequeue"
)

func main() {
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadNotifierConfig()
	if err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to load notifier configuration", zap.Error(err))
	}

	smtpMailer, err := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailSender,
	})
	if err != nil {
		logger.Fatal("CRITICAL_ERROR: Invalid SMTP configuration", zap.Error(err))
	}

	mq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: cfg.RabbitMQURL, Prefetch: 10}, logger)
	if err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mq.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := notifier.New(smtpMailer, cfg.ClientURL, logger)
	if err := mq.Consume(ctx, cfg.NotificationQueue, n.Handle); err != nil {
		logger.Error("Notification consumer stopped", zap.Error(err))
		return
	}
	logger.Info("Notifier exiting")
}
