// Package notifier turns queued notification messages into emails.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/models"
	"compartilar-backend-go/pkg/mailer"
	"compartilar-backend-go/pkg/messagequeue"
)

// Notifier emails one notification per queue message.
type Notifier struct {
	sender    mailer.Sender
	clientURL string
	logger    *zap.Logger
}

func New(sender mailer.Sender, clientURL string, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, clientURL: strings.TrimRight(clientURL, "/"), logger: logger}
}

// Handle decodes a models.NotificationMessage and sends it. Malformed messages
// and messages without a recipient are permanent failures; SMTP errors are retried.
func (n *Notifier) Handle(_ context.Context, body []byte) error {
	var msg models.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return messagequeue.Permanent(fmt.Errorf("decode notification message: %w", err))
	}
	if msg.Email == "" {
		return messagequeue.Permanent(errors.New("notification message has no recipient email"))
	}
	if msg.Title == "" {
		return messagequeue.Permanent(errors.New("notification message has no title"))
	}

	if err := n.sender.Send(mailer.Message{
		To:      msg.Email,
		Subject: "CompartiLar: " + msg.Title,
		Body:    n.render(msg),
	}); err != nil {
		return err
	}
	n.logger.Info("Notification email sent",
		zap.String("notification_id", msg.NotificationID),
		zap.String("user_id", msg.UserID),
		zap.String("type", msg.Type),
	)
	return nil
}

func (n *Notifier) render(msg models.NotificationMessage) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	b.WriteString("\r\n\r\n")
	if msg.Body != "" {
		b.WriteString(msg.Body)
		b.WriteString("\r\n\r\n")
	}
	if n.clientURL != "" {
		fmt.Fprintf(&b, "Open CompartiLar: %s/notifications\r\n", n.clientURL)
	}
	return b.String()
}
