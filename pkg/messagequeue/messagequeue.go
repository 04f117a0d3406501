package messagequeue

import "context"

// Handler processes one message body. A non-nil error requeues the message
// unless it is a permanent failure.
type Handler func(ctx context.Context, body []byte) error

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(queueName string, body []byte) error
	// Consume blocks until ctx is done or the delivery channel closes.
	Consume(ctx context.Context, queueName string, handler Handler) error
	Close() error
}

// PermanentError marks a message that must not be redelivered.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer drops the message instead of requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
