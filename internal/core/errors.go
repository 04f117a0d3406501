package core

import (
	"errors"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/approval"
	"compartilar-backend-go/internal/db"
)

// Error kinds. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("too many requests")
)

// Error carries a client-facing message together with its kind and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(msg string) error   { return &Error{Kind: ErrValidation, Message: msg} }
func Forbidden(msg string) error    { return &Error{Kind: ErrForbidden, Message: msg} }
func NotFound(msg string) error     { return &Error{Kind: ErrNotFound, Message: msg} }
func Unauthorized(msg string) error { return &Error{Kind: ErrUnauthorized, Message: msg} }

// classify turns repository, access and approval errors into client-facing errors.
// notFoundMsg is used when the underlying document is missing. Errors it does not
// recognize are returned unchanged.
func classify(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	var denied *access.DeniedError
	switch {
	case errors.As(err, &denied):
		return &Error{Kind: ErrForbidden, Message: denied.Error(), Err: err}
	case errors.Is(err, db.ErrNotFound):
		return &Error{Kind: ErrNotFound, Message: notFoundMsg, Err: err}
	case errors.Is(err, access.ErrOwnerImmutable):
		return &Error{Kind: ErrValidation, Message: access.ErrOwnerImmutable.Error(), Err: err}
	case errors.Is(err, approval.ErrSelfReview), errors.Is(err, approval.ErrNotProposer):
		return &Error{Kind: ErrForbidden, Message: rootMessage(err), Err: err}
	case errors.Is(err, approval.ErrLocked), errors.Is(err, approval.ErrNotPending):
		return &Error{Kind: ErrValidation, Message: rootMessage(err), Err: err}
	case errors.Is(err, approval.ErrNoActor):
		return &Error{Kind: ErrUnauthorized, Message: "authentication required", Err: err}
	}
	return err
}

func rootMessage(err error) string {
	for _, e := range []error{approval.ErrSelfReview, approval.ErrNotProposer, approval.ErrLocked, approval.ErrNotPending} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return err.Error()
}
