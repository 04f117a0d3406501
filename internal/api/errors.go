package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"compartilar-backend-go/internal/core"
)

// respondError maps service error kinds to status codes. Unrecognized errors
// are logged and answered with a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var status int
	switch {
	case errors.Is(err, core.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		logger.Error("Unhandled service error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
		return
	}

	msg := err.Error()
	var ce *core.Error
	if errors.As(err, &ce) {
		msg = ce.Error()
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// bindErrorMessage renders a binding failure as a single readable sentence.
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		v := verrs[0]
		switch v.ActualTag() {
		case "required":
			return fmt.Sprintf("%s is required", v.Field())
		case "required_without":
			return fmt.Sprintf("%s is required when %s is not provided", v.Field(), lowerFirst(v.Param()))
		case "oneof":
			return fmt.Sprintf("%s must be one of values: (%s), value received: %v", v.Field(), v.Param(), v.Value())
		case "min":
			return fmt.Sprintf("%s must be at least %s", v.Field(), v.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s", v.Field(), v.Param())
		case "gtefield":
			return fmt.Sprintf("%s must not be before %s", v.Field(), lowerFirst(v.Param()))
		case "username":
			return fmt.Sprintf("%s must be 3-30 characters of letters, digits, dots or underscores", v.Field())
		case "birthdate":
			return fmt.Sprintf("%s must be a YYYY-MM-DD date that is not in the future", v.Field())
		default:
			msg := fmt.Sprintf("Validation failed on field { %s }, Condition: %s", v.Field(), v.ActualTag())
			if v.Param() != "" {
				msg += fmt.Sprintf("{ %s }", v.Param())
			}
			return msg
		}
	}
	if errors.Is(err, io.EOF) {
		return "No request body"
	}
	return "Invalid request received"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
