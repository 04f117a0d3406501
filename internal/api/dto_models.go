package api

import "compartilar-backend-go/internal/models"

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// InitializeUserResponse reports whether the account was created by this call.
type InitializeUserResponse struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

type UsernameAvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

type UsernameAvailabilityQuery struct {
	Username string `form:"username" binding:"required,username"`
}

type PortalSessionResponse struct {
	URL string `json:"url"`
}
