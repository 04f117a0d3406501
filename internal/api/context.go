package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"compartilar-backend-go/internal/middleware"
	"compartilar-backend-go/internal/models"
)

// currentUserID returns the uid set by the auth middleware, answering 401 when it is missing.
func currentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(middleware.ContextUserID)
	if uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: User ID not found in context"})
		return "", false
	}
	return uid, true
}

func tokenClaims(c *gin.Context, uid string) models.TokenClaims {
	return models.TokenClaims{
		UID:         uid,
		Email:       c.GetString(middleware.ContextUserEmail),
		DisplayName: c.GetString(middleware.ContextUserDisplayName),
		PhotoURL:    c.GetString(middleware.ContextUserPhotoURL),
	}
}
