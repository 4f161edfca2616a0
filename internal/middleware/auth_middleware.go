package middleware

import (
	"context"
	"errors"
	"strings"

	apierrors "github.com/Baaaki/taskvault/internal/errors"
	"github.com/Baaaki/taskvault/internal/models"
	"github.com/Baaaki/taskvault/internal/service"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const currentUserKey = "current_user"

// TokenResolver turns a raw bearer token into the authenticated user.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware rejects the request unless it carries a bearer token that
// resolves to an active user.
func AuthMiddleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract token from "Bearer <token>"; anything else counts as missing
		token := BearerToken(c.GetHeader("Authorization"))

		// 2. Resolve token to a user
		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotAuthenticated):
				apierrors.NotAuthenticated(c)
			case errors.Is(err, service.ErrCouldNotValidate):
				apierrors.Unauthorized(c, "Could not validate credentials")
			default:
				logger.Log.Error("Failed to resolve bearer token", zap.Error(err))
				apierrors.InternalError(c, "")
			}
			return
		}

		// 3. Handlers read the user through CurrentUser
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
// The scheme is case-insensitive.
func BearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
