package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/metrics"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/response"
)

// CurrentUserKey is the gin context key holding the application.ActiveUser.
const CurrentUserKey = "currentUser"

// ActiveUserResolver is satisfied by *application.SessionResolver.
type ActiveUserResolver interface {
	CurrentActiveUser(ctx context.Context, token string) (application.ActiveUser, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// Any other scheme yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth resolves the bearer token into the current active user and stores it
// under CurrentUserKey.
func Auth(resolver ActiveUserResolver, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		au, err := resolver.CurrentActiveUser(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(CurrentUserKey, au)
			c.Next()
		case errors.Is(err, application.ErrUnauthenticated):
			metrics.TokensRejected.Add(1)
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, http.StatusUnauthorized, "Could not validate credentials", nil)
		case errors.Is(err, application.ErrInactiveAccount):
			response.Abort(c, http.StatusBadRequest, "Inactive user", nil)
		default:
			helpers.LogError(logger, "resolve current user failed", err, logrus.Fields{"request_id": c.GetString(RequestIDKey)})
			response.Abort(c, http.StatusInternalServerError, "internal server error", nil)
		}
	}
}

// CurrentUser returns the user stored by Auth.
func CurrentUser(c *gin.Context) (application.ActiveUser, bool) {
	v, ok := c.Get(CurrentUserKey)
	if !ok {
		return application.ActiveUser{}, false
	}
	au, ok := v.(application.ActiveUser)
	return au, ok
}
