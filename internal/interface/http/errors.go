package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/interface/middleware"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/response"
	"github.com/oksasatya/go-account-service/pkg/validation"
)

// writeError maps application errors to status codes. Anything unrecognised
// is logged and reported as a bare 500.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case errors.Is(err, application.ErrDuplicateEmail):
		response.Abort(c, http.StatusBadRequest, "Email already registered", nil)
	case errors.Is(err, application.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		response.Abort(c, http.StatusUnauthorized, "Incorrect username or password", nil)
	case errors.Is(err, application.ErrUnauthenticated):
		c.Header("WWW-Authenticate", "Bearer")
		response.Abort(c, http.StatusUnauthorized, "Could not validate credentials", nil)
	case errors.Is(err, application.ErrInactiveAccount):
		response.Abort(c, http.StatusBadRequest, "Inactive user", nil)
	case errors.Is(err, application.ErrIncorrectOldPassword):
		response.Abort(c, http.StatusBadRequest, "Old password is incorrect", nil)
	case errors.Is(err, application.ErrPasswordTooLong):
		response.Abort(c, http.StatusBadRequest, "invalid payload", map[string]string{"password": "must be at most 72 bytes"})
	default:
		helpers.LogError(logger, "request failed", err, logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(middleware.RequestIDKey),
		})
		response.Abort(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func writeValidationError(c *gin.Context, err error) {
	response.Abort(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
}

// activeUser fetches the user stored by middleware.Auth. Its absence means the
// route was registered without the middleware.
func activeUser(c *gin.Context, logger *logrus.Logger) (application.ActiveUser, bool) {
	au, ok := middleware.CurrentUser(c)
	if !ok {
		writeError(c, logger, application.ErrUnauthenticated)
	}
	return au, ok
}
