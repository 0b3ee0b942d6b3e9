package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/metrics"
	"github.com/oksasatya/go-account-service/pkg/response"
)

// AuthHandler serves registration and the OAuth2 password-grant token endpoint.
type AuthHandler struct {
	Svc    *application.AccountService
	Logger *logrus.Logger
}

func NewAuthHandler(svc *application.AccountService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,displayname"`
	Age      *int   `json:"age" binding:"omitempty,age"`
	Password string `json:"password" binding:"required,password"`
}

type tokenForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Age:      req.Age,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	metrics.Registrations.Add(1)
	response.OK(c, http.StatusOK, u, "user registered")
}

// Token exchanges form credentials for a bearer token. The body is the plain
// OAuth2 token response so standard clients can read it.
func (h *AuthHandler) Token(c *gin.Context) {
	var form tokenForm
	if err := c.ShouldBind(&form); err != nil {
		writeValidationError(c, err)
		return
	}

	tok, err := h.Svc.IssueLoginToken(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, application.ErrInvalidCredentials) {
			metrics.LoginsFailed.Add(1)
		}
		writeError(c, h.Logger, err)
		return
	}
	metrics.LoginsSucceeded.Add(1)
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, tok)
}
