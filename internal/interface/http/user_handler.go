package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/pkg/response"
)

// UserHandler serves the authenticated account endpoints and the user listing.
type UserHandler struct {
	Svc    *application.AccountService
	Logger *logrus.Logger
}

func NewUserHandler(svc *application.AccountService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type updateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,displayname"`
	Age      *int    `json:"age" binding:"omitempty,age"`
	Disabled *bool   `json:"disabled"`
}

type passwordResetRequest struct {
	OldPassword string `form:"old_password" json:"old_password" binding:"required,password"`
	NewPassword string `form:"new_password" json:"new_password" binding:"required,password"`
}

type searchQuery struct {
	Q    string `form:"q" binding:"required"`
	Size int    `form:"size" binding:"omitempty,gte=1,lte=50"`
}

func (h *UserHandler) Me(c *gin.Context) {
	au, ok := activeUser(c, h.Logger)
	if !ok {
		return
	}
	response.OK(c, http.StatusOK, h.Svc.GetCurrentUser(au), "current user")
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.Svc.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, users, "users")
}

func (h *UserHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeValidationError(c, err)
		return
	}
	users, err := h.Svc.SearchUsers(c.Request.Context(), q.Q, q.Size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, users, "search results")
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	au, ok := activeUser(c, h.Logger)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	u, err := h.Svc.UpdateProfile(c.Request.Context(), au, entity.UserUpdate{
		Name:     req.Name,
		Age:      req.Age,
		Disabled: req.Disabled,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, u, "profile updated")
}

// PasswordReset reads old_password and new_password from the query string and
// falls back to a JSON body when neither is present there.
func (h *UserHandler) PasswordReset(c *gin.Context) {
	au, ok := activeUser(c, h.Logger)
	if !ok {
		return
	}
	var (
		req passwordResetRequest
		err error
	)
	if c.Query("old_password") == "" && c.Query("new_password") == "" && c.Request.ContentLength != 0 {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBindQuery(&req)
	}
	if err != nil {
		writeValidationError(c, err)
		return
	}

	u, err := h.Svc.ResetPassword(c.Request.Context(), au, req.OldPassword, req.NewPassword)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, u, "password updated")
}
