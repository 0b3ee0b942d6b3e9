package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	handlers "github.com/oksasatya/go-account-service/internal/interface/http"
	"github.com/oksasatya/go-account-service/internal/interface/middleware"
)

// AccountModule wires the account endpoints.
// Public: POST /register, POST /token, GET /login/users/
// Protected (bearer): GET /login/me/, GET /login/users/search,
// PATCH /login/userupdate/, PATCH /login/passwordreset/
type AccountModule struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Resolver middleware.ActiveUserResolver
	Logger   *logrus.Logger
}

func NewAccountModule(auth *handlers.AuthHandler, users *handlers.UserHandler, resolver middleware.ActiveUserResolver, logger *logrus.Logger) *AccountModule {
	return &AccountModule{Auth: auth, Users: users, Resolver: resolver, Logger: logger}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	rg.POST("/register", m.Auth.Register)
	rg.POST("/token", m.Auth.Token)
	rg.GET("/login/users/", m.Users.List)

	auth := rg.Group("/login")
	auth.Use(middleware.Auth(m.Resolver, m.Logger))
	{
		auth.GET("/me/", m.Users.Me)
		auth.GET("/users/search", m.Users.Search)
		auth.PATCH("/userupdate/", m.Users.UpdateProfile)
		auth.PATCH("/passwordreset/", m.Users.PasswordReset)
	}
}
