package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-account-service/internal/interface/middleware"
	"github.com/oksasatya/go-account-service/internal/metrics"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/validation"
)

type envelope struct {
	Status    int             `json:"status"`
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     json.RawMessage `json:"error"`
}

type server struct {
	engine *gin.Engine
	repo   *memory.UserRepository
	jwt    *helpers.JWTManager
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	logger := helpers.NewDiscardLogger()
	repo := memory.NewUserRepository()
	hasher := helpers.NewBcryptHasher(bcrypt.MinCost)
	jwtm, err := helpers.NewJWTManager(helpers.TokenConfig{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	auth := application.NewAuthService(repo, hasher, logger)
	accounts := application.NewAccountService(repo, hasher, auth, jwtm, jwtm.LoginTTL(), nil, nil, logger)
	resolver := application.NewSessionResolver(jwtm, repo, logger)

	ah := NewAuthHandler(accounts, logger)
	uh := NewUserHandler(accounts, logger)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	api := r.Group("/login")
	api.POST("/register", ah.Register)
	api.POST("/token", ah.Token)
	api.GET("/login/users/", uh.List)
	protected := api.Group("/login", middleware.Auth(resolver, logger))
	protected.GET("/me/", uh.Me)
	protected.GET("/users/search", uh.Search)
	protected.PATCH("/userupdate/", uh.UpdateProfile)
	protected.PATCH("/passwordreset/", uh.PasswordReset)

	return &server{engine: r, repo: repo, jwt: jwtm}
}

func (s *server) do(t *testing.T, method, target, token string, body string, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) register(t *testing.T, email, name string, age int, password string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(map[string]any{"email": email, "name": name, "age": age, "password": password})
	require.NoError(t, err)
	return s.do(t, http.MethodPost, "/login/register", "", string(b), "application/json")
}

func (s *server) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	return s.do(t, http.MethodPost, "/login/token", "", form.Encode(), "application/x-www-form-urlencoded")
}

func (s *server) token(t *testing.T, email, password string) string {
	t.Helper()
	w := s.login(t, email, password)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok application.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	return tok.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) entity.PublicUser {
	t.Helper()
	var u entity.PublicUser
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &u))
	return u
}

func TestRegisterHandler(t *testing.T) {
	s := newServer(t)
	before := metrics.Registrations.Value()

	w := s.register(t, "a@x.com", "Ann", 30, "pw1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.NotContains(t, string(env.Data), "password")

	u := decodeUser(t, w)
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, "Ann", u.Name)
	assert.False(t, u.Disabled)
	assert.Equal(t, before+1, metrics.Registrations.Value())

	w = s.register(t, "a@x.com", "Imposter", 40, "pw2")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", decode(t, w).Message)
}

func TestRegisterHandler_Validation(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "bad email", body: `{"email":"nope","name":"Ann","password":"pw1"}`, field: "email"},
		{name: "missing password", body: `{"email":"a@x.com","name":"Ann"}`, field: "password"},
		{name: "missing name", body: `{"email":"a@x.com","password":"pw1"}`, field: "name"},
		{name: "negative age", body: `{"email":"a@x.com","name":"Ann","age":-1,"password":"pw1"}`, field: "age"},
		{name: "malformed json", body: `{"email":`, field: "payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/login/register", "", tt.body, "application/json")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var details map[string]string
			require.NoError(t, json.Unmarshal(decode(t, w).Error, &details))
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestTokenHandler(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")

	w := s.login(t, "a@x.com", "pw1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "bearer", raw["token_type"])
	assert.EqualValues(t, 3600, raw["expires_in"])
	assert.NotEmpty(t, raw["access_token"])
	assert.NotContains(t, raw, "success")

	claims, err := s.jwt.Validate(raw["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenHandler_Rejects(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	failedBefore := metrics.LoginsFailed.Value()

	for _, creds := range [][2]string{{"a@x.com", "wrong"}, {"nobody@x.com", "pw1"}} {
		w := s.login(t, creds[0], creds[1])
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "Incorrect username or password", decode(t, w).Message)
	}
	assert.Equal(t, failedBefore+2, metrics.LoginsFailed.Value())

	w := s.do(t, http.MethodPost, "/login/token", "", "username=a@x.com", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeHandler(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	tok := s.token(t, "a@x.com", "pw1")

	w := s.do(t, http.MethodGet, "/login/login/me/", tok, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decodeUser(t, w).Email)
}

func TestProtectedRoutes_RejectBadTokens(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	tok := s.token(t, "a@x.com", "pw1")
	expired, _, err := s.jwt.IssueWithTTL("a@x.com", 0)
	require.NoError(t, err)
	ghost, _, err := s.jwt.Issue("ghost@x.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Basic " + tok},
		{name: "garbage", header: "Bearer not-a-token"},
		{name: "tampered", header: "Bearer " + tok[:len(tok)-2] + "xx"},
		{name: "expired", header: "Bearer " + expired},
		{name: "unknown subject", header: "Bearer " + ghost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := metrics.TokensRejected.Value()
			req := httptest.NewRequest(http.MethodGet, "/login/login/me/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "Could not validate credentials", decode(t, w).Message)
			assert.Equal(t, before+1, metrics.TokensRejected.Value())
		})
	}
}

func TestUpdateProfileHandler(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	tok := s.token(t, "a@x.com", "pw1")

	w := s.do(t, http.MethodPatch, "/login/login/userupdate/", tok, `{"name":"New"}`, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	u := decodeUser(t, w)
	assert.Equal(t, "New", u.Name)
	assert.Equal(t, "a@x.com", u.Email)
	require.NotNil(t, u.Age)
	assert.Equal(t, 30, *u.Age)
	assert.False(t, u.Disabled)

	// email is not part of the update input and stays put
	w = s.do(t, http.MethodPatch, "/login/login/userupdate/", tok, `{"email":"b@x.com"}`, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decodeUser(t, w).Email)

	w = s.do(t, http.MethodPatch, "/login/login/userupdate/", tok, `{"age":500}`, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisabledUserIsInactive(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	tok := s.token(t, "a@x.com", "pw1")

	w := s.do(t, http.MethodPatch, "/login/login/userupdate/", tok, `{"disabled":true}`, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeUser(t, w).Disabled)

	w = s.do(t, http.MethodGet, "/login/login/me/", tok, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Inactive user", decode(t, w).Message)

	// disabled accounts can still obtain tokens; the gate is on use
	w = s.login(t, "a@x.com", "pw1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPasswordResetHandler(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	tok := s.token(t, "a@x.com", "pw1")

	w := s.do(t, http.MethodPatch, "/login/login/passwordreset/?old_password=wrong&new_password=pw2", tok, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Old password is incorrect", decode(t, w).Message)

	w = s.do(t, http.MethodPatch, "/login/login/passwordreset/?old_password=pw1&new_password=pw2", tok, "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "a@x.com", decodeUser(t, w).Email)

	assert.Equal(t, http.StatusUnauthorized, s.login(t, "a@x.com", "pw1").Code)
	tok = s.token(t, "a@x.com", "pw2")

	w = s.do(t, http.MethodPatch, "/login/login/passwordreset/", tok, `{"old_password":"pw2","new_password":"pw3"}`, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusOK, s.login(t, "a@x.com", "pw3").Code)

	w = s.do(t, http.MethodPatch, "/login/login/passwordreset/?old_password=pw3", tok, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUsersHandler(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	s.register(t, "b@x.com", "Bob", 40, "pw2")

	w := s.do(t, http.MethodGet, "/login/login/users/", "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var users []entity.PublicUser
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &users))
	require.Len(t, users, 2)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.Equal(t, "b@x.com", users[1].Email)
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestSearchHandler(t *testing.T) {
	s := newServer(t)
	s.register(t, "a@x.com", "Ann", 30, "pw1")
	tok := s.token(t, "a@x.com", "pw1")

	w := s.do(t, http.MethodGet, "/login/login/users/search?q=ann", tok, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/login/login/users/search", tok, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/login/login/users/search?q=ann&size=500", tok, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteError_Internal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, nil, context.DeadlineExceeded)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "deadline")
}

func TestPasswordLengthIsValidation(t *testing.T) {
	s := newServer(t)
	ascii := strings.Repeat("a", helpers.MaxPasswordBytes+1)
	// Fits the character limit but not bcrypt's byte limit.
	wide := strings.Repeat("é", 37)

	for name, pw := range map[string]string{"ascii": ascii, "multibyte": wide} {
		t.Run("register "+name, func(t *testing.T) {
			w := s.register(t, name+"@x.com", "Ann", 30, pw)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			env := decode(t, w)
			assert.Equal(t, "invalid payload", env.Message)
			var details map[string]string
			require.NoError(t, json.Unmarshal(env.Error, &details))
			assert.Contains(t, details, "password")
		})
	}

	s.register(t, "a@x.com", "Ann", 30, "pw1")
	tok := s.token(t, "a@x.com", "pw1")

	w := s.do(t, http.MethodPatch, "/login/login/passwordreset/?old_password=pw1&new_password="+ascii, tok, "", "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var details map[string]string
	require.NoError(t, json.Unmarshal(decode(t, w).Error, &details))
	assert.Contains(t, details, "new_password")

	b, err := json.Marshal(map[string]string{"old_password": "pw1", "new_password": wide})
	require.NoError(t, err)
	w = s.do(t, http.MethodPatch, "/login/login/passwordreset/", tok, string(b), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "invalid payload", decode(t, w).Message)

	assert.Equal(t, http.StatusOK, s.login(t, "a@x.com", "pw1").Code)
}
