package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	repo "github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// TokenTypeBearer is the OAuth2 token_type of issued tokens.
const TokenTypeBearer = "bearer"

// AccountService implements registration, login and self-service profile
// operations on top of AuthService and the token codec.
type AccountService struct {
	Repo     repo.UserRepository
	Hasher   PasswordHasher
	Auth     *AuthService
	Tokens   TokenCodec
	LoginTTL time.Duration
	Indexer  UserIndexer
	Notifier Notifier
	Logger   *logrus.Logger
}

func NewAccountService(repo repo.UserRepository, hasher PasswordHasher, auth *AuthService, tokens TokenCodec, loginTTL time.Duration, indexer UserIndexer, notifier Notifier, logger *logrus.Logger) *AccountService {
	if loginTTL <= 0 {
		loginTTL = helpers.LoginTokenTTL
	}
	return &AccountService{
		Repo:     repo,
		Hasher:   hasher,
		Auth:     auth,
		Tokens:   tokens,
		LoginTTL: loginTTL,
		Indexer:  indexer,
		Notifier: notifier,
		Logger:   logger,
	}
}

type RegisterInput struct {
	Email    string
	Name     string
	Age      *int
	Password string
}

// Token is the OAuth2-style response of the token endpoint.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"-"`
}

// Register creates an enabled account. The lookup is only a fast path; the
// store's unique constraint decides races.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (entity.PublicUser, error) {
	_, err := s.Repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return entity.PublicUser{}, ErrDuplicateEmail
	case !errors.Is(err, repo.ErrNotFound):
		return entity.PublicUser{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return entity.PublicUser{}, err
	}
	u := &entity.User{
		Email:    in.Email,
		Name:     in.Name,
		Age:      in.Age,
		Password: hash,
		Disabled: false,
	}
	if err := s.Repo.Insert(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return entity.PublicUser{}, ErrDuplicateEmail
		}
		return entity.PublicUser{}, fmt.Errorf("insert user: %w", err)
	}

	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("user registered")
	}
	s.afterWrite(ctx, u, Notification{Kind: NotifyWelcome, To: u.Email, Name: u.Name})
	return u.Public(), nil
}

// IssueLoginToken authenticates the credentials and mints a login token.
func (s *AccountService) IssueLoginToken(ctx context.Context, email, password string) (Token, error) {
	u, err := s.Auth.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	tok, exp, err := s.Tokens.IssueWithTTL(u.Email, s.LoginTTL)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return Token{}, err
	}
	return Token{
		AccessToken: tok,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.LoginTTL.Seconds()),
		ExpiresAt:   exp,
	}, nil
}

// GetCurrentUser projects the authenticated user.
func (s *AccountService) GetCurrentUser(au ActiveUser) entity.PublicUser {
	if au.user == nil {
		return entity.PublicUser{}
	}
	return au.user.Public()
}

// ListUsers returns every user. There is no paging or filtering.
func (s *AccountService) ListUsers(ctx context.Context) ([]entity.PublicUser, error) {
	users, err := s.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]entity.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// UpdateProfile applies only the fields present in upd.
func (s *AccountService) UpdateProfile(ctx context.Context, au ActiveUser, upd entity.UserUpdate) (entity.PublicUser, error) {
	u := au.User()
	if u == nil {
		return entity.PublicUser{}, ErrUnauthenticated
	}
	before := u.Public()
	if !upd.Apply(u) {
		return before, nil
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		return entity.PublicUser{}, fmt.Errorf("update user: %w", err)
	}
	s.afterWrite(ctx, u, Notification{
		Kind:    NotifyProfileUpdated,
		To:      u.Email,
		Name:    u.Name,
		Changes: diffProfile(before, u.Public()),
	})
	return u.Public(), nil
}

// ResetPassword replaces the password after checking the current one.
func (s *AccountService) ResetPassword(ctx context.Context, au ActiveUser, oldPassword, newPassword string) (entity.PublicUser, error) {
	u := au.User()
	if u == nil {
		return entity.PublicUser{}, ErrUnauthenticated
	}
	ok, err := s.Hasher.Verify(oldPassword, u.Password)
	if err != nil {
		return entity.PublicUser{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return entity.PublicUser{}, ErrIncorrectOldPassword
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return entity.PublicUser{}, err
	}
	u.Password = hash
	if err := s.Repo.Update(ctx, u); err != nil {
		return entity.PublicUser{}, fmt.Errorf("update user: %w", err)
	}
	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("password changed")
	}
	s.afterWrite(ctx, u, Notification{Kind: NotifyPasswordChanged, To: u.Email, Name: u.Name})
	return u.Public(), nil
}

// SearchUsers queries the search index; without one it returns nothing.
func (s *AccountService) SearchUsers(ctx context.Context, q string, size int) ([]entity.PublicUser, error) {
	if s.Indexer == nil {
		return []entity.PublicUser{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	return s.Indexer.Search(ctx, q, size)
}

// hash maps the hasher's length limit to a caller-facing error.
func (s *AccountService) hash(plain string) (string, error) {
	h, err := s.Hasher.Hash(plain)
	if errors.Is(err, helpers.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	return h, err
}

// afterWrite refreshes the search index and publishes a notification.
// Both are best effort.
func (s *AccountService) afterWrite(ctx context.Context, u *entity.User, n Notification) {
	if s.Indexer != nil {
		if err := s.Indexer.Index(ctx, u.Public()); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("index user failed")
		}
	}
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, n); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "kind": n.Kind}).Warn("publish notification failed")
		}
	}
}

func diffProfile(before, after entity.PublicUser) map[string]string {
	changes := map[string]string{}
	if before.Name != after.Name {
		changes["name"] = after.Name
	}
	if ageString(before.Age) != ageString(after.Age) {
		changes["age"] = ageString(after.Age)
	}
	if before.Disabled != after.Disabled {
		changes["disabled"] = strconv.FormatBool(after.Disabled)
	}
	return changes
}

func ageString(age *int) string {
	if age == nil {
		return ""
	}
	return strconv.Itoa(*age)
}
