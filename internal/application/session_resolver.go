package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	repo "github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// ActiveUser is an authenticated user whose account is enabled. The only way
// to obtain one is SessionResolver.RequireActive, so protected operations can
// take it as proof that the request passed the gate.
type ActiveUser struct {
	user *entity.User
}

// User returns a copy of the underlying record.
func (a ActiveUser) User() *entity.User { return a.user.Clone() }

func (a ActiveUser) Email() string {
	if a.user == nil {
		return ""
	}
	return a.user.Email
}

// SessionResolver maps a bearer token to the active user it was issued for.
type SessionResolver struct {
	Tokens TokenCodec
	Repo   repo.UserRepository
	Logger *logrus.Logger
}

func NewSessionResolver(tokens TokenCodec, repo repo.UserRepository, logger *logrus.Logger) *SessionResolver {
	return &SessionResolver{Tokens: tokens, Repo: repo, Logger: logger}
}

// Resolve fails with ErrUnauthenticated when the token is missing, invalid
// or expired, or names a user that no longer exists. The cause is logged but
// never returned.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := r.Tokens.Validate(token)
	if err != nil {
		if r.Logger != nil {
			var te *helpers.TokenError
			reason := helpers.ReasonCredentials
			if errors.As(err, &te) {
				reason = te.Reason
			}
			r.Logger.WithField("reason", reason).Debug("bearer token rejected")
		}
		return nil, ErrUnauthenticated
	}

	u, err := r.Repo.FindByEmail(ctx, claims.Subject)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// RequireActive rejects disabled accounts.
func (r *SessionResolver) RequireActive(u *entity.User) (ActiveUser, error) {
	if u == nil {
		return ActiveUser{}, ErrUnauthenticated
	}
	if u.Disabled {
		return ActiveUser{}, ErrInactiveAccount
	}
	return ActiveUser{user: u}, nil
}

// CurrentActiveUser is Resolve followed by RequireActive.
func (r *SessionResolver) CurrentActiveUser(ctx context.Context, token string) (ActiveUser, error) {
	u, err := r.Resolve(ctx, token)
	if err != nil {
		return ActiveUser{}, err
	}
	return r.RequireActive(u)
}
