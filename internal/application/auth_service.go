package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	repo "github.com/oksasatya/go-account-service/internal/domain/repository"
)

// AuthService turns an (email, password) pair into a user. It is the only
// place a plain text password is compared.
type AuthService struct {
	Repo   repo.UserRepository
	Hasher PasswordHasher
	Logger *logrus.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(repo repo.UserRepository, hasher PasswordHasher, logger *logrus.Logger) *AuthService {
	return &AuthService{Repo: repo, Hasher: hasher, Logger: logger}
}

// Authenticate returns ErrInvalidCredentials for both an unknown email and a
// wrong password. Store failures and unreadable hashes are returned as-is.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Repo.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		// spend the same hashing time as a real comparison
		s.burnVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.Hasher.Verify(password, u.Password)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("stored password hash is unusable")
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("not-a-real-password")
	})
	if s.dummyHash != "" {
		_, _ = s.Hasher.Verify(password, s.dummyHash)
	}
}
