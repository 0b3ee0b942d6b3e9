package application

import (
	"context"
	"time"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// PasswordHasher hashes and verifies credentials. Verify returns (false, nil)
// on mismatch and an error only for an unusable hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

// TokenCodec signs and validates bearer tokens.
type TokenCodec interface {
	IssueWithTTL(subject string, ttl time.Duration) (string, time.Time, error)
	Validate(token string) (*helpers.Claims, error)
}

// UserIndexer keeps a searchable copy of public user views.
type UserIndexer interface {
	Index(ctx context.Context, u entity.PublicUser) error
	Search(ctx context.Context, q string, size int) ([]entity.PublicUser, error)
}

// Notification kinds published after account changes.
const (
	NotifyWelcome         = "welcome"
	NotifyProfileUpdated  = "profile_updated"
	NotifyPasswordChanged = "password_changed"
)

// Notification is an account event addressed to the user.
type Notification struct {
	Kind    string
	To      string
	Name    string
	Changes map[string]string
}

// Notifier delivers account notifications asynchronously.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
