package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

func userKey(email string) string {
	return "user:email:" + email
}

// versionKey is bumped on every write so that in-flight fills of userKey
// abort instead of caching what they read before the write.
func versionKey(email string) string {
	return "user:email:" + email + ":v"
}

type cachedUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password_hash"`
	Name      string    `json:"name"`
	Age       *int      `json:"age,omitempty"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCached(u *entity.User) cachedUser {
	return cachedUser{ID: u.ID, Email: u.Email, Password: u.Password, Name: u.Name, Age: u.Age,
		Disabled: u.Disabled, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func (c cachedUser) toEntity() *entity.User {
	return &entity.User{ID: c.ID, Email: c.Email, Password: c.Password, Name: c.Name, Age: c.Age,
		Disabled: c.Disabled, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// UserRepository wraps another repository with a Redis read-through cache on
// FindByEmail. Writes go to the inner store first and then invalidate the
// cached entry. Redis failures are logged and never fail the call.
//
// Cached entries include the password hash because authentication reads
// through FindByEmail.
type UserRepository struct {
	inner  repository.UserRepository
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
}

func NewUserRepository(inner repository.UserRepository, rdb redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *UserRepository {
	return &UserRepository{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var cu cachedUser
	found, err := helpers.RedisGetJSON(ctx, r.rdb, userKey(email), &cu)
	if err != nil {
		helpers.LogWarn(r.logger, "user cache read failed", err, logrus.Fields{"key": userKey(email)})
	} else if found {
		return cu.toEntity(), nil
	}

	var (
		u       *entity.User
		loadErr error
	)
	err = helpers.RedisFillJSON(ctx, r.rdb, versionKey(email), userKey(email), r.ttl, func() (any, error) {
		u, loadErr = r.inner.FindByEmail(ctx, email)
		if loadErr != nil {
			return nil, loadErr
		}
		return toCached(u), nil
	})
	switch {
	case loadErr != nil:
		return nil, loadErr
	case u == nil:
		// WATCH never ran, so neither did the load.
		helpers.LogWarn(r.logger, "user cache fill failed", err, logrus.Fields{"key": userKey(email)})
		return r.inner.FindByEmail(ctx, email)
	case errors.Is(err, redis.TxFailedErr):
		if r.logger != nil {
			r.logger.WithField("key", userKey(email)).Debug("user cache fill raced a write; not cached")
		}
	case err != nil:
		helpers.LogWarn(r.logger, "user cache write failed", err, logrus.Fields{"key": userKey(email)})
	}
	return u, nil
}

func (r *UserRepository) Insert(ctx context.Context, u *entity.User) error {
	if err := r.inner.Insert(ctx, u); err != nil {
		return err
	}
	r.invalidate(ctx, u.Email)
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	if err := r.inner.Update(ctx, u); err != nil {
		return err
	}
	r.invalidate(ctx, u.Email)
	return nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]*entity.User, error) {
	return r.inner.ListAll(ctx)
}

func (r *UserRepository) invalidate(ctx context.Context, email string) {
	if err := helpers.RedisInvalidate(ctx, r.rdb, versionKey(email), userKey(email), r.ttl); err != nil {
		helpers.LogWarn(r.logger, "user cache invalidate failed", err, logrus.Fields{"key": userKey(email)})
	}
}

var _ repository.UserRepository = (*UserRepository)(nil)
