package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// unreachableRedis points at a closed port so every command fails quickly.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestUserRepository_FailsOpenWithoutRedis(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewUserRepository()
	r := NewUserRepository(inner, unreachableRedis(t), time.Minute, helpers.NewDiscardLogger())

	u := &entity.User{Email: "a@x.com", Name: "Ann", Password: "hash"}
	require.NoError(t, r.Insert(ctx, u))

	got, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got.Name = "New"
	require.NoError(t, r.Update(ctx, got))

	again, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "New", again.Name)

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUserRepository_PropagatesInnerErrors(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewUserRepository()
	r := NewUserRepository(inner, unreachableRedis(t), time.Minute, helpers.NewDiscardLogger())

	_, err := r.FindByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, r.Insert(ctx, &entity.User{Email: "a@x.com", Password: "h"}))
	err = r.Insert(ctx, &entity.User{Email: "a@x.com", Password: "h"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestCachedUserRoundTrip(t *testing.T) {
	age := 41
	u := &entity.User{ID: 7, Email: "a@x.com", Password: "hash", Name: "Ann", Age: &age, Disabled: true}
	back := toCached(u).toEntity()
	assert.Equal(t, u, back)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestUserRepository_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	inner := memory.NewUserRepository()
	r := NewUserRepository(inner, rdb, time.Minute, helpers.NewDiscardLogger())

	require.NoError(t, r.Insert(ctx, &entity.User{Email: "a@x.com", Name: "Ann", Password: "hash"}))
	_, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, mr.Exists(userKey("a@x.com")))

	// A write that bypasses the cache is not seen until the entry expires.
	u, err := inner.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	u.Name = "Direct"
	require.NoError(t, inner.Update(ctx, u))

	got, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)

	mr.FastForward(2 * time.Minute)
	got, err = r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Direct", got.Name)
}

func TestUserRepository_UpdateInvalidates(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	r := NewUserRepository(memory.NewUserRepository(), rdb, time.Minute, helpers.NewDiscardLogger())

	require.NoError(t, r.Insert(ctx, &entity.User{Email: "a@x.com", Name: "Ann", Password: "hash"}))
	u, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	u.Disabled = true
	require.NoError(t, r.Update(ctx, u))
	assert.False(t, mr.Exists(userKey("a@x.com")))

	got, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, got.Disabled)
}

// updateDuringFind runs onFind once, after the inner read and before the
// cache write.
type updateDuringFind struct {
	repository.UserRepository
	once   sync.Once
	onFind func()
}

func (s *updateDuringFind) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.UserRepository.FindByEmail(ctx, email)
	s.once.Do(s.onFind)
	return u, err
}

func TestUserRepository_FillRacingUpdateIsNotCached(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	inner := memory.NewUserRepository()
	require.NoError(t, inner.Insert(ctx, &entity.User{Email: "a@x.com", Name: "Ann", Password: "old-hash"}))

	hooked := &updateDuringFind{UserRepository: inner}
	r := NewUserRepository(hooked, rdb, time.Minute, helpers.NewDiscardLogger())
	hooked.onFind = func() {
		u, err := inner.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		u.Password = "new-hash"
		u.Disabled = true
		require.NoError(t, r.Update(ctx, u))
	}

	stale, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "old-hash", stale.Password)
	assert.False(t, mr.Exists(userKey("a@x.com")))

	fresh, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", fresh.Password)
	assert.True(t, fresh.Disabled)
}
