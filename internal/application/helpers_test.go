package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	repo     *memory.UserRepository
	hasher   helpers.BcryptHasher
	jwt      *helpers.JWTManager
	auth     *AuthService
	resolver *SessionResolver
	accounts *AccountService
	indexer  *fakeIndexer
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewUserRepository()
	hasher := helpers.NewBcryptHasher(bcrypt.MinCost)
	jwtm, err := helpers.NewJWTManager(helpers.TokenConfig{Secret: []byte(testSecret)})
	require.NoError(t, err)
	logger := helpers.NewDiscardLogger()

	auth := NewAuthService(repo, hasher, logger)
	idx := &fakeIndexer{}
	nt := &fakeNotifier{}
	return &fixture{
		repo:     repo,
		hasher:   hasher,
		jwt:      jwtm,
		auth:     auth,
		resolver: NewSessionResolver(jwtm, repo, logger),
		accounts: NewAccountService(repo, hasher, auth, jwtm, time.Hour, idx, nt, logger),
		indexer:  idx,
		notifier: nt,
	}
}

func (f *fixture) register(t *testing.T, email, name string, age int, password string) entity.PublicUser {
	t.Helper()
	u, err := f.accounts.Register(context.Background(), RegisterInput{Email: email, Name: name, Age: &age, Password: password})
	require.NoError(t, err)
	return u
}

func (f *fixture) active(t *testing.T, email string) ActiveUser {
	t.Helper()
	u, err := f.repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	au, err := f.resolver.RequireActive(u)
	require.NoError(t, err)
	return au
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []entity.PublicUser
	err     error
	results []entity.PublicUser
}

func (f *fakeIndexer) Index(_ context.Context, u entity.PublicUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, u)
	return f.err
}

func (f *fakeIndexer) Search(_ context.Context, _ string, size int) ([]entity.PublicUser, error) {
	if len(f.results) > size {
		return f.results[:size], nil
	}
	return f.results, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.Kind)
	}
	return out
}

var errBoom = errors.New("boom")

// failingRepo returns errBoom from every call.
type failingRepo struct{}

func (failingRepo) FindByEmail(context.Context, string) (*entity.User, error) { return nil, errBoom }
func (failingRepo) Insert(context.Context, *entity.User) error                { return errBoom }
func (failingRepo) Update(context.Context, *entity.User) error                { return errBoom }
func (failingRepo) ListAll(context.Context) ([]*entity.User, error)           { return nil, errBoom }
