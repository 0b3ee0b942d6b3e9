package router

import (
	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/container"
	repouser "github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/internal/infrastructure/cache"
	"github.com/oksasatya/go-account-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-account-service/internal/infrastructure/notify"
	pginfra "github.com/oksasatya/go-account-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-account-service/internal/infrastructure/search"
	handlers "github.com/oksasatya/go-account-service/internal/interface/http"
	"github.com/oksasatya/go-account-service/internal/router/modules"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

type AccountModuleDeps struct {
	Repo     repouser.UserRepository
	Accounts *application.AccountService
	Resolver *application.SessionResolver
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
}

// buildUserRepository picks Postgres when a pool is registered, otherwise the
// in-memory store, and puts the Redis cache in front when configured.
func buildUserRepository() repouser.UserRepository {
	cfg := container.GetConfig()

	var repo repouser.UserRepository
	if pool := container.GetPGPool(); pool != nil {
		repo = pginfra.NewUserRepository(pool)
	} else {
		repo = memory.NewUserRepository()
	}
	if rdb := container.GetRedis(); rdb != nil && cfg.UserCacheTTL > 0 {
		repo = cache.NewUserRepository(repo, rdb, cfg.UserCacheTTL, container.GetLogger())
	}
	return repo
}

func buildAccountDeps() AccountModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	jwt := container.GetJWT()

	repo := buildUserRepository()
	hasher := helpers.NewBcryptHasher(cfg.BcryptCost)
	auth := application.NewAuthService(repo, hasher, logger)

	// Interfaces stay untyped nil when the backing client is absent.
	var indexer application.UserIndexer
	if es := container.GetES(); es != nil {
		indexer = search.NewUserIndex(es, cfg.ESUsersIndex)
	}
	var notifier application.Notifier
	if pub := container.GetRabbitPub(); pub != nil {
		notifier = notify.NewQueueNotifier(pub)
	}

	accounts := application.NewAccountService(repo, hasher, auth, jwt, jwt.LoginTTL(), indexer, notifier, logger)
	resolver := application.NewSessionResolver(jwt, repo, logger)

	return AccountModuleDeps{
		Repo:     repo,
		Accounts: accounts,
		Resolver: resolver,
		Auth:     handlers.NewAuthHandler(accounts, logger),
		Users:    handlers.NewUserHandler(accounts, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	deps := buildAccountDeps()
	r.Add(modules.NewAccountModule(deps.Auth, deps.Users, deps.Resolver, container.GetLogger()))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
