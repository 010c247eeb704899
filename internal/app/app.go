// Package app wires configuration into the long-lived collaborators shared by
// the API server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/cache"
	"github.com/geocoder89/storefront/internal/catalog"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/db"
	domain "github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/identity"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/redisclient"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/repo/mongorepo"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/geocoder89/storefront/internal/repo/redisrepo"
	"github.com/geocoder89/storefront/internal/roleguard"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	Config   config.Config
	Log      *slog.Logger
	Prom     *observability.Prom
	Registry *prometheus.Registry

	Pool  *pgxpool.Pool
	Redis *redis.Client
	Mongo *mongo.Client

	Users    *postgres.UsersRepo
	Identity *identity.Local
	Guard    *roleguard.Guard
	Store    domain.Store
	Catalog  *catalog.Service
	Views    *cache.Cache[catalog.View]
}

// New connects to PostgreSQL (always; it holds the user directory) and to
// whatever the catalog backend needs. Close releases everything New opened.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Prom = observability.NewProm(a.Registry)

	pool, err := db.NewPool(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.Pool = pool

	if err := postgres.Migrate(ctx, pool); err != nil {
		a.Close(ctx)
		return nil, err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Store = store

	a.Users = postgres.NewUsersRepo(pool, a.Prom)
	identities := postgres.NewIdentityRepo(pool, a.Prom)
	a.Identity = identity.NewLocal(identities, identities, auth.NewManager(cfg.SessionSecret, cfg.SessionTTL))

	provider := identity.NewBreaker(a.Identity, identity.BreakerConfig{
		Timeout:          cfg.GuardTimeout,
		FailureThreshold: cfg.ProviderFailureThreshold,
		Cooldown:         cfg.ProviderCooldown,
	})

	a.Guard = roleguard.New(provider, a.Users,
		roleguard.WithTimeout(cfg.GuardTimeout),
		roleguard.WithLogger(log),
		roleguard.WithObserver(a.Prom),
	)

	a.Views = cache.New[catalog.View](0)
	a.Catalog = catalog.NewService(store,
		catalog.WithLogger(log),
		catalog.WithObserver(a.Prom),
		catalog.WithSimulatedDelay(cfg.CatalogSimulatedDelay),
		catalog.WithChangeHook(func(string) { a.Views.Clear() }),
	)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (domain.Store, error) {
	switch a.Config.CatalogBackend {
	case config.BackendMemory:
		return memory.NewCatalogStore(), nil

	case config.BackendPostgres:
		return postgres.NewCatalogStore(a.Pool, a.Prom), nil

	case config.BackendRedis:
		client, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = client
		return redisrepo.NewCatalogStore(client, ""), nil

	case config.BackendMongo:
		client, database, err := mongorepo.Connect(ctx, mongorepo.Config{
			URI:      a.Config.Mongo.URI,
			Database: a.Config.Mongo.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.Mongo = client
		return mongorepo.NewCatalogStore(database), nil
	}

	return nil, fmt.Errorf("unknown catalog backend %q", a.Config.CatalogBackend)
}

// Checks are the readiness probes for every backend New connected to.
func (a *App) Checks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}

	if a.Pool != nil {
		checks["postgres"] = a.Pool.Ping
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	if a.Mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return a.Mongo.Ping(ctx, nil) }
	}
	return checks
}

func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.Mongo != nil {
		errs = append(errs, a.Mongo.Disconnect(ctx))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}
