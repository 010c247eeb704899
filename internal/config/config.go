package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Env  string `env:"APP_ENV, default=dev"`
	Port int    `env:"PORT, default=8080"`

	DB    DBConfig
	Redis RedisConfig
	Mongo MongoConfig

	// CatalogBackend picks where products and categories live.
	CatalogBackend        string        `env:"CATALOG_BACKEND, default=memory"`
	CatalogSimulatedDelay time.Duration `env:"CATALOG_SIMULATED_DELAY, default=0s"`

	SessionSecret string        `env:"SESSION_SECRET, default=dev-session-secret"`
	SessionTTL    time.Duration `env:"SESSION_TTL, default=24h"`

	GuardTimeout time.Duration `env:"GUARD_TIMEOUT, default=2s"`
	LoginPath    string        `env:"LOGIN_PATH, default=/login"`

	// consecutive identity provider failures before lookups fail fast
	ProviderFailureThreshold int           `env:"PROVIDER_FAILURE_THRESHOLD, default=5"`
	ProviderCooldown         time.Duration `env:"PROVIDER_COOLDOWN, default=15s"`

	// AdminEmail is promoted to ADMIN on startup if that user exists.
	AdminEmail         string `env:"ADMIN_EMAIL"`
	AllowSelfElevation bool   `env:"ALLOW_SELF_ELEVATION, default=false"`

	CORSOrigins  []string `env:"CORS_ORIGINS, default=http://localhost:3000"`
	OTLPEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// ShutdownDrainDelay is how long /readyz reports shutting_down before the
	// listener stops accepting requests.
	ShutdownDrainDelay time.Duration `env:"SHUTDOWN_DRAIN_DELAY, default=5s"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST, default=127.0.0.1"`
	Port     string `env:"DB_PORT, default=5432"`
	User     string `env:"DB_USER, default=storefront"`
	Password string `env:"DB_PASSWORD, default=storefront"`
	Name     string `env:"DB_NAME, default=storefront"`
	SSLMode  string `env:"DB_SSLMODE, default=disable"`
	// URL wins over the individual fields when set.
	URL string `env:"DATABASE_URL"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB, default=storefront"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	return LoadFrom(envconfig.OsLookuper())
}

// LoadFrom resolves the config from any lookuper; tests pass a map.
func LoadFrom(l envconfig.Lookuper) (Config, error) {
	var cfg Config

	err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	})
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.CatalogBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendMongo:
	default:
		return fmt.Errorf("config: unknown CATALOG_BACKEND %q", c.CatalogBackend)
	}

	if c.Env == "prod" && c.SessionSecret == "dev-session-secret" {
		return fmt.Errorf("config: SESSION_SECRET must be set in prod")
	}
	return nil
}

func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// SelfElevationEnabled gates the legacy unconditional set-admin route.
func (c Config) SelfElevationEnabled() bool {
	return c.AllowSelfElevation && c.IsDev()
}

func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Name + "?sslmode=" + c.SSLMode
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
