package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Auth      AuthConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Bootstrap BootstrapConfig
}

type AuthConfig struct {
	TokenTTL      time.Duration `env:"TOKEN_TTL,       default=12h"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL, default=30m"`
	ResetBaseURL  string        `env:"RESET_BASE_URL,  default=http://localhost:3000"`
	AuditWorkers  int           `env:"AUDIT_WORKERS,   default=4"`
}

// BootstrapConfig seeds the first manager so POST /staff has a caller.
// Seeding is skipped when the email is empty.
type BootstrapConfig struct {
	ManagerName     string `env:"BOOTSTRAP_MANAGER_NAME, default=Garage Manager"`
	ManagerEmail    string `env:"BOOTSTRAP_MANAGER_EMAIL"`
	ManagerPassword string `env:"BOOTSTRAP_MANAGER_PASSWORD"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=garage_auth"`
}

type RedisConfig struct {
	Addr       string        `env:"REDIS_ADDR,  default=localhost:6379"`
	Password   string        `env:"REDIS_PASSWORD"`
	DB         int           `env:"REDIS_DB,    default=0"`
	SessionTTL time.Duration `env:"SESSION_TTL, default=12h"`
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom processes configuration from an arbitrary lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	return &cfg, nil
}
