package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pk55-api/database"
	"pk55-api/logger"
	"pk55-api/services/media"
)

type Config struct {
	Server   ServerConfig
	Database database.DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Media    media.Config
	Log      LogConfig
}

type ServerConfig struct {
	Host string `env:"HOST" env-default:"0.0.0.0"`
	Port string `env:"PORT" env-default:"3001"`

	// TrustedProxies are addresses or CIDR ranges whose X-Forwarded-For
	// headers the rate limiter believes.
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:"," env-description:"Comma-separated reverse proxy addresses or CIDRs"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	Issuer        string        `env:"JWT_ISSUER" env-default:"pk55-api"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	AllowRegister bool          `env:"AUTH_ALLOW_REGISTER" env-default:"false"`
}

// RedisConfig: an empty URL disables the rate limiter and the asset queue.
type RedisConfig struct {
	URL               string `env:"REDIS_URL"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" env-default:"2"`
}

type LogConfig struct {
	Level    string `env:"LOG_LEVEL" env-default:"info"`
	Encoding string `env:"LOG_ENCODING" env-default:"console"`
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Load reads an optional .env file and then the process environment. The
// result is not validated, since create-user needs no JWT secret.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
		logger.Debug("No .env file found, using process environment")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	logger.Info("Config loaded",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.URL != ""),
		zap.Bool("media", cfg.Media.Bucket != ""),
		zap.Bool("allow_register", cfg.Auth.AllowRegister))

	return &cfg, nil
}

// Validate checks what the HTTP server needs.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.Database.Driver {
	case database.DriverMongo, database.DriverMySQL, database.DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// Usage describes the environment variables, for --help output.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return desc
}
