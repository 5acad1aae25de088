package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Directory backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBolt     = "bolt"
)

// minSecretLen matches the HS256 key floor enforced by the token codec.
const minSecretLen = 32

// Config holds all environment-based configuration for the auth server.
type Config struct {
	// Environment selects the log format. Production also refuses
	// COOKIE_SECURE=false.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8000"`
	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`

	// HTTPShutdownTimeout bounds the drain of in-flight requests on exit.
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Signing keys. Each must be at least 32 bytes and they must differ.
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	TokenIssuer        string        `env:"TOKEN_ISSUER"`

	// CookieSecure marks token cookies Secure. Turn off only for local HTTP.
	CookieSecure       bool     `env:"COOKIE_SECURE" envDefault:"true"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	DirectoryBackend string `env:"DIRECTORY_BACKEND" envDefault:"memory"`

	DatabaseURL    string `env:"DATABASE_URL"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`

	RedisAddr      string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"auth"`

	BoltPath string `env:"BOLT_PATH" envDefault:"data/auth.db"`

	PasswordAlgorithm string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost        int    `env:"BCRYPT_COST" envDefault:"12"`
	PasswordPepper    string `env:"PASSWORD_PEPPER"`

	// PasswordPolicy is "default" or "strict"; strict adds character-class rules.
	PasswordPolicy string `env:"PASSWORD_POLICY" envDefault:"default"`
}

// warnInsecureEnvFile flags a .env file that group or other users can read;
// it usually holds the signing secrets.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.DirectoryBackend = strings.ToLower(strings.TrimSpace(cfg.DirectoryBackend))
	cfg.PasswordAlgorithm = strings.ToLower(strings.TrimSpace(cfg.PasswordAlgorithm))
	cfg.PasswordPolicy = strings.ToLower(strings.TrimSpace(cfg.PasswordPolicy))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}

	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("REFRESH_TOKEN_SECRET is required")
	}

	if len(c.AccessTokenSecret) < minSecretLen || len(c.RefreshTokenSecret) < minSecretLen {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be at least %d bytes", minSecretLen)
	}

	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	if c.IsProduction() && !c.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE cannot be false when ENVIRONMENT=production")
	}

	if c.AccessTokenExpiry < time.Second {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be at least 1s")
	}

	if c.AccessTokenExpiry >= c.RefreshTokenExpiry {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be shorter than REFRESH_TOKEN_EXPIRY")
	}

	switch c.DirectoryBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DIRECTORY_BACKEND=postgres")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when DIRECTORY_BACKEND=redis")
		}
	case BackendBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required when DIRECTORY_BACKEND=bolt")
		}
	default:
		return fmt.Errorf("DIRECTORY_BACKEND must be one of memory, postgres, redis, bolt (got %q)", c.DirectoryBackend)
	}

	switch c.PasswordAlgorithm {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("PASSWORD_ALGORITHM must be bcrypt or argon2id (got %q)", c.PasswordAlgorithm)
	}

	switch c.PasswordPolicy {
	case "default", "strict":
	default:
		return fmt.Errorf("PASSWORD_POLICY must be default or strict (got %q)", c.PasswordPolicy)
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
