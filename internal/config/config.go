package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// minSecretBytes is the smallest HS256 key length accepted.
const minSecretBytes = 32

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Cookie   CookieConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values and the session store selection.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	SessionStore string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines token and session parameters.
type AuthConfig struct {
	JWTSecret              string
	Issuer                 string
	AccessTokenTTLSeconds  int
	RefreshTokenTTLSeconds int
	SignupTicketTTLSeconds int
	BcryptCost             int
}

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	Secure      bool
	SameSite    string
	RefreshPath string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "kakao-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           redisDB,
			KeyPrefix:    os.Getenv("REDIS_KEY_PREFIX"),
			SessionStore: strings.ToLower(getEnv("SESSION_STORE", "redis")),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:              os.Getenv("AUTH_JWT_SECRET"),
			Issuer:                 getEnv("AUTH_JWT_ISSUER", "kakao-auth"),
			AccessTokenTTLSeconds:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_SECONDS", 1800),
			RefreshTokenTTLSeconds: getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_SECONDS", 1209600),
			SignupTicketTTLSeconds: getEnvAsInt("AUTH_SIGNUP_TICKET_TTL_SECONDS", 600),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Cookie: CookieConfig{
			Secure:      getEnvAsBool("COOKIE_SECURE", false),
			SameSite:    getEnv("COOKIE_SAME_SITE", "Lax"),
			RefreshPath: getEnv("COOKIE_REFRESH_PATH", "/api/auth"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the token engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < minSecretBytes {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", minSecretBytes))
	}
	if c.Auth.Issuer == "" {
		errs = append(errs, errors.New("AUTH_JWT_ISSUER must not be empty"))
	}
	if c.Auth.AccessTokenTTLSeconds <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_SECONDS must be positive"))
	}
	if c.Auth.RefreshTokenTTLSeconds <= 0 {
		errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_TTL_SECONDS must be positive"))
	}
	if c.Auth.SignupTicketTTLSeconds <= 0 {
		errs = append(errs, errors.New("AUTH_SIGNUP_TICKET_TTL_SECONDS must be positive"))
	}
	switch c.Redis.SessionStore {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.Redis.SessionStore))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTTL returns the access token lifetime.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh session lifetime.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLSeconds) * time.Second
}

// SignupTicketTTL returns the signup ticket lifetime.
func (a AuthConfig) SignupTicketTTL() time.Duration {
	return time.Duration(a.SignupTicketTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
