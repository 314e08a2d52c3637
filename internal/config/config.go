package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the console client.
type Config struct {
	App     AppConfig
	API     APIConfig
	Auth    AuthConfig
	Session SessionConfig
	Logger  LoggerConfig
}

// AppConfig controls client level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// APIConfig holds backend connection values.
type APIConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// AuthConfig defines identity-provider parameters.
type AuthConfig struct {
	AuthorizeURL            string
	ClientID                string
	LoopbackHost            string
	LoopbackPort            string
	SilentTimeoutSeconds    int
	BootstrapTimeoutSeconds int
}

// SessionStoreBackend selects where client state persists.
type SessionStoreBackend string

const (
	SessionBackendFile  SessionStoreBackend = "file"
	SessionBackendRedis SessionStoreBackend = "redis"
)

// SessionConfig holds persistent client-state values.
type SessionConfig struct {
	Backend       SessionStoreBackend
	StatePath     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("SESSION_REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_REDIS_DB: %w", err)
	}

	backend := SessionStoreBackend(getEnv("SESSION_BACKEND", string(SessionBackendFile)))
	switch backend {
	case SessionBackendFile, SessionBackendRedis:
	default:
		return nil, fmt.Errorf("invalid SESSION_BACKEND: %q", backend)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "guild-console"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:               getEnv("API_BASE_URL", "http://127.0.0.1:8000"),
			RequestTimeoutSeconds: getEnvAsInt("API_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Auth: AuthConfig{
			AuthorizeURL:            getEnv("AUTH_AUTHORIZE_URL", "https://discord.com/api/v10/oauth2/authorize"),
			ClientID:                os.Getenv("AUTH_CLIENT_ID"),
			LoopbackHost:            getEnv("AUTH_LOOPBACK_HOST", "127.0.0.1"),
			LoopbackPort:            getEnv("AUTH_LOOPBACK_PORT", "47615"),
			SilentTimeoutSeconds:    getEnvAsInt("AUTH_SILENT_TIMEOUT_SECONDS", 10),
			BootstrapTimeoutSeconds: getEnvAsInt("AUTH_BOOTSTRAP_TIMEOUT_SECONDS", 11),
		},
		Session: SessionConfig{
			Backend:       backend,
			StatePath:     getEnv("SESSION_STATE_PATH", defaultStatePath()),
			RedisAddr:     getEnv("SESSION_REDIS_ADDR", "127.0.0.1:6379"),
			RedisPassword: os.Getenv("SESSION_REDIS_PASSWORD"),
			RedisDB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// RequestTimeout returns the configured backend request timeout duration.
func (a APIConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SilentTimeout bounds how long a silent login attempt may stay quiet.
func (a AuthConfig) SilentTimeout() time.Duration {
	if a.SilentTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.SilentTimeoutSeconds) * time.Second
}

// BootstrapTimeout bounds the whole session bootstrap, silent retry included.
func (a AuthConfig) BootstrapTimeout() time.Duration {
	if a.BootstrapTimeoutSeconds <= 0 {
		return 11 * time.Second
	}
	return time.Duration(a.BootstrapTimeoutSeconds) * time.Second
}

// LoopbackAddr returns the listener bind address for provider callbacks.
func (a AuthConfig) LoopbackAddr() string {
	return fmt.Sprintf("%s:%s", a.LoopbackHost, a.LoopbackPort)
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".guild-console/state.json"
	}
	return filepath.Join(dir, "guild-console", "state.json")
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
