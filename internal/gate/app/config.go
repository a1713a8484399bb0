package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer   string // Issuer claim for minted tokens
	Audience string // Audience claim for minted tokens

	CSRFSecret     string // Required: HMAC secret for CSRF tokens (min 32 chars)
	SigningKeyFile string // Optional: PEM file with the RS256 signing key (ephemeral key when unset)
	DatabaseFile   string // Optional: path to SQLite database file (default: ./authgate.db)

	RedisAddr     string // Optional: Redis address; selects shared session/revocation state
	RedisPassword string // Optional: Redis password

	SessionTTL time.Duration // Session lifetime (default: 12h)
	TokenTTL   time.Duration // Signed token lifetime (default: 1h)

	BootstrapEmail    string // Optional: first admin's email, used only on an empty directory
	BootstrapPassword string // Optional: first admin's password

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 5m)
}

// LoadConfig reads configuration from the environment, loading a local
// .env file first when present.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Issuer:               getEnvOrDefault("AUTHGATE_ISSUER", "https://auth.tessara.example"),
		Audience:             getEnvOrDefault("AUTHGATE_AUDIENCE", "tessara-admin"),
		CSRFSecret:           os.Getenv("AUTHGATE_CSRF_SECRET"),
		SigningKeyFile:       os.Getenv("AUTHGATE_SIGNING_KEY_FILE"),
		DatabaseFile:         getEnvOrDefault("AUTHGATE_DATABASE_FILE", "authgate.db"),
		RedisAddr:            os.Getenv("AUTHGATE_REDIS_ADDR"),
		RedisPassword:        os.Getenv("AUTHGATE_REDIS_PASSWORD"),
		SessionTTL:           getEnvDurationOrDefault("AUTHGATE_SESSION_TTL", 12*time.Hour),
		TokenTTL:             getEnvDurationOrDefault("AUTHGATE_TOKEN_TTL", time.Hour),
		BootstrapEmail:       os.Getenv("AUTHGATE_BOOTSTRAP_EMAIL"),
		BootstrapPassword:    os.Getenv("AUTHGATE_BOOTSTRAP_PASSWORD"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
	}
}

// Production reports whether strict-mode behaviors (HSTS, lockdown on
// missing security config) apply.
func (c Config) Production() bool {
	return c.Env == "prod" || c.Env == "production"
}

// MissingSecurityConfig lists the required security settings that are
// absent. In production a non-empty list puts the gateway in lockdown.
func (c Config) MissingSecurityConfig() []string {
	var missing []string
	if len(c.CSRFSecret) < 32 {
		missing = append(missing, "AUTHGATE_CSRF_SECRET")
	}
	if c.Production() && c.SigningKeyFile == "" {
		missing = append(missing, "AUTHGATE_SIGNING_KEY_FILE")
	}
	return missing
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
