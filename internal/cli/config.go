package cli

import (
	"os"
	"strconv"

	"github.com/aussiebroadwan/trustkit/pkg/transport"
	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL       string  // Optional: service base URL (default: transport.DefaultBaseURL)
	APIKey        string  // Optional: sent as X-API-Key
	TimeoutMS     int     // Optional: per-call budget in milliseconds (default: 30000)
	SigningSecret string  // Optional: enables signed requests
	RateLimit     float64 // Optional: client-side requests per second, 0 disables
	StateFile     string  // Optional: path to the SQLite state file (default: ./trustctl.db)

	VaultPassphrase string // Required to persist the session between invocations
	TOTPSecret      string // Optional: base32 secret used to answer the login second factor

	Env       string // Environment (dev, prod) (default: prod)
	LogLevel  string // Log level (debug, info, warn, error) (default: warn)
	LogFormat string // Log format (json, text) (default: text)
}

// LoadConfig reads the environment, after loading a .env file from the
// working directory when one exists. Variables already set win over the file.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		BaseURL:         getEnvOrDefault("TRUST_BASE_URL", transport.DefaultBaseURL),
		APIKey:          os.Getenv("TRUST_API_KEY"),
		TimeoutMS:       getEnvIntOrDefault("TRUST_TIMEOUT_MS", transport.DefaultTimeoutMS),
		SigningSecret:   os.Getenv("TRUST_SIGNING_SECRET"),
		RateLimit:       getEnvFloatOrDefault("TRUST_RATE_LIMIT", 0),
		StateFile:       getEnvOrDefault("TRUST_STATE_FILE", "trustctl.db"),
		VaultPassphrase: os.Getenv("TRUST_VAULT_PASSPHRASE"),
		TOTPSecret:      os.Getenv("TRUST_TOTP_SECRET"),
		Env:             getEnvOrDefault("ENV", "prod"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "text"),
	}
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
		return f
	}

	return defaultValue
}
