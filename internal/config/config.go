package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Client side
	APIBaseURL   string
	PublicAPIURL string
	TokenStore   string
	TokenFile    string
	PollInterval time.Duration
	LogLevel     string
	LogFormat    string

	// Reference backend
	DatabaseURL     string
	HTTPPort        string
	JWTSecret       string
	GeminiAPIKey    string
	ProcessingDelay time.Duration
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTokenStore   = "keyring"
)

func LoadConfig() (*Config, error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8080"),
		PublicAPIURL:    getEnv("PUBLIC_API_URL", "https://api.aiplatform.com"),
		TokenStore:      getEnv("TOKEN_STORE", DefaultTokenStore),
		TokenFile:       getEnv("TOKEN_FILE", ""),
		PollInterval:    getEnvAsDuration("POLL_INTERVAL", DefaultPollInterval),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		DatabaseURL:     getEnv("DATABASE_URL", "botstudio.db"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		ProcessingDelay: getEnvAsDuration("PROCESSING_DELAY", 2*time.Second),
	}
	return cfg, nil
}

// ValidateClient checks the settings the console needs.
func (c *Config) ValidateClient() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL environment variable is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	switch c.TokenStore {
	case "keyring", "file", "memory":
	default:
		return errors.New("TOKEN_STORE must be one of keyring, file, memory")
	}
	return nil
}

// ValidateServer checks the settings the reference backend needs.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("5s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs := getEnvAsInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
