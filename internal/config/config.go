package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseType    string
	DatabaseURL     string
	DatabasePath    string
	MigrationsPath  string
	TemplatesPath   string
	StaticFilesPath string
	SessionDuration time.Duration

	// AuthBaseURL and SessionSecret are the two values the auth stack needs:
	// the public origin used in emailed sign-in links and the key for CSRF
	// token derivation. When either is absent the session gate fails OPEN
	// (degrade-to-public) instead of erroring; see AuthEnabled.
	AuthBaseURL   string
	SessionSecret string

	GoogleClientID     string
	GoogleClientSecret string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		DatabaseType:    getEnv("DB_TYPE", "sqlite"),
		DatabaseURL:     getEnv("DB_URL", ""),
		DatabasePath:    getEnv("DB_PATH", "./cadence.db"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		TemplatesPath:   getEnv("TEMPLATES_PATH", "./templates"),
		StaticFilesPath: getEnv("STATIC_PATH", "./static"),
		SessionDuration: 24 * time.Hour,

		AuthBaseURL:   getEnv("AUTH_BASE_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Cadence"),
	}
}

// AuthEnabled reports whether the auth configuration is complete. When it
// is not, the session gate allows all requests; the operator is warned at
// startup because the degrade is security-relevant.
func (c *Config) AuthEnabled() bool {
	return c.AuthBaseURL != "" && c.SessionSecret != ""
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
