// Package config provides application configuration management through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration (spec.md §6, SPEC_FULL.md §6).
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort int
	ServerURL  string

	// MongoDB configuration
	MongoURI      string
	MongoDatabase string

	// Envelope encryption
	ServerKEK string

	// Gateway
	XAPIKey string

	// CORS
	CORSEnabled      bool
	CORSAllowOrigins string

	// RSA signing key pair
	PrivateKeyPath string

	// Mail transport
	Email         string
	EmailPassword string
	MailName      string
	SMTPDomain    string

	// Per-call timeouts
	StoreTimeout time.Duration
	MailTimeout  time.Duration

	// Rate limiting
	RateLimitPerMinute int

	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsPort      int
}

// Load loads configuration from environment variables.
// It first attempts to load a .env file by searching recursively from the current directory
// up to the root directory. If no .env file is found, it continues with existing environment variables.
func Load() *Config {
	loadDotEnv()

	return &Config{
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),
		ServerURL:  env.GetString("SERVER_URL", "http://localhost:8080"),

		MongoURI:      env.GetString("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: env.GetString("MONGO_DATABASE", "flexauth"),

		ServerKEK: env.GetString("SERVER_KEK", ""),

		XAPIKey: env.GetString("X_API_KEY", ""),

		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		PrivateKeyPath: env.GetString("PRIVATE_KEY_PATH", "./private_key.pem"),

		Email:         env.GetString("EMAIL", ""),
		EmailPassword: env.GetString("EMAIL_PASSWORD", ""),
		MailName:      env.GetString("MAIL_NAME", "FlexAuth"),
		SMTPDomain:    env.GetString("SMTP_DOMAIN", ""),

		StoreTimeout: env.GetDuration("STORE_TIMEOUT", 5, time.Second),
		MailTimeout:  env.GetDuration("MAIL_TIMEOUT", 10, time.Second),

		RateLimitPerMinute: env.GetInt("RATE_LIMIT_PER_MINUTE", 60),

		LogLevel: env.GetString("LOG_LEVEL", "info"),

		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "flexauth"),
		MetricsPort:      env.GetInt("METRICS_PORT", 9090),
	}
}

// GetGinMode returns the gin.Mode string matching the configured log level:
// "debug" when LogLevel is debug, "release" otherwise.
func (c *Config) GetGinMode() string {
	if c.LogLevel == "debug" {
		return "debug"
	}
	return "release"
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
