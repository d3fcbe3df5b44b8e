package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
				assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
				assert.Equal(t, "flexauth", cfg.MongoDatabase)
				assert.Equal(t, "", cfg.ServerKEK)
				assert.Equal(t, "", cfg.XAPIKey)
				assert.Equal(t, false, cfg.CORSEnabled)
				assert.Equal(t, "", cfg.CORSAllowOrigins)
				assert.Equal(t, "./private_key.pem", cfg.PrivateKeyPath)
				assert.Equal(t, "FlexAuth", cfg.MailName)
				assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
				assert.Equal(t, 10*time.Second, cfg.MailTimeout)
				assert.Equal(t, 60, cfg.RateLimitPerMinute)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, true, cfg.MetricsEnabled)
				assert.Equal(t, "flexauth", cfg.MetricsNamespace)
				assert.Equal(t, 9090, cfg.MetricsPort)
			},
		},
		{
			name: "load custom server configuration",
			envVars: map[string]string{
				"SERVER_HOST": "localhost",
				"SERVER_PORT": "9090",
				"SERVER_URL":  "https://auth.example.com",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost", cfg.ServerHost)
				assert.Equal(t, 9090, cfg.ServerPort)
				assert.Equal(t, "https://auth.example.com", cfg.ServerURL)
			},
		},
		{
			name: "load custom mongo configuration",
			envVars: map[string]string{
				"MONGO_URI":      "mongodb://mongo:27017",
				"MONGO_DATABASE": "flexauth_prod",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mongodb://mongo:27017", cfg.MongoURI)
				assert.Equal(t, "flexauth_prod", cfg.MongoDatabase)
			},
		},
		{
			name: "load custom crypto and gateway configuration",
			envVars: map[string]string{
				"SERVER_KEK":       "c1dd409b90e9c22001b23e23025cf3c5c536c7ab5d9d5df35958124e5b5db7f.ba5aa7dfb14f6a62c01f50f0",
				"X_API_KEY":        "topsecret",
				"PRIVATE_KEY_PATH": "/etc/flexauth/private_key.pem",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(
					t,
					"c1dd409b90e9c22001b23e23025cf3c5c536c7ab5d9d5df35958124e5b5db7f.ba5aa7dfb14f6a62c01f50f0",
					cfg.ServerKEK,
				)
				assert.Equal(t, "topsecret", cfg.XAPIKey)
				assert.Equal(t, "/etc/flexauth/private_key.pem", cfg.PrivateKeyPath)
			},
		},
		{
			name: "load custom CORS configuration",
			envVars: map[string]string{
				"CORS_ENABLED":       "true",
				"CORS_ALLOW_ORIGINS": "https://example.com,https://app.example.com",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, true, cfg.CORSEnabled)
				assert.Equal(t, "https://example.com,https://app.example.com", cfg.CORSAllowOrigins)
			},
		},
		{
			name: "load custom mail configuration",
			envVars: map[string]string{
				"EMAIL":          "no-reply@example.com",
				"EMAIL_PASSWORD": "password123",
				"MAIL_NAME":      "Example Auth",
				"SMTP_DOMAIN":    "smtp.example.com",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "no-reply@example.com", cfg.Email)
				assert.Equal(t, "password123", cfg.EmailPassword)
				assert.Equal(t, "Example Auth", cfg.MailName)
				assert.Equal(t, "smtp.example.com", cfg.SMTPDomain)
			},
		},
		{
			name: "load custom timeout and rate limit configuration",
			envVars: map[string]string{
				"STORE_TIMEOUT":         "15",
				"MAIL_TIMEOUT":          "30",
				"RATE_LIMIT_PER_MINUTE": "120",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 15*time.Second, cfg.StoreTimeout)
				assert.Equal(t, 30*time.Second, cfg.MailTimeout)
				assert.Equal(t, 120, cfg.RateLimitPerMinute)
			},
		},
		{
			name: "load custom log level",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
		{
			name: "load custom metrics configuration",
			envVars: map[string]string{
				"METRICS_ENABLED":   "false",
				"METRICS_NAMESPACE": "custom",
				"METRICS_PORT":      "9091",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, false, cfg.MetricsEnabled)
				assert.Equal(t, "custom", cfg.MetricsNamespace)
				assert.Equal(t, 9091, cfg.MetricsPort)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			cfg := Load()

			tt.validate(t, cfg)
		})
	}
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"", "release"},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetGinMode())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	err = os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("TEST_ENV_VAR=found"), 0600)
	require.NoError(t, err)

	childDir := filepath.Join(tmpDir, "child", "grandchild")
	err = os.MkdirAll(childDir, 0700)
	require.NoError(t, err)

	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(oldCwd)
	}()

	err = os.Chdir(childDir)
	require.NoError(t, err)

	loadDotEnv()

	assert.Equal(t, "found", os.Getenv("TEST_ENV_VAR"))
	err = os.Unsetenv("TEST_ENV_VAR")
	require.NoError(t, err)
}
